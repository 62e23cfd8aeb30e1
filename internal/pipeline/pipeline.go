package pipeline

import (
	"context"
	"errors"

	"github.com/yegors/livescribe/internal/audio"
	"github.com/yegors/livescribe/internal/transcript"
	"github.com/yegors/livescribe/internal/transcription"
	"github.com/yegors/livescribe/pkg/logger"
)

// Import logger functions
var (
	Int   = logger.Int
	Error = logger.Error
)

// Transcriber uploads one PCM buffer and returns the candidate list
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (*transcription.Result, error)
}

// Pipeline runs the per-segment cycle: convert to PCM, upload, merge the
// response into the transcript log. Every failure is local to its chunk:
// it is logged, the chunk is skipped, and the session continues. Cycles
// may overlap and complete out of order; the transcript log serializes
// the merges.
type Pipeline struct {
	ctx         context.Context
	converter   *audio.Converter
	transcriber Transcriber
	log         *transcript.Log
	logger      *logger.Logger
}

// New creates a pipeline bound to the given context; in-flight cycles
// stop uploading once the context is canceled
func New(ctx context.Context, converter *audio.Converter, transcriber Transcriber, log *transcript.Log, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		ctx:         ctx,
		converter:   converter,
		transcriber: transcriber,
		log:         log,
		logger:      logger.Named("chunk-pipeline"),
	}
}

// Process handles one settled segment. It is the dispatcher's process
// function and runs on the dispatcher's worker goroutine.
func (p *Pipeline) Process(segment []byte) {
	pcm, err := p.converter.Convert(segment)
	if err != nil {
		p.logger.Error("Skipping chunk: conversion failed",
			Error(err),
			Int("segment_bytes", len(segment)))
		return
	}

	result, err := p.transcriber.Transcribe(p.ctx, pcm)
	if err != nil {
		var serviceErr *transcription.ServiceError
		if errors.As(err, &serviceErr) {
			p.logger.Error("Skipping chunk: transcription service failure",
				Int("status", serviceErr.Status),
				Int("pcm_bytes", len(pcm)))
		} else {
			p.logger.Error("Skipping chunk: transcription upload failed",
				Error(err),
				Int("pcm_bytes", len(pcm)))
		}
		return
	}

	if _, accepted := p.log.Accept(result); !accepted {
		p.logger.Debug("Chunk transcription not appended (empty or duplicate)",
			Int("candidates", len(result.Candidates)))
	}
}
