package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/livescribe/internal/api"
	"github.com/yegors/livescribe/internal/audio"
	"github.com/yegors/livescribe/internal/capture"
	"github.com/yegors/livescribe/internal/config"
	"github.com/yegors/livescribe/internal/dispatch"
	"github.com/yegors/livescribe/internal/pipeline"
	"github.com/yegors/livescribe/internal/transcript"
	"github.com/yegors/livescribe/internal/transcription"
	"github.com/yegors/livescribe/internal/websocket"
	"github.com/yegors/livescribe/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting livescribe server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create WebSocket server for live transcript updates
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Transcript log and its broadcast bridge
	transcriptLog := transcript.NewLog(log)
	go broadcastUpdates(ctx, transcriptLog, wsServer)

	// Chunk pipeline: converter -> uploader -> merger
	converter := audio.NewConverter(cfg.Conversion.TargetSampleRate, log)
	client := transcription.NewClient(
		cfg.Transcription.EndpointURL,
		cfg.Transcription.APIKey,
		cfg.Transcription.TimeoutSeconds,
		log,
	)
	chunkPipeline := pipeline.New(ctx, converter, client, transcriptLog, log)

	dispatcher := dispatch.NewDispatcher(
		time.Duration(cfg.Capture.DebounceWindowMs)*time.Millisecond,
		chunkPipeline.Process,
		log,
	)

	// Capture source and controller
	source := capture.NewFFmpegSource(capture.FFmpegSourceConfig{
		FFmpegPath:      cfg.Capture.FFmpegPath,
		InputFormat:     cfg.Capture.InputFormat,
		InputDevice:     cfg.Capture.InputDevice,
		SampleRate:      cfg.Capture.SampleRate,
		Channels:        cfg.Capture.Channels,
		SegmentInterval: time.Duration(cfg.Capture.SegmentIntervalMs) * time.Millisecond,
		StartupGrace:    time.Duration(cfg.Capture.StartupGraceMs) * time.Millisecond,
	}, log)
	controller := capture.NewController(ctx, source, dispatcher, converter, log)

	// Create API router
	router := api.NewRouter(controller, transcriptLog, wsServer, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop the capture pipeline first so no stray upload fires after teardown
	controller.Teardown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}

// broadcastUpdates forwards transcript log changes to WebSocket clients
func broadcastUpdates(ctx context.Context, transcriptLog *transcript.Log, wsServer *websocket.Server) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-transcriptLog.Updates():
			switch update.Type {
			case transcript.UpdateAccepted:
				wsServer.Broadcast(&websocket.Message{
					Type: websocket.MessageTypeTranscript,
					Data: map[string]any{
						"text":        update.Entry.Text,
						"accepted_at": update.Entry.AcceptedAt,
					},
				})
			case transcript.UpdateCleared:
				wsServer.Broadcast(&websocket.Message{
					Type: websocket.MessageTypeTranscriptCleared,
				})
			}
		}
	}
}
