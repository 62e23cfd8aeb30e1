package audio

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// EncodeSegment frames raw s16le PCM bytes as a self-contained in-memory
// WAV blob. The capture source uses this to turn each interval's worth of
// raw microphone bytes into a segment the converter can decode on its own.
func EncodeSegment(raw []byte, sampleRate, channels int) ([]byte, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("raw PCM length must be even, got %d bytes", len(raw))
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid segment format: rate=%d channels=%d", sampleRate, channels)
	}

	data := make([]int, len(raw)/2)
	for i := range data {
		data[i] = int(int16(uint16(raw[i*2]) | uint16(raw[i*2+1])<<8))
	}

	buf := &gaudio.IntBuffer{
		Data: data,
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: 16,
	}

	segment := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(segment, sampleRate, 16, channels, 1)
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV segment: %w", err)
	}

	out, err := io.ReadAll(segment.Reader())
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV segment: %w", err)
	}
	return out, nil
}
