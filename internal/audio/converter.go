package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-audio/wav"
	"github.com/yegors/livescribe/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

var (
	// ErrDecode indicates the segment could not be decoded (corrupt or unsupported container)
	ErrDecode = errors.New("segment decode failed")
	// ErrConversion indicates resampling or quantization failed
	ErrConversion = errors.New("sample conversion failed")
)

// Converter decodes encoded audio segments and converts them into
// 16-bit signed little-endian mono PCM at a fixed target sample rate.
// A conversion has no side effects and is safe to retry; the shared
// scratch buffer is only an allocation cache.
type Converter struct {
	targetRate int
	logger     *logger.Logger

	mu      sync.Mutex
	scratch []float64 // lazily created on first conversion, reused until Close
	closed  bool
}

// NewConverter creates a converter targeting the given sample rate
func NewConverter(targetRate int, logger *logger.Logger) *Converter {
	return &Converter{
		targetRate: targetRate,
		logger:     logger.Named("sample-converter"),
	}
}

// Convert decodes a WAV segment at its native rate and channel count and
// returns mono PCM16LE bytes at the converter's target rate.
func (c *Converter) Convert(segment []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%w: converter is closed", ErrConversion)
	}

	samples, nativeRate, err := c.decode(segment)
	if err != nil {
		return nil, err
	}

	decoded := len(samples)
	if nativeRate != c.targetRate {
		samples, err = resample(samples, nativeRate, c.targetRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
	}

	c.logger.Debug("Segment converted",
		Int("segment_bytes", len(segment)),
		Int("native_rate", nativeRate),
		Int("decoded_samples", decoded),
		Int("output_samples", len(samples)))

	return quantize(samples), nil
}

// Close releases the conversion scratch state. Safe to call more than once;
// a conversion already holding the lock completes before the release.
func (c *Converter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.scratch = nil
	c.logger.Debug("Converter closed")
}

// decode parses the segment container and returns mono float samples in
// [-1, 1] at the segment's native sample rate. Multi-channel input is
// downmixed by averaging across channels.
func (c *Converter) decode(segment []byte) ([]float64, int, error) {
	decoder := wav.NewDecoder(bytes.NewReader(segment))
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a valid WAV container", ErrDecode)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: missing format information", ErrDecode)
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int(1) << (bitDepth - 1))

	if cap(c.scratch) < frames {
		c.scratch = make([]float64, frames)
	}
	samples := c.scratch[:frames]

	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return samples, buf.Format.SampleRate, nil
}

// resample converts samples from one rate to another by linear
// interpolation. The output length is round(n * to/from) so the
// duration of the segment is preserved.
func resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}

	n := len(samples)
	outN := int(math.Round(float64(n) * float64(to) / float64(from)))
	out := make([]float64, outN)
	if outN == 0 || n == 0 {
		return out, nil
	}

	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= n-1 {
			out[i] = samples[n-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = samples[j] + (samples[j+1]-samples[j])*frac
	}

	return out, nil
}

// quantize clamps each sample to [-1, 1], scales to the signed 16-bit
// range and packs the result as contiguous little-endian bytes. The
// clamp must happen before scaling so out-of-range floats saturate
// instead of wrapping around.
func quantize(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(s * 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
