package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yegors/livescribe/internal/audio"
	"github.com/yegors/livescribe/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

// ErrPermissionDenied indicates the capture device refused access. It is
// surfaced to the user as a notice; it never crashes the process.
var ErrPermissionDenied = errors.New("microphone access denied")

// Source produces one encoded audio segment per emission interval while
// running. Start may fail with ErrPermissionDenied.
type Source interface {
	Start(ctx context.Context, onSegment func(segment []byte)) error
	Stop() error
}

// FFmpegSourceConfig contains configuration for the ffmpeg capture source
type FFmpegSourceConfig struct {
	FFmpegPath      string
	InputFormat     string // ffmpeg input format, e.g. "alsa", "pulse", "avfoundation"
	InputDevice     string
	SampleRate      int
	Channels        int
	SegmentInterval time.Duration
	StartupGrace    time.Duration // how long a fast ffmpeg exit is treated as a startup failure
}

// FFmpegSource captures microphone audio through an ffmpeg subprocess
// emitting raw s16le on stdout, and frames the bytes read during each
// interval into a self-contained WAV segment.
type FFmpegSource struct {
	config FFmpegSourceConfig
	logger *logger.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	cancel    context.CancelFunc
	isRunning bool
}

// NewFFmpegSource creates a new ffmpeg capture source
func NewFFmpegSource(config FFmpegSourceConfig, logger *logger.Logger) *FFmpegSource {
	return &FFmpegSource{
		config: config,
		logger: logger.Named("ffmpeg-capture"),
	}
}

// Start launches ffmpeg and begins emitting segments. Access denial is
// detected by the process exiting within the startup grace window with a
// device or permission error on stderr.
func (s *FFmpegSource) Start(ctx context.Context, onSegment func(segment []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("capture source already running")
	}

	srcCtx, srcCancel := context.WithCancel(ctx)

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", s.config.InputFormat,
		"-i", s.config.InputDevice,
		"-ac", strconv.Itoa(s.config.Channels),
		"-ar", strconv.Itoa(s.config.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}

	cmd := exec.CommandContext(srcCtx, s.config.FFmpegPath, args...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		srcCancel()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	s.logger.Info("Starting ffmpeg capture",
		String("input_format", s.config.InputFormat),
		String("input_device", s.config.InputDevice),
		Int("sample_rate", s.config.SampleRate),
		Int("channels", s.config.Channels))

	if err := cmd.Start(); err != nil {
		srcCancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// A denied or missing device makes ffmpeg exit almost immediately.
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case <-exited:
		srcCancel()
		errOutput := strings.TrimSpace(stderr.String())
		s.logger.Error("ffmpeg exited during startup", String("stderr", errOutput))
		if isPermissionFailure(errOutput) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, errOutput)
		}
		return fmt.Errorf("ffmpeg exited during startup: %s", errOutput)
	case <-time.After(s.config.StartupGrace):
	}

	s.cmd = cmd
	s.stdout = stdout
	s.cancel = srcCancel
	s.isRunning = true

	go s.readLoop(srcCtx, stdout, onSegment)
	go s.reapOnExit(exited)

	return nil
}

// readLoop accumulates raw PCM from ffmpeg and emits one framed WAV
// segment per interval
func (s *FFmpegSource) readLoop(ctx context.Context, stdout io.Reader, onSegment func(segment []byte)) {
	ticker := time.NewTicker(s.config.SegmentInterval)
	defer ticker.Stop()

	var pending []byte
	readBuf := make([]byte, 32*1024)
	reads := make(chan []byte, 16)

	go func() {
		defer close(reads)
		for {
			n, err := stdout.Read(readBuf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, readBuf[:n])
				select {
				case reads <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					s.logger.Error("Error reading from ffmpeg", Error(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case chunk, ok := <-reads:
			if !ok {
				return
			}
			pending = append(pending, chunk...)

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			segment, err := audio.EncodeSegment(pending, s.config.SampleRate, s.config.Channels)
			pending = pending[:0]
			if err != nil {
				s.logger.Error("Failed to frame capture segment", Error(err))
				continue
			}
			s.logger.Debug("Emitting capture segment", Int("segment_bytes", len(segment)))
			onSegment(segment)
		}
	}
}

// reapOnExit clears the running state once ffmpeg terminates
func (s *FFmpegSource) reapOnExit(exited <-chan error) {
	err := <-exited

	s.mu.Lock()
	wasRunning := s.isRunning
	s.isRunning = false
	s.mu.Unlock()

	if wasRunning && err != nil {
		s.logger.Warn("ffmpeg process exited", Error(err))
	}
}

// Stop terminates the ffmpeg process and releases the stream. Idempotent.
func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	s.logger.Info("Stopping ffmpeg capture")
	s.cancel()
	if s.stdout != nil {
		s.stdout.Close()
	}
	s.cmd = nil
	s.stdout = nil

	return nil
}

// isPermissionFailure reports whether ffmpeg's stderr indicates a denied
// or unavailable capture device
func isPermissionFailure(stderr string) bool {
	lowered := strings.ToLower(stderr)
	for _, marker := range []string{
		"permission denied",
		"operation not permitted",
		"device or resource busy",
		"cannot open audio device",
		"no such audio device",
	} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
