package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/livescribe/internal/audio"
	"github.com/yegors/livescribe/internal/dispatch"
	"github.com/yegors/livescribe/pkg/logger"
)

// ErrAlreadyCapturing indicates Start was called while a session is active
var ErrAlreadyCapturing = errors.New("capture session already active")

// State is the capture lifecycle state
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateStopped   State = "stopped"
)

// Controller owns the capture session lifecycle: it starts and stops the
// capture source, feeds emitted segments to the chunk dispatcher, and
// runs the teardown sequence. At most one session is active at a time.
type Controller struct {
	baseCtx    context.Context
	source     Source
	dispatcher *dispatch.Dispatcher
	converter  *audio.Converter
	logger     *logger.Logger

	mu           sync.Mutex
	state        State
	sessionStart time.Time
	cancel       context.CancelFunc
}

// NewController creates a capture controller in the idle state. Session
// contexts are derived from ctx, the process lifecycle context, so a
// session outlives whatever request started it and dies with the process.
func NewController(ctx context.Context, source Source, dispatcher *dispatch.Dispatcher, converter *audio.Converter, logger *logger.Logger) *Controller {
	return &Controller{
		baseCtx:    ctx,
		source:     source,
		dispatcher: dispatcher,
		converter:  converter,
		logger:     logger.Named("capture-controller"),
		state:      StateIdle,
	}
}

// Start begins a capture session. Returns ErrAlreadyCapturing if one is
// active and ErrPermissionDenied (wrapped) if the capture source is
// denied access to the device.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCapturing {
		return ErrAlreadyCapturing
	}

	sessionCtx, sessionCancel := context.WithCancel(c.baseCtx)

	if err := c.source.Start(sessionCtx, c.dispatcher.Submit); err != nil {
		sessionCancel()
		c.logger.Error("Failed to start capture session", Error(err))
		return err
	}

	c.cancel = sessionCancel
	c.state = StateCapturing
	c.sessionStart = time.Now().UTC()
	c.logger.Info("Capture session started")

	return nil
}

// Stop ends the active capture session and releases the stream. Calling
// Stop when no session is active is a no-op. Conversions already
// dispatched may still complete and append results; no further segments
// are emitted.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCapturing {
		return nil
	}

	if err := c.source.Stop(); err != nil {
		c.logger.Error("Error stopping capture source", Error(err))
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.state = StateStopped
	c.logger.Info("Capture session stopped")

	return nil
}

// Teardown releases everything the pipeline holds, in order: stop the
// capture session, release the conversion context, cancel any pending
// dispatch. Each step runs regardless of earlier failures so nothing
// leaks on a partial teardown.
func (c *Controller) Teardown() {
	if err := c.Stop(); err != nil {
		c.logger.Error("Error stopping capture during teardown", Error(err))
	}
	c.converter.Close()
	c.dispatcher.Cancel()
	c.logger.Info("Teardown complete")
}

// Status returns the current state and, for an active session, its start time
func (c *Controller) Status() (State, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.sessionStart
}
