package dispatch

import (
	"sync"
	"time"

	"github.com/yegors/livescribe/pkg/logger"
)

// ProcessFunc is invoked with the most recent segment once a burst of
// submissions has settled.
type ProcessFunc func(segment []byte)

// Dispatcher coalesces rapid segment-ready events with a trailing-edge
// debounce: submissions within the quiet window collapse to a single
// process call using the last segment submitted. Intermediate segments
// are discarded, not queued.
//
// The process function runs on its own goroutine, so a later burst can
// settle and start processing while an earlier cycle is still in flight.
type Dispatcher struct {
	window  time.Duration
	process ProcessFunc
	logger  *logger.Logger

	mu       sync.Mutex
	timer    *time.Timer
	pending  []byte
	seq      uint64 // incremented on every Submit so a stale timer fire is a no-op
	canceled bool
}

// NewDispatcher creates a dispatcher with the given quiet window
func NewDispatcher(window time.Duration, process ProcessFunc, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		window:  window,
		process: process,
		logger:  logger.Named("chunk-dispatcher"),
	}
}

// Submit buffers a ready segment and (re)starts the quiet window. If an
// earlier segment is still waiting for its window to settle, it is
// replaced by this one.
func (d *Dispatcher) Submit(segment []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.canceled {
		d.logger.Debug("Segment submitted after cancel, dropping",
			logger.Int("segment_bytes", len(segment)))
		return
	}

	if d.pending != nil {
		d.logger.Debug("Replacing pending segment",
			logger.Int("old_bytes", len(d.pending)),
			logger.Int("new_bytes", len(segment)))
	}
	d.pending = segment

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq) })
}

// fire runs when the quiet window elapses without another submission
func (d *Dispatcher) fire(seq uint64) {
	d.mu.Lock()
	if d.canceled || seq != d.seq || d.pending == nil {
		d.mu.Unlock()
		return
	}
	segment := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	d.logger.Debug("Quiet window settled, dispatching segment",
		logger.Int("segment_bytes", len(segment)))
	go d.process(segment)
}

// Cancel discards any pending segment and stops the debounce timer.
// After Cancel no process call will be started; cycles already running
// are unaffected. Idempotent.
func (d *Dispatcher) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.canceled {
		return
	}
	d.canceled = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.logger.Debug("Dispatcher canceled")
}
