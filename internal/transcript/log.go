// Package transcript maintains the ordered sequence of accepted
// transcriptions. Only the last candidate of a response is considered and
// a candidate already present anywhere in the log is rejected, so a
// phrase legitimately spoken twice is dropped. That matches the intended
// display behavior; revisit if repeated phrases need to survive.
package transcript

import (
	"sync"
	"time"

	"github.com/yegors/livescribe/internal/transcription"
	"github.com/yegors/livescribe/pkg/logger"
)

// Update types delivered on the updates channel
const (
	UpdateAccepted = "accepted"
	UpdateCleared  = "cleared"
)

// Entry is one accepted transcription line
type Entry struct {
	Text       string    `json:"text"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Update notifies a consumer that the log changed
type Update struct {
	Type  string
	Entry *Entry // set for UpdateAccepted
}

// Log is the append-only, deduplicated transcript sequence. Accept and
// Clear serialize on an internal mutex so the check-then-append merge is
// a single critical section even when chunk uploads complete out of order.
type Log struct {
	logger *logger.Logger

	mu      sync.Mutex
	entries []Entry

	updates chan Update
}

// NewLog creates an empty transcript log
func NewLog(logger *logger.Logger) *Log {
	return &Log{
		logger:  logger.Named("transcript-log"),
		updates: make(chan Update, 64),
	}
}

// Accept merges one transcription result into the log: the last candidate
// is appended if it is non-empty and not already present (exact string
// match over the whole log). Returns the appended entry and true, or
// false when the result was rejected. Accepting the same result twice
// yields the same log as accepting it once.
func (l *Log) Accept(result *transcription.Result) (Entry, bool) {
	text, ok := result.Final()
	if !ok || text == "" {
		return Entry{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.Text == text {
			l.logger.Debug("Duplicate candidate rejected", logger.String("text", text))
			return Entry{}, false
		}
	}

	entry := Entry{Text: text, AcceptedAt: time.Now().UTC()}
	l.entries = append(l.entries, entry)
	l.logger.Info("Transcription accepted",
		logger.String("text", text),
		logger.Int("log_size", len(l.entries)))

	l.notify(Update{Type: UpdateAccepted, Entry: &entry})
	return entry, true
}

// Clear discards all accepted entries (explicit user action)
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	l.logger.Info("Transcript log cleared")
	l.notify(Update{Type: UpdateCleared})
}

// Snapshot returns a copy of the accepted entries in acceptance order
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of accepted entries
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Updates returns the channel of log change notifications
func (l *Log) Updates() <-chan Update {
	return l.updates
}

// notify delivers an update without blocking; if no consumer is keeping
// up the notification is dropped, never the log entry itself
func (l *Log) notify(update Update) {
	select {
	case l.updates <- update:
	default:
		l.logger.Warn("Update channel full, dropping notification",
			logger.String("type", update.Type))
	}
}
