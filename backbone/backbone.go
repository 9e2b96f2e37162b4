package backbone

import (
	"log/slog"
	"sync"
)

// LevelUnfiltered is the floor an installing listener sets as the minimum
// dispatch level so no record is filtered before reaching it.
const LevelUnfiltered slog.Level = -128

// DefaultMinLevel is the minimum dispatch level of a fresh backbone.
const DefaultMinLevel = slog.LevelWarn

// Listener observes every record dispatched on a backbone.
type Listener interface {
	Observe(Record)
}

// Backbone is a process-wide dispatch registry: a set of listeners and a
// shared minimum level. Loggers without an explicit level of their own
// resolve their effective level from it.
type Backbone struct {
	mu        sync.RWMutex
	listeners []Listener
	min       slog.LevelVar
}

// New constructs an empty backbone at DefaultMinLevel.
func New() *Backbone {
	b := &Backbone{}
	b.min.Set(DefaultMinLevel)
	return b
}

var processBackbone = New()

// Default returns the backbone shared by the whole process. Loggers and
// interceptors not explicitly bound to another instance use it.
func Default() *Backbone {
	return processBackbone
}

// Register adds a listener. Registering an already-registered listener is
// a no-op, so install paths stay idempotent.
func (b *Backbone) Register(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.listeners {
		if existing == l {
			return
		}
	}
	b.listeners = append(b.listeners, l)
}

// Unregister removes a listener. Unknown listeners are ignored.
func (b *Backbone) Unregister(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.listeners {
		if existing == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns a snapshot of the registered listeners.
func (b *Backbone) Listeners() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Listener(nil), b.listeners...)
}

// MinLevel reports the process-wide minimum dispatch level.
func (b *Backbone) MinLevel() slog.Level {
	return b.min.Level()
}

// SetMinLevel updates the process-wide minimum dispatch level.
func (b *Backbone) SetMinLevel(level slog.Level) {
	b.min.Set(level)
}

// Dispatch synchronously delivers rec to every registered listener. Each
// listener receives its own copy of the record.
func (b *Backbone) Dispatch(rec Record) {
	for _, l := range b.Listeners() {
		l.Observe(rec)
	}
}
