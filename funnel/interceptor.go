package funnel

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/Cybereason/epic-logging/backbone"
)

// ErrNotInstalled reports an Uninstall with no matching Install: there is
// no saved backbone state to restore.
var ErrNotInstalled = errors.New("funnel: interceptor is not installed")

// Interceptor is a session's listening end. Installed on a backbone it
// observes every record emitted in the process, filters by its threshold,
// renders structured errors to text, and forwards tagged records into the
// handoff channel.
type Interceptor struct {
	level slog.Level
	out   Putter
	bb    *backbone.Backbone

	mu        sync.Mutex
	installed bool
	prevMin   slog.Level
}

// NewInterceptor builds an interceptor forwarding records at or above
// level into out. A nil backbone means the process default.
func NewInterceptor(level slog.Level, out Putter, bb *backbone.Backbone) *Interceptor {
	if bb == nil {
		bb = backbone.Default()
	}
	return &Interceptor{level: level, out: out, bb: bb}
}

// Install registers the interceptor on its backbone and lowers the
// backbone minimum so no record is filtered before reaching it. The prior
// minimum is saved for Uninstall. Installing an installed interceptor is a
// no-op.
func (h *Interceptor) Install() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.installed {
		return
	}
	h.prevMin = h.bb.MinLevel()
	h.bb.SetMinLevel(backbone.LevelUnfiltered)
	h.bb.Register(h)
	h.installed = true
}

// Uninstall removes the interceptor and restores the exact minimum level
// recorded at install time, so a session never leaks verbosity changes.
// Calling it without a prior Install returns ErrNotInstalled.
func (h *Interceptor) Uninstall() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.installed {
		return ErrNotInstalled
	}
	h.bb.Unregister(h)
	h.bb.SetMinLevel(h.prevMin)
	h.installed = false
	return nil
}

// Observe implements backbone.Listener. It runs synchronously on the
// emitting goroutine and must never block or fail.
func (h *Interceptor) Observe(rec backbone.Record) {
	if rec.Handled {
		return
	}
	if rec.Level < h.level {
		return
	}
	if rec.Err != nil {
		// Structured errors do not survive the channel; keep the rendered
		// text, stack traces included.
		rec.ErrText = fmt.Sprintf("%+v", rec.Err)
		rec.Err = nil
	}
	h.out.Put(Tagged{PID: os.Getpid(), Record: rec})
}

func (h *Interceptor) snapshot() handlerSnapshot {
	return handlerSnapshot{Level: h.level, Endpoint: h.out.Endpoint()}
}
