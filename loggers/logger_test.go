package loggers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/Cybereason/epic-logging/backbone"
)

// collectHandler captures the slog records a logger renders.
type collectHandler struct {
	mu      sync.Mutex
	level   slog.Level
	records []slog.Record
}

func (h *collectHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *collectHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *collectHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *collectHandler) WithGroup(string) slog.Handler      { return h }

func (h *collectHandler) all() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), h.records...)
}

type collectListener struct {
	mu      sync.Mutex
	records []backbone.Record
}

func (l *collectListener) Observe(rec backbone.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

func (l *collectListener) all() []backbone.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]backbone.Record(nil), l.records...)
}

func TestLogWritesHandlersAndBackbone(t *testing.T) {
	bb := backbone.New()
	listener := &collectListener{}
	bb.Register(listener)
	out := &collectHandler{}

	l := New("api", WithBackbone(bb), WithLevel(slog.LevelInfo), WithHandlers(out))
	l.Info("request served", slog.String("route", "/items"))

	if got := len(out.all()); got != 1 {
		t.Fatalf("expected 1 rendered record, got %d", got)
	}
	records := listener.all()
	if len(records) != 1 {
		t.Fatalf("expected 1 backbone record, got %d", len(records))
	}
	rec := records[0]
	if rec.Logger != "api" || rec.Message != "request served" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Fields["route"] != "/items" {
		t.Fatalf("expected route field, got %v", rec.Fields)
	}
}

func TestLogBelowLevelEmitsNothing(t *testing.T) {
	bb := backbone.New()
	listener := &collectListener{}
	bb.Register(listener)
	out := &collectHandler{}

	l := New("api", WithBackbone(bb), WithLevel(slog.LevelWarn), WithHandlers(out))
	l.Info("quiet")

	if got := len(out.all()); got != 0 {
		t.Fatalf("expected no rendered records, got %d", got)
	}
	if got := len(listener.all()); got != 0 {
		t.Fatalf("expected no backbone records, got %d", got)
	}
}

func TestEffectiveLevelFollowsBackboneWhenUnset(t *testing.T) {
	bb := backbone.New()
	l := New("api", WithBackbone(bb))

	if got := l.EffectiveLevel(); got != bb.MinLevel() {
		t.Fatalf("expected effective level %v, got %v", bb.MinLevel(), got)
	}
	bb.SetMinLevel(backbone.LevelUnfiltered)
	if got := l.EffectiveLevel(); got != backbone.LevelUnfiltered {
		t.Fatalf("expected effective level to track the backbone, got %v", got)
	}

	l.SetLevel(slog.LevelError)
	bb.SetMinLevel(slog.LevelDebug)
	if got := l.EffectiveLevel(); got != slog.LevelError {
		t.Fatalf("explicit level must win, got %v", got)
	}
}

func TestErrAttachesStructuredError(t *testing.T) {
	bb := backbone.New()
	listener := &collectListener{}
	bb.Register(listener)

	boom := errors.New("boom")
	l := New("api", WithBackbone(bb), WithLevel(slog.LevelInfo))
	l.Error("failed", Err(boom))

	records := listener.all()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !errors.Is(records[0].Err, boom) {
		t.Fatalf("expected structured error, got %v", records[0].Err)
	}
}

func TestDispatchBypassesLevelGate(t *testing.T) {
	bb := backbone.New()
	listener := &collectListener{}
	bb.Register(listener)
	out := &collectHandler{}

	l := New("sink", WithBackbone(bb), WithLevel(slog.LevelError), WithHandlers(out))
	rec := backbone.Record{Logger: "x", Level: slog.LevelInfo, Message: "delivered", Handled: true}
	l.Dispatch(rec)

	// The handler still runs even though Info < the logger's Error level.
	rendered := out.all()
	if len(rendered) != 1 {
		t.Fatalf("expected dispatch to render, got %d records", len(rendered))
	}
	// And the backbone observed the dispatch (marker intact).
	observed := listener.all()
	if len(observed) != 1 || !observed[0].Handled {
		t.Fatalf("expected a handled record on the backbone, got %+v", observed)
	}
}

func TestNamedSharesLevelAndHandlers(t *testing.T) {
	bb := backbone.New()
	out := &collectHandler{}
	parent := New("svc", WithBackbone(bb), WithLevel(slog.LevelInfo), WithHandlers(out))

	child := parent.Named("store")
	if child.Name() != "svc.store" {
		t.Fatalf("unexpected child name %q", child.Name())
	}
	child.Info("child message")
	if got := len(out.all()); got != 1 {
		t.Fatalf("expected child to share handlers, got %d records", got)
	}

	parent.SetLevel(slog.LevelError)
	if child.EffectiveLevel() != slog.LevelError {
		t.Fatal("expected child to share the parent's level")
	}
}

func TestNewDerivesCallerName(t *testing.T) {
	l := New("")
	if !strings.Contains(l.Name(), "loggers.TestNewDerivesCallerName") {
		t.Fatalf("unexpected derived name %q", l.Name())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"fatal", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
