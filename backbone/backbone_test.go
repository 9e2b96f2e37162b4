package backbone

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
)

type recordingListener struct {
	mu      sync.Mutex
	records []Record
}

func (l *recordingListener) Observe(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

func (l *recordingListener) all() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

func TestRegisterIsIdempotent(t *testing.T) {
	b := New()
	listener := &recordingListener{}

	b.Register(listener)
	b.Register(listener)

	if got := len(b.Listeners()); got != 1 {
		t.Fatalf("expected 1 listener after double register, got %d", got)
	}
}

func TestRegisterNilIsNoop(t *testing.T) {
	b := New()
	b.Register(nil)
	if got := len(b.Listeners()); got != 0 {
		t.Fatalf("expected no listeners, got %d", got)
	}
}

func TestUnregisterRemovesOnlyTarget(t *testing.T) {
	b := New()
	first := &recordingListener{}
	second := &recordingListener{}
	b.Register(first)
	b.Register(second)

	b.Unregister(first)

	listeners := b.Listeners()
	if len(listeners) != 1 {
		t.Fatalf("expected 1 listener, got %d", len(listeners))
	}
	if listeners[0] != Listener(second) {
		t.Fatal("wrong listener removed")
	}

	// Removing an unknown listener must not panic or change anything.
	b.Unregister(first)
	if got := len(b.Listeners()); got != 1 {
		t.Fatalf("expected 1 listener, got %d", got)
	}
}

func TestDispatchReachesEveryListener(t *testing.T) {
	b := New()
	first := &recordingListener{}
	second := &recordingListener{}
	b.Register(first)
	b.Register(second)

	b.Dispatch(Record{Logger: "x", Level: slog.LevelInfo, Message: "hello"})

	for i, l := range []*recordingListener{first, second} {
		records := l.all()
		if len(records) != 1 {
			t.Fatalf("listener %d: expected 1 record, got %d", i, len(records))
		}
		if records[0].Message != "hello" {
			t.Fatalf("listener %d: unexpected message %q", i, records[0].Message)
		}
	}
}

func TestMinLevelDefaultsToWarn(t *testing.T) {
	b := New()
	if got := b.MinLevel(); got != slog.LevelWarn {
		t.Fatalf("expected default minimum %v, got %v", slog.LevelWarn, got)
	}
	b.SetMinLevel(LevelUnfiltered)
	if got := b.MinLevel(); got != LevelUnfiltered {
		t.Fatalf("expected %v, got %v", LevelUnfiltered, got)
	}
}

func TestSlogHandlerRespectsMinLevel(t *testing.T) {
	b := New()
	h := NewSlogHandler(b, "bridge")
	logger := slog.New(h)
	listener := &recordingListener{}
	b.Register(listener)

	logger.Info("below the default minimum")
	if got := len(listener.all()); got != 0 {
		t.Fatalf("expected info to be filtered at %v, got %d records", b.MinLevel(), got)
	}

	b.SetMinLevel(slog.LevelDebug)
	logger.Info("now visible")
	records := listener.all()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Logger != "bridge" {
		t.Fatalf("expected logger name %q, got %q", "bridge", records[0].Logger)
	}
}

func TestSlogHandlerFlattensAttrs(t *testing.T) {
	b := New()
	b.SetMinLevel(slog.LevelDebug)
	listener := &recordingListener{}
	b.Register(listener)

	logger := slog.New(NewSlogHandler(b, "bridge")).
		With(slog.String("component", "test")).
		WithGroup("req")
	logger.Warn("grouped", slog.String("id", "42"), slog.Group("peer", slog.String("host", "a")))

	records := listener.all()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	fields := records[0].Fields
	if fields["component"] != "test" {
		t.Fatalf("expected pre-attr outside the group, got %v", fields)
	}
	if fields["req.id"] != "42" {
		t.Fatalf("expected dotted group key, got %v", fields)
	}
	if fields["req.peer.host"] != "a" {
		t.Fatalf("expected nested group key, got %v", fields)
	}
}

func TestSlogHandlerPromotesError(t *testing.T) {
	b := New()
	listener := &recordingListener{}
	b.Register(listener)

	boom := errors.New("boom")
	slog.New(NewSlogHandler(b, "bridge")).Error("failed", slog.Any(FieldError, boom))

	records := listener.all()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !errors.Is(records[0].Err, boom) {
		t.Fatalf("expected structured error to be promoted, got %v", records[0].Err)
	}
	if _, ok := records[0].Fields[FieldError]; ok {
		t.Fatal("error should not also appear as a string field")
	}
}
