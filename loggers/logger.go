package loggers

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Cybereason/epic-logging/backbone"
)

// FieldLogger is the attribute key carrying the emitting logger's name into
// output handlers.
const FieldLogger = "logger"

// Logger is a named emitter bound to a backbone. Records flow two ways on
// every call: into the logger's own output handlers, and onto the backbone
// where an installed interceptor may forward them to an aggregation
// session.
//
// A Logger with no explicit level resolves its effective level from the
// backbone minimum, so an installed interceptor (which lowers that minimum)
// sees everything such loggers emit.
type Logger struct {
	name     string
	bb       *backbone.Backbone
	level    *slog.LevelVar // nil: follow the backbone minimum
	handlers []slog.Handler
	closers  []io.Closer
}

// Option configures a Logger at construction time.
type Option func(*Logger)

// WithLevel pins the logger to an explicit level instead of following the
// backbone minimum.
func WithLevel(level slog.Level) Option {
	return func(l *Logger) {
		l.level = new(slog.LevelVar)
		l.level.Set(level)
	}
}

// WithBackbone binds the logger to a backbone other than the process
// default.
func WithBackbone(b *backbone.Backbone) Option {
	return func(l *Logger) {
		if b != nil {
			l.bb = b
		}
	}
}

// WithHandlers attaches output handlers. Without any, the logger still
// feeds the backbone; it just renders nothing itself.
func WithHandlers(handlers ...slog.Handler) Option {
	return func(l *Logger) {
		for _, h := range handlers {
			if h != nil {
				l.handlers = append(l.handlers, h)
			}
		}
	}
}

// New constructs a logger. An empty name is derived from the caller, so
// `loggers.New("")` at the top of a function names the logger after that
// function's package and name.
func New(name string, opts ...Option) *Logger {
	if name == "" {
		name = callerName(2)
	}
	l := &Logger{name: name, bb: backbone.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the logger's name.
func (l *Logger) Name() string {
	return l.name
}

// EffectiveLevel reports the level the logger currently emits at: its own
// explicit level, or the backbone minimum when none was set.
func (l *Logger) EffectiveLevel() slog.Level {
	if l.level != nil {
		return l.level.Level()
	}
	return l.bb.MinLevel()
}

// SetLevel adjusts the logger's explicit level. On a logger constructed
// without WithLevel it pins one; do that before the logger is shared.
func (l *Logger) SetLevel(level slog.Level) {
	if l.level == nil {
		l.level = new(slog.LevelVar)
	}
	l.level.Set(level)
}

// Enabled reports whether a record at the given level would be emitted.
func (l *Logger) Enabled(level slog.Level) bool {
	return level >= l.EffectiveLevel()
}

// Log emits a record at the given level. Attributes become record fields;
// an attribute built with Err attaches a structured error.
func (l *Logger) Log(level slog.Level, msg string, attrs ...slog.Attr) {
	if !l.Enabled(level) {
		return
	}
	rec := backbone.Record{
		Logger:  l.name,
		Level:   level,
		Time:    time.Now(),
		Message: msg,
	}
	for _, attr := range attrs {
		addAttr(&rec, attr)
	}
	l.write(rec)
	l.bb.Dispatch(rec)
}

// Debug emits a record at LevelDebug.
func (l *Logger) Debug(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelDebug, msg, attrs...)
}

// Info emits a record at LevelInfo.
func (l *Logger) Info(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelInfo, msg, attrs...)
}

// Warn emits a record at LevelWarn.
func (l *Logger) Warn(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelWarn, msg, attrs...)
}

// Error emits a record at LevelError.
func (l *Logger) Error(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelError, msg, attrs...)
}

// Err builds the attribute that attaches a structured error to a record.
func Err(err error) slog.Attr {
	return slog.Any(backbone.FieldError, err)
}

// Dispatch publishes an already-built record to the backbone (where an
// enclosing session's interceptor observes it; the handled-marker keeps it
// from being re-ingested) and then runs the output handlers, bypassing the
// logger's own level gate. Aggregation consumers deliver through here.
func (l *Logger) Dispatch(rec backbone.Record) {
	l.bb.Dispatch(rec)
	l.write(rec)
}

// Named returns a child logger called "parent.sub" that shares the parent's
// level, handlers, and backbone.
func (l *Logger) Named(sub string) *Logger {
	name := l.name
	if sub != "" {
		name = l.name + "." + sub
	}
	return &Logger{
		name:     name,
		bb:       l.bb,
		level:    l.level,
		handlers: append([]slog.Handler(nil), l.handlers...),
		closers:  nil, // the parent owns its files
	}
}

// Close releases resources owned by preconfigured loggers (files and file
// locks). Loggers built with New own nothing and Close is a no-op.
func (l *Logger) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.closers = nil
	return firstErr
}

func (l *Logger) write(rec backbone.Record) {
	if len(l.handlers) == 0 {
		return
	}
	ctx := context.Background()
	srec := slogRecord(rec)
	for _, h := range l.handlers {
		if h.Enabled(ctx, rec.Level) {
			_ = h.Handle(ctx, srec.Clone())
		}
	}
}

func addAttr(rec *backbone.Record, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		for _, nested := range attr.Value.Group() {
			if nested.Key != "" && attr.Key != "" {
				nested.Key = attr.Key + "." + nested.Key
			}
			addAttr(rec, nested)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	if err, ok := attr.Value.Any().(error); ok && attr.Key == backbone.FieldError && rec.Err == nil {
		rec.Err = err
		return
	}
	rec.SetField(attr.Key, attr.Value.String())
}

// slogRecord renders a backbone record for slog output handlers. Field
// order is deterministic so handler output is stable.
func slogRecord(rec backbone.Record) slog.Record {
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	out := slog.NewRecord(ts, rec.Level, rec.Message, 0)
	out.AddAttrs(slog.String(FieldLogger, rec.Logger))
	if len(rec.Fields) > 0 {
		keys := make([]string, 0, len(rec.Fields))
		for k := range rec.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.AddAttrs(slog.String(k, rec.Fields[k]))
		}
	}
	switch {
	case rec.ErrText != "":
		out.AddAttrs(slog.String(backbone.FieldError, rec.ErrText))
	case rec.Err != nil:
		out.AddAttrs(slog.Any(backbone.FieldError, rec.Err))
	}
	return out
}
