package backbone

import (
	"log/slog"
	"time"
)

// Record is the unit of log data moved through the backbone and, once an
// interceptor picks it up, across process boundaries. Everything except Err
// survives JSON encoding; a structured error must be rendered into ErrText
// before the record leaves its process.
type Record struct {
	// Logger is the name of the logger that emitted the record.
	Logger string `json:"logger"`
	// Level is the severity the record was emitted at.
	Level slog.Level `json:"level"`
	// Time is the emission time.
	Time time.Time `json:"ts"`
	// Message is the log message. Aggregation consumers rewrite it with
	// origin attribution before dispatching into the sink.
	Message string `json:"msg"`

	// Err carries a structured error attached at the call site. It never
	// crosses the handoff channel.
	Err error `json:"-"`
	// ErrText is the rendered form of Err, produced by an interceptor
	// before forwarding.
	ErrText string `json:"err,omitempty"`

	// Fields holds the remaining call-site attributes as plain strings so
	// the record stays wire-safe.
	Fields map[string]string `json:"fields,omitempty"`

	// Handled marks a record that already passed through an aggregation
	// consumer, so listeners do not re-ingest a sink's own output.
	Handled bool `json:"handled,omitempty"`
}

// SetField records a call-site attribute, allocating the map on first use.
func (r *Record) SetField(key, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[key] = value
}
