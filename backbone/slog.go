package backbone

import (
	"context"
	"log/slog"
)

// FieldError is the attribute key whose error value is promoted into
// Record.Err.
const FieldError = "error"

// slogHandler feeds records logged through the standard log/slog API into a
// backbone, so code that never heard of this module still participates in
// aggregation.
type slogHandler struct {
	backbone *Backbone
	name     string
	attrs    []prefixedAttr
	groups   []string
}

// prefixedAttr remembers the group prefix that was open when the attribute
// was attached, since later WithGroup calls must not re-qualify it.
type prefixedAttr struct {
	prefix string
	attr   slog.Attr
}

// NewSlogHandler returns a slog.Handler that dispatches every record into b
// under the given logger name. A nil backbone means Default().
func NewSlogHandler(b *Backbone, name string) slog.Handler {
	if b == nil {
		b = Default()
	}
	return &slogHandler{backbone: b, name: name}
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.backbone.MinLevel()
}

func (h *slogHandler) Handle(_ context.Context, record slog.Record) error {
	rec := Record{
		Logger:  h.name,
		Level:   record.Level,
		Time:    record.Time,
		Message: record.Message,
	}
	for _, pa := range h.attrs {
		addAttr(&rec, pa.prefix, pa.attr)
	}
	prefix := joinGroups(h.groups)
	record.Attrs(func(attr slog.Attr) bool {
		addAttr(&rec, prefix, attr)
		return true
	})
	h.backbone.Dispatch(rec)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	prefix := joinGroups(h.groups)
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, prefixedAttr{prefix: prefix, attr: attr})
	}
	return clone
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *slogHandler) clone() *slogHandler {
	return &slogHandler{
		backbone: h.backbone,
		name:     h.name,
		attrs:    append([]prefixedAttr(nil), h.attrs...),
		groups:   append([]string(nil), h.groups...),
	}
}

func addAttr(rec *Record, prefix string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	key := attr.Key
	if prefix != "" {
		if key != "" {
			key = prefix + "." + key
		} else {
			key = prefix
		}
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, nested := range attr.Value.Group() {
			addAttr(rec, key, nested)
		}
		return
	}
	if key == "" {
		return
	}
	if err, ok := attr.Value.Any().(error); ok && key == FieldError && rec.Err == nil {
		rec.Err = err
		return
	}
	rec.SetField(key, attr.Value.String())
}

func joinGroups(groups []string) string {
	prefix := ""
	for _, g := range groups {
		if g == "" {
			continue
		}
		if prefix == "" {
			prefix = g
		} else {
			prefix += "." + g
		}
	}
	return prefix
}
