package logging

import (
	"context"
	"log/slog"
)

// FieldSessionID carries the daemon run identifier on every record.
const FieldSessionID = "session_id"

// stampHandler appends a fixed set of attributes to every record at Handle
// time, so they appear after the record's own fields.
type stampHandler struct {
	next  slog.Handler
	stamp []slog.Attr
}

func newSessionIDHandler(next slog.Handler, sessionID string) slog.Handler {
	return newStampHandler(next, slog.String(FieldSessionID, sessionID))
}

func newStampHandler(next slog.Handler, stamp ...slog.Attr) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	if len(stamp) == 0 {
		return next
	}
	return stampHandler{next: next, stamp: stamp}
}

func (h stampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h stampHandler) Handle(ctx context.Context, record slog.Record) error {
	record = record.Clone()
	record.AddAttrs(h.stamp...)
	return h.next.Handle(ctx, record)
}

func (h stampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return stampHandler{next: h.next.WithAttrs(attrs), stamp: h.stamp}
}

func (h stampHandler) WithGroup(name string) slog.Handler {
	return stampHandler{next: h.next.WithGroup(name), stamp: h.stamp}
}
