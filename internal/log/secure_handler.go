package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
)

// SecureHandler is an slog.Handler that redacts credentials before records
// reach the wrapped handler. Site files carry custom request headers and
// crawled URLs may carry session tokens; neither may end up in a log.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next falls back to slog.Default().Handler().
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled reports whether the wrapped handler handles level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle redacts the record's attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs redacts attrs once and returns a handler carrying them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &SecureHandler{next: h.next.WithAttrs(redacted)}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

// redactAttr masks one attribute. Groups are walked recursively, and header
// maps are rendered with their secret values masked.
func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}

	case slog.KindString:
		if isSecretName(a.Key) {
			return slog.String(a.Key, MaskValue)
		}
		if masked, ok := redactString(a.Value.String()); ok {
			return slog.String(a.Key, masked)
		}

	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]string:
			return slog.Any(a.Key, redactHeaders(v))
		case http.Header:
			flat := make(map[string]string, len(v))
			for name := range v {
				flat[name] = v.Get(name)
			}
			return slog.Any(a.Key, redactHeaders(flat))
		}
		if isSecretName(a.Key) {
			return slog.String(a.Key, MaskValue)
		}

	default:
		if isSecretName(a.Key) {
			return slog.String(a.Key, MaskValue)
		}
	}
	return a
}

// NewSecureLogger returns a text logger on w. verbose lowers the level from
// Warn to Debug.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, levelFor(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with one JSON object per line.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, levelFor(verbose))))
}

// NewDiscardLogger returns a logger that drops everything.
// Components fall back to it when no logger is supplied.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func levelFor(verbose bool) *slog.HandlerOptions {
	if verbose {
		return &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	return &slog.HandlerOptions{Level: slog.LevelWarn}
}
