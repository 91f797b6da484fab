// Package logging builds the process logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

var secretKeys = map[string]bool{
	"token":         true,
	"bot_token":     true,
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"password":      true,
	"secret":        true,
}

// New returns a logger writing to w: text on a terminal, JSON otherwise.
// Any non-empty secret is masked wherever it shows up in a string or error
// attribute, which keeps the bot token out of logged request URLs.
func New(w io.Writer, verbose bool, secrets ...string) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(NewRedactHandler(handler, secrets...)), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// RedactHandler wraps a slog.Handler and masks secrets before records reach it.
type RedactHandler struct {
	handler slog.Handler
	secrets []string
}

// NewRedactHandler wraps handler. Empty secrets are ignored.
func NewRedactHandler(handler slog.Handler, secrets ...string) *RedactHandler {
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return &RedactHandler{handler: handler, secrets: kept}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.mask(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(redacted), secrets: h.secrets}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name), secrets: h.secrets}
}

func (h *RedactHandler) redact(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		group := v.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = h.redact(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.mask(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			msg := err.Error()
			if masked := h.mask(msg); masked != msg {
				return slog.String(a.Key, masked)
			}
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func (h *RedactHandler) mask(s string) string {
	for _, secret := range h.secrets {
		s = strings.ReplaceAll(s, secret, MaskValue)
	}
	return s
}
