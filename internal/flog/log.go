// Package flog provides the structured logging used by the accountant
// and the CLI, built on log/slog.
package flog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Format selects the slog handler used by New.
type Format int

const (
	// FormatText is human-readable, meant for an interactive terminal.
	FormatText Format = iota
	// FormatJSON is meant for log aggregation.
	FormatJSON
)

// New builds a logger writing to w in the given format at the given
// level. Callers thread the returned logger explicitly; there is no
// package-level default, so two queries in the same process (the
// accountant and the freelist check, say) can log independently.
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard is a logger that drops everything, for callers (tests,
// library consumers who don't want output) that don't want diagnostics
// printed but still need a non-nil *slog.Logger to pass in.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Stderr is the common case: text logger at Info level to os.Stderr.
func Stderr() *slog.Logger {
	return New(os.Stderr, slog.LevelInfo, FormatText)
}

// PageAttr is a shorthand for attaching a page number to a log line.
func PageAttr(pgno uint32) slog.Attr {
	return slog.Uint64("page", uint64(pgno))
}

// ctxKey is the context key under which Into stores a logger and From
// looks it up.
type ctxKey struct{}

// Into returns a context carrying logger.
func Into(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From extracts the logger stashed by Into, or Discard() if none was
// ever stashed.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Discard()
}
