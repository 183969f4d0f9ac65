package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger on stdout. Production emits JSON with
// source locations at info; other environments emit text at debug. A
// non-empty level ("debug", "info", "warn", "error", optionally with an
// offset such as "info+2") replaces the environment default.
func NewLogger(environment, level string) *slog.Logger {
	return newLogger(environment, level, os.Stdout)
}

func newLogger(environment, level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if environment == "production" {
		opts.Level = slog.LevelInfo
		opts.AddSource = true
	}
	if lvl, ok := parseLevel(level); ok {
		opts.Level = lvl
	}

	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	if s == "" {
		return 0, false
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, false
	}
	return lvl, true
}
