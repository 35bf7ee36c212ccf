package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level string // debug, info, warn, error
	File  string // optional rotating log file in addition to STDOUT
	Quiet bool   // skip STDOUT, e.g. while a terminal UI owns the screen
}

// New returns a logger configured with a text handler writing to STDOUT.
// When opts.File is set, output is mirrored into a size-rotated file.
func New(opts Options) *slog.Logger {
	var ws []io.Writer
	if !opts.Quiet {
		ws = append(ws, os.Stdout)
	}
	if opts.File != "" {
		ws = append(ws, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    32, // MB
			MaxBackups: 3,
			Compress:   true,
		})
	}
	out := io.Discard
	if len(ws) > 0 {
		out = io.MultiWriter(ws...)
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey struct{}

// NewContext returns a copy of ctx with the logger stored.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves a logger from ctx or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
