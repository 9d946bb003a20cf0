package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelCritical sits above error and marks conditions that need an operator.
const LevelCritical = slog.Level(12)

type options struct {
	console    io.Writer
	filePath   string
	maxSizeMB  int
	maxBackups int
}

// Option customises New.
type Option func(*options)

// WithOutput replaces stdout as the console destination.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithFile adds a rotating JSON log file next to the console output.
func WithFile(path string, maxSizeMB, maxBackups int) Option {
	return func(o *options) {
		o.filePath = path
		o.maxSizeMB = maxSizeMB
		o.maxBackups = maxBackups
	}
}

// New creates a console slog.Logger with provided level string, optionally
// fanned out to a rotating file. The returned close func is never nil.
func New(level string, opts ...Option) (*slog.Logger, func() error) {
	o := options{console: os.Stdout, maxSizeMB: 5, maxBackups: 5}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       levelFromString(level),
		ReplaceAttr: replaceLevel,
	}
	handlers := []slog.Handler{slog.NewTextHandler(o.console, handlerOpts)}
	closeFn := func() error { return nil }

	if strings.TrimSpace(o.filePath) != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.filePath,
			MaxSize:    o.maxSizeMB,
			MaxBackups: o.maxBackups,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, handlerOpts))
		closeFn = rotator.Close
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn
	}
	return slog.New(Fanout(handlers...)), closeFn
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "critical":
		return LevelCritical
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}

// fanout duplicates records to every handler that accepts them.
type fanout struct{ hs []slog.Handler }

// Fanout combines handlers into one.
func Fanout(h ...slog.Handler) slog.Handler { return &fanout{hs: h} }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.hs {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanout{hs: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithGroup(name)
	}
	return &fanout{hs: hs}
}
