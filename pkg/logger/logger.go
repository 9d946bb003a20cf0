package logger

import (
	"log"
	"log/slog"
)

// New returns a stdlib *log.Logger that writes through base at level, tagged
// with component. Use it for libraries that only accept *log.Logger.
func New(base *slog.Logger, component string, level slog.Level) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), level)
}

// RedirectStdLog routes the global log package into base at level.
func RedirectStdLog(base *slog.Logger, level slog.Level) {
	std := New(base, "stdlog", level)
	log.SetFlags(0)
	log.SetPrefix("")
	log.SetOutput(std.Writer())
}
