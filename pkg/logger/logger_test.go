package logger

import (
	"bytes"
	"log"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWritesThroughSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	New(base, "telebot", slog.LevelWarn).Print("poller stopped")

	out := buf.String()
	for _, want := range []string{"level=WARN", "component=telebot", "poller stopped"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestRedirectStdLog(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	prevOut, prevFlags, prevPrefix := log.Writer(), log.Flags(), log.Prefix()
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		log.SetPrefix(prevPrefix)
	})

	RedirectStdLog(base, slog.LevelInfo)
	log.Println("legacy message")

	if !strings.Contains(buf.String(), "legacy message") || !strings.Contains(buf.String(), "component=stdlog") {
		t.Fatalf("std log not redirected: %q", buf.String())
	}
}
