package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		" INFO ":   slog.LevelInfo,
		"warning":  slog.LevelWarn,
		"error":    slog.LevelError,
		"critical": LevelCritical,
		"":         slog.LevelInfo,
		"verbose":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewConsoleRendersCritical(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, closeFn := New("warn", WithOutput(&buf))
	defer closeFn()

	logger.Info("hidden")
	logger.Log(context.Background(), LevelCritical, "alarm", "consecutive_errors", 5)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "level=CRITICAL") || !strings.Contains(out, "msg=alarm") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestNewWritesFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "monitor.log")
	logger, closeFn := New("info", WithOutput(&buf), WithFile(path, 1, 1))

	logger.With("component", "test").Info("hello", "n", 1)
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(buf.String(), "component=test") {
		t.Fatalf("console output missing attrs: %s", buf.String())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "hello" || entry["component"] != "test" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
