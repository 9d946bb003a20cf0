package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"WerchterMonitor/internal/domain"
)

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "processed.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	empty, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no records, got %d", len(empty))
	}

	at := time.Date(2024, time.October, 26, 9, 30, 0, 0, time.UTC)
	records := map[string]domain.ProcessedRecord{
		"a": {Link: "a", Title: "A", DisplayDate: "25 October 2024", ImageURL: "img", ProcessedAt: at},
		"b": {Link: "b", Title: "B", DisplayDate: "Date unavailable", ProcessedAt: at},
	}
	if err := db.Save(ctx, records); err != nil {
		t.Fatalf("save: %v", err)
	}

	delete(records, "a")
	if err := db.Save(ctx, records); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if rec := got["b"]; rec.Title != "B" || rec.ImageURL != "" || !rec.ProcessedAt.Equal(at) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestOpenPersister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	p, closeFn, err := OpenPersister(ctx, "json", filepath.Join(dir, "a.json"), nil)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, ok := p.(*JSONFile); !ok {
		t.Fatalf("expected *JSONFile, got %T", p)
	}
	_ = closeFn()

	p, closeFn, err = OpenPersister(ctx, "sqlite", filepath.Join(dir, "a.db"), nil)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if _, ok := p.(*SQLite); !ok {
		t.Fatalf("expected *SQLite, got %T", p)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, _, err := OpenPersister(ctx, "redis", "", nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSQLiteKeepsRecordWithBadTimestamp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "processed.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	loadedAt := time.Date(2024, time.October, 27, 8, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return loadedAt }

	at := time.Date(2024, time.October, 26, 9, 30, 0, 0, time.UTC)
	if err := db.Save(ctx, map[string]domain.ProcessedRecord{
		"good": {Link: "good", Title: "Good", DisplayDate: "26 October 2024", ProcessedAt: at},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := db.db.ExecContext(ctx,
		"INSERT INTO processed_items (link, title, display_date, image_url, processed_at) VALUES (?, ?, ?, NULL, ?)",
		"bad", "Bad", "Date unavailable", "yesterday-ish"); err != nil {
		t.Fatalf("insert raw row: %v", err)
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("one bad timestamp must not fail the load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both records, got %d", len(got))
	}
	if !got["bad"].ProcessedAt.Equal(loadedAt) {
		t.Fatalf("bad timestamp must be stamped with load time, got %v", got["bad"].ProcessedAt)
	}
	if !got["good"].ProcessedAt.Equal(at) {
		t.Fatalf("good record changed: %v", got["good"].ProcessedAt)
	}
}

func TestSQLiteSavesLargeSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "processed.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// 5 parameters per row puts this above the default bound-parameter limit
	// of older SQLite builds when sent as one statement.
	const n = 7000
	at := time.Date(2024, time.October, 26, 9, 30, 0, 0, time.UTC)
	records := make(map[string]domain.ProcessedRecord, n)
	for i := range n {
		link := fmt.Sprintf("https://www.rockwerchter.be/en/news/%d", i)
		records[link] = domain.ProcessedRecord{Link: link, Title: "T", DisplayDate: "26 October 2024", ProcessedAt: at}
	}

	if err := db.Save(ctx, records); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d records, got %d", n, len(got))
	}
}

func TestOpenSQLiteAppliesDurabilityPragmas(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "processed.db"), logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var mode string
	if err := db.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal, got %q", mode)
	}

	var sync int
	if err := db.db.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatalf("synchronous: %v", err)
	}
	if sync != 2 {
		t.Fatalf("expected synchronous=FULL (2), got %d", sync)
	}
	if logs.Len() != 0 {
		t.Fatalf("unexpected warnings: %s", logs.String())
	}
}
