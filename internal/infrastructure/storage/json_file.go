package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/ports"
)

// timestampLayouts are accepted when reading processed_at. Files written by
// older deployments carry naive local timestamps without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type jsonRecord struct {
	Title       string  `json:"title"`
	Date        string  `json:"date"`
	Link        string  `json:"link"`
	ImageURL    *string `json:"image_url"`
	ProcessedAt string  `json:"processed_at"`
}

// JSONFile persists records as one pretty-printed JSON object keyed by link.
type JSONFile struct {
	path   string
	logger *slog.Logger
}

var _ ports.RecordPersister = (*JSONFile)(nil)

// NewJSONFile points the persister at path; parent directories are created
// on first load.
func NewJSONFile(path string, logger *slog.Logger) *JSONFile {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONFile{path: path, logger: logger}
}

// Path is the backing file location.
func (f *JSONFile) Path() string { return f.path }

// Load reads the file, creating an empty one when it does not exist yet.
func (f *JSONFile) Load(ctx context.Context) (map[string]domain.ProcessedRecord, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		empty := map[string]domain.ProcessedRecord{}
		if err := f.Save(ctx, empty); err != nil {
			return nil, err
		}
		f.logger.Info("created empty store file", "path", f.path)
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	var decoded map[string]jsonRecord
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}

	records := make(map[string]domain.ProcessedRecord, len(decoded))
	for link, rec := range decoded {
		processedAt, err := parseTimestamp(rec.ProcessedAt)
		if err != nil {
			f.logger.Warn("unreadable processed_at, keeping record as fresh", "link", link, "value", rec.ProcessedAt)
			processedAt = time.Now()
		}
		out := domain.ProcessedRecord{
			Link:        rec.Link,
			Title:       rec.Title,
			DisplayDate: rec.Date,
			ProcessedAt: processedAt,
		}
		if out.Link == "" {
			out.Link = link
		}
		if rec.ImageURL != nil {
			out.ImageURL = *rec.ImageURL
		}
		records[link] = out
	}
	return records, nil
}

// Save writes every record to a temporary file and renames it into place.
func (f *JSONFile) Save(ctx context.Context, records map[string]domain.ProcessedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded := make(map[string]jsonRecord, len(records))
	for link, rec := range records {
		out := jsonRecord{
			Title:       rec.Title,
			Date:        rec.DisplayDate,
			Link:        rec.Link,
			ProcessedAt: rec.ProcessedAt.Format(time.RFC3339Nano),
		}
		if rec.ImageURL != "" {
			image := rec.ImageURL
			out.ImageURL = &image
		}
		encoded[link] = out
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(encoded); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}

	f.logger.Debug("store persisted", "path", f.path, "records", len(records))
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
