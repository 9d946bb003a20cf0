package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/ports"
)

//go:embed migrations.sql
var migrations string

const processedTable = "processed_items"

// insertBatchSize keeps multi-row inserts well below SQLite's bound
// parameter limit (five parameters per row).
const insertBatchSize = 100

// SQLite persists processed records into a single SQLite table. Every save
// replaces the table contents inside one transaction.
type SQLite struct {
	db     *sql.DB
	qb     sq.StatementBuilderType
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.RecordPersister = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps SQLite away from SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = FULL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logger.Warn("sqlite pragma failed", "pragma", pragma, "path", path, "error", err)
		}
	}

	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{
		db:     db,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Load returns every stored record keyed by link.
func (s *SQLite) Load(ctx context.Context) (map[string]domain.ProcessedRecord, error) {
	query, args, err := s.qb.
		Select("link", "title", "display_date", "image_url", "processed_at").
		From(processedTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	records := map[string]domain.ProcessedRecord{}
	for rows.Next() {
		var (
			rec         domain.ProcessedRecord
			image       sql.NullString
			processedAt string
		)
		if err := rows.Scan(&rec.Link, &rec.Title, &rec.DisplayDate, &image, &processedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.ImageURL = image.String
		rec.ProcessedAt, err = parseTimestamp(processedAt)
		if err != nil {
			s.logger.Warn("unreadable processed_at, keeping record as fresh", "link", rec.Link, "value", processedAt)
			rec.ProcessedAt = s.now()
		}
		records[rec.Link] = rec
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return records, nil
}

// Save replaces the stored snapshot with records.
func (s *SQLite) Save(ctx context.Context, records map[string]domain.ProcessedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.qb.Delete(processedTable).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear processed: %w", err)
	}

	links := make([]string, 0, len(records))
	for link := range records {
		links = append(links, link)
	}
	for chunk := range slices.Chunk(links, insertBatchSize) {
		insert := s.qb.
			Insert(processedTable).
			Columns("link", "title", "display_date", "image_url", "processed_at")
		for _, link := range chunk {
			rec := records[link]
			var image any
			if rec.ImageURL != "" {
				image = rec.ImageURL
			}
			insert = insert.Values(link, rec.Title, rec.DisplayDate, image, rec.ProcessedAt.Format(time.RFC3339Nano))
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert processed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
