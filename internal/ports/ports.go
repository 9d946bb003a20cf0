package ports

import (
	"context"
	"time"

	"WerchterMonitor/internal/domain"
)

// ItemSource pulls the current list of news items from upstream.
type ItemSource interface {
	Fetch(ctx context.Context) ([]domain.Item, error)
}

// ProcessedStore remembers which items were already delivered.
type ProcessedStore interface {
	Load(ctx context.Context) error
	IsProcessed(link string) bool
	MarkProcessed(ctx context.Context, item domain.Item) error
	FilterUnprocessed(items []domain.Item) []domain.Item
	PruneOlderThan(ctx context.Context, maxAgeDays int, now time.Time) (int, error)
}

// RecordPersister loads and saves the full set of processed records.
type RecordPersister interface {
	Load(ctx context.Context) (map[string]domain.ProcessedRecord, error)
	Save(ctx context.Context, records map[string]domain.ProcessedRecord) error
}

// Messenger delivers payloads to the configured chat and owns the outbound
// session. Reset tears the session down so the next send starts fresh.
type Messenger interface {
	SendText(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, photoURL, caption string) error
	Reset()
	Close() error
}

// Deliverer sends one item and reports the outcome as a boolean.
type Deliverer interface {
	Send(ctx context.Context, item domain.Item) bool
	Close() error
}

// Clock abstracts wall time and cancellable waiting.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Schedule yields the next activation time after a successful cycle.
type Schedule interface {
	Next(time.Time) time.Time
}
