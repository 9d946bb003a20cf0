package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/ports"
)

// DefaultMaxAgeDays is how long processed records are remembered.
const DefaultMaxAgeDays = 30

// Store is the dedup store: an in-memory mapping of link to record, a
// redundant membership index, and a persister that receives every change.
// It is driven from a single goroutine and does no locking of its own.
type Store struct {
	persister ports.RecordPersister
	logger    *slog.Logger
	now       func() time.Time

	records map[string]domain.ProcessedRecord
	index   map[string]struct{}
}

var _ ports.ProcessedStore = (*Store)(nil)

// NewStore wires a persister; call Load before use.
func NewStore(persister ports.RecordPersister, logger *slog.Logger, now func() time.Time) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		persister: persister,
		logger:    logger,
		now:       now,
		records:   map[string]domain.ProcessedRecord{},
		index:     map[string]struct{}{},
	}
}

// Load replaces the in-memory state with the persisted one. Unreadable
// state is logged and replaced by an empty store, so it never fails.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Error("load processed records, starting empty", "error", err)
		records = nil
	}

	s.records = make(map[string]domain.ProcessedRecord, len(records))
	s.index = make(map[string]struct{}, len(records))
	for link, rec := range records {
		if rec.Link == "" {
			rec.Link = link
		}
		s.records[link] = rec
		s.index[link] = struct{}{}
	}
	s.checkConsistency()

	s.logger.Info("processed records loaded", "count", len(s.records))
	return nil
}

// IsProcessed reports whether link was already delivered.
func (s *Store) IsProcessed(link string) bool {
	_, ok := s.index[link]
	return ok
}

// MarkProcessed records item as delivered now and persists synchronously.
// Already processed items are left untouched. On a persist failure the
// in-memory state keeps the record and the wrapped error is returned.
func (s *Store) MarkProcessed(ctx context.Context, item domain.Item) error {
	link := item.Link()
	if s.IsProcessed(link) {
		return nil
	}

	s.records[link] = domain.NewProcessedRecord(item, s.now())
	s.index[link] = struct{}{}
	s.checkConsistency()

	if err := s.persist(ctx); err != nil {
		s.logger.Error("persist processed record", "link", link, "error", err)
		return err
	}

	s.logger.Info("item marked as processed", "title", item.Title(), "link", link)
	return nil
}

// FilterUnprocessed keeps the items not yet delivered, in input order.
func (s *Store) FilterUnprocessed(items []domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if !s.IsProcessed(item.Link()) {
			out = append(out, item)
		}
	}
	return out
}

// PruneOlderThan drops records processed more than maxAgeDays before now and
// persists only when something was removed. It returns the number removed.
func (s *Store) PruneOlderThan(ctx context.Context, maxAgeDays int, now time.Time) (int, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour

	var stale []string
	for link, rec := range s.records {
		if now.Sub(rec.ProcessedAt) > maxAge {
			stale = append(stale, link)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	for _, link := range stale {
		delete(s.records, link)
		delete(s.index, link)
	}
	s.checkConsistency()

	if err := s.persist(ctx); err != nil {
		s.logger.Error("persist after prune", "removed", len(stale), "error", err)
		return len(stale), err
	}

	s.logger.Info("old records pruned", "removed", len(stale), "max_age_days", maxAgeDays)
	return len(stale), nil
}

// Records returns a snapshot sorted by link.
func (s *Store) Records() []domain.ProcessedRecord {
	out := make([]domain.ProcessedRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.ProcessedRecord) int {
		return strings.Compare(a.Link, b.Link)
	})
	return out
}

// Len is the number of processed records.
func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) persist(ctx context.Context) error {
	if err := s.persister.Save(ctx, s.records); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

// checkConsistency verifies that mapping and index share one key set and
// rebuilds the index from the mapping when they do not.
func (s *Store) checkConsistency() {
	consistent := len(s.records) == len(s.index)
	if consistent {
		for link := range s.records {
			if _, ok := s.index[link]; !ok {
				consistent = false
				break
			}
		}
	}
	if consistent {
		return
	}

	s.logger.Error("dedup index out of sync, rebuilding", "records", len(s.records), "index", len(s.index))
	s.index = make(map[string]struct{}, len(s.records))
	for link := range s.records {
		s.index[link] = struct{}{}
	}
}
