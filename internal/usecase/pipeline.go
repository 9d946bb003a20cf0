package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/ports"
)

// PipelineDeps wires all driven adapters into one fetch/deliver cycle.
type PipelineDeps struct {
	Source     ports.ItemSource
	Store      ports.ProcessedStore
	Delivery   ports.Deliverer
	Clock      ports.Clock
	MaxAgeDays int
	Logger     *slog.Logger
}

// Pipeline runs a single cycle: fetch, sort, filter, deliver each, prune.
type Pipeline struct {
	source     ports.ItemSource
	store      ports.ProcessedStore
	delivery   ports.Deliverer
	clock      ports.Clock
	maxAgeDays int
	logger     *slog.Logger
}

// NewPipeline constructs the cycle orchestrator.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		source:     deps.Source,
		store:      deps.Store,
		delivery:   deps.Delivery,
		clock:      deps.Clock,
		maxAgeDays: deps.MaxAgeDays,
		logger:     deps.Logger,
	}
}

// Outcome is the result of handling one item inside a batch.
type Outcome int

const (
	// OutcomeDelivered means the item was sent and durably marked.
	OutcomeDelivered Outcome = iota
	// OutcomeUnpersisted means the item was sent but the store write failed.
	OutcomeUnpersisted
	// OutcomeFailed means every delivery attempt failed; the item stays unprocessed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeUnpersisted:
		return "unpersisted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleReport summarises one cycle.
type CycleReport struct {
	Fetched   int
	Fresh     int
	Delivered int
	Failed    int
	Pruned    int
}

// RunCycle performs one full pass. Only a fetch failure or cancellation is
// returned as an error; item and storage problems are logged and counted.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	log := p.logger.With("cycle_id", uuid.NewString())

	items, err := p.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	report.Fetched = len(items)

	domain.SortItems(items)
	fresh := p.store.FilterUnprocessed(items)
	report.Fresh = len(fresh)

	if len(fresh) == 0 {
		log.Info("no new items", "fetched", len(items))
	} else {
		log.Info("processing new items", "fetched", len(items), "new", len(fresh))
	}

	for _, item := range fresh {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		switch p.deliverOne(ctx, log, item) {
		case OutcomeDelivered, OutcomeUnpersisted:
			report.Delivered++
		case OutcomeFailed:
			report.Failed++
		}
	}

	pruned, err := p.store.PruneOlderThan(ctx, p.maxAgeDays, p.clock.Now())
	if err != nil {
		log.Warn("prune failed", "error", err)
	}
	report.Pruned = pruned

	return report, nil
}

// deliverOne handles a single item; nothing it does aborts the batch.
func (p *Pipeline) deliverOne(ctx context.Context, log *slog.Logger, item domain.Item) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected failure processing item", "title", item.Title(), "panic", r)
			outcome = OutcomeFailed
		}
	}()

	log.Info("processing item", "title", item.Title(), "link", item.Link())

	if !p.delivery.Send(ctx, item) {
		log.Error("item could not be delivered", "title", item.Title())
		return OutcomeFailed
	}

	// A sent item is recorded even when shutdown began during the send.
	if err := p.store.MarkProcessed(context.WithoutCancel(ctx), item); err != nil {
		log.Warn("item delivered but not persisted", "title", item.Title(), "error", err)
		return OutcomeUnpersisted
	}
	return OutcomeDelivered
}
