package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/time/rate"

	"WerchterMonitor/internal/config"
	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/infrastructure/parser"
	"WerchterMonitor/internal/infrastructure/scheduler"
	"WerchterMonitor/internal/infrastructure/storage"
	"WerchterMonitor/internal/infrastructure/telegram"
	"WerchterMonitor/internal/scanner"
	"WerchterMonitor/internal/usecase"
)

const sourceTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	clock     scheduler.SystemClock
	scheduler *usecase.Scheduler

	closePersister func() error
}

// New builds the full object graph and loads the dedup store. Nothing
// talks to Telegram until the first delivery.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	clock := scheduler.SystemClock{}

	persister, closePersister, err := storage.OpenPersister(ctx, cfg.Store.Driver, cfg.Store.Path, baseLogger.With("component", "persister"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	store := storage.NewStore(persister, baseLogger.With("component", "store"), clock.Now)
	if err := store.Load(ctx); err != nil {
		_ = closePersister()
		return nil, err
	}

	httpClient := &http.Client{Timeout: sourceTimeout}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewWerchterScanner(httpClient, baseLogger.With("component", "scanner.werchter")))
	registry.Register(parser.NewFeedScanner(httpClient, baseLogger.With("component", "scanner.rss")))

	source := parser.NewStrategySource(registry, parser.SourceConfig{
		Scanner:   cfg.Source.Scanner,
		URL:       cfg.Source.URL,
		UserAgent: cfg.Source.UserAgent,
	}, baseLogger.With("component", "source"))

	notifier, err := telegram.NewNotifier(telegram.Config{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		APIURL:   cfg.Telegram.APIURL,
	}, baseLogger.With("component", "telegram"))
	if err != nil {
		_ = closePersister()
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	var limiter *rate.Limiter
	if cfg.Delivery.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Delivery.RatePerSecond), 1)
	}

	delivery := usecase.NewDelivery(usecase.DeliveryDeps{
		Messenger:  notifier,
		Clock:      clock,
		Limiter:    limiter,
		MaxRetries: cfg.Delivery.MaxRetries,
		Logger:     baseLogger.With("component", "delivery"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Store:      store,
		Delivery:   delivery,
		Clock:      clock,
		MaxAgeDays: cfg.Store.PruneMaxAgeDays,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	schedule, err := scheduler.NewSchedule(cfg.Scheduler.CronExpression, cfg.Scheduler.Interval(), cfg.Scheduler.Location())
	if err != nil {
		_ = closePersister()
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Pipeline:   pipeline,
		Store:      store,
		Delivery:   delivery,
		Clock:      clock,
		Schedule:   schedule,
		MaxAgeDays: cfg.Store.PruneMaxAgeDays,
		Logger:     baseLogger.With("component", "scheduler"),
	})

	return &Application{
		cfg:            cfg,
		logger:         baseLogger,
		store:          store,
		clock:          clock,
		scheduler:      sched,
		closePersister: closePersister,
	}, nil
}

// Run polls until ctx is cancelled, notifying systemd about readiness and
// shutdown when running under it.
func (a *Application) Run(ctx context.Context) error {
	a.notify(daemon.SdNotifyReady)
	err := a.scheduler.Run(ctx)
	a.notify(daemon.SdNotifyStopping)
	return err
}

// RunOnce performs a single monitoring cycle.
func (a *Application) RunOnce(ctx context.Context) error {
	return a.scheduler.RunOnce(ctx)
}

// Stop asks a running loop to shut down.
func (a *Application) Stop() {
	a.scheduler.Stop()
}

// Prune drops stored records older than maxAgeDays (the configured window
// when maxAgeDays is not positive) and reports how many went.
func (a *Application) Prune(ctx context.Context, maxAgeDays int) (int, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = a.cfg.Store.PruneMaxAgeDays
	}
	return a.store.PruneOlderThan(ctx, maxAgeDays, a.clock.Now())
}

// Records exposes the stored records for maintenance commands.
func (a *Application) Records() []domain.ProcessedRecord {
	return a.store.Records()
}

// Close releases the persister.
func (a *Application) Close() error {
	if a.closePersister == nil {
		return nil
	}
	return a.closePersister()
}

func (a *Application) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		a.logger.Warn("systemd notify failed", "state", state, "error", err)
	case sent:
		a.logger.Debug("systemd notified", "state", state)
	}
}

// IsConfigError reports whether err should terminate the process with a
// configuration failure.
func IsConfigError(err error) bool {
	return errors.Is(err, domain.ErrConfig)
}
