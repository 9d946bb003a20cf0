package parser

import (
	"context"
	"fmt"
	"log/slog"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/ports"
	"WerchterMonitor/internal/scanner"
)

// SourceConfig selects the scanner strategy and the page it reads.
type SourceConfig struct {
	Scanner   string
	URL       string
	UserAgent string
}

// StrategySource implements ItemSource via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	cfg      SourceConfig
	logger   *slog.Logger
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with the configured source.
func NewStrategySource(reg *scanner.Registry, cfg SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		cfg:      cfg,
		logger:   log,
	}
}

// Fetch runs the configured scanner once. Any failure is a fetch failure
// for the whole cycle.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Item, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.cfg.Scanner)
	if err != nil {
		return nil, err
	}

	s.debug("fetch source", "scanner", strategy.Name(), "url", s.cfg.URL)
	items, err := strategy.Scan(ctx, scanner.Request{URL: s.cfg.URL, UserAgent: s.cfg.UserAgent})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", strategy.Name(), err)
	}

	s.debug("source produced items", "scanner", strategy.Name(), "count", len(items))
	return items, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
