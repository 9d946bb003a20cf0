package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/ports"
)

const (
	// DefaultMaxRetries is the number of delivery attempts per item.
	DefaultMaxRetries = 3

	retryBaseDelay = 5 * time.Second
	retryMaxDelay  = 60 * time.Second
)

// DeliveryDeps wires the delivery pipeline.
type DeliveryDeps struct {
	Messenger  ports.Messenger
	Clock      ports.Clock
	Limiter    *rate.Limiter
	MaxRetries int
	Logger     *slog.Logger
}

// Delivery sends single items with bounded retries. Failures never escape
// as errors or panics: callers only see the boolean outcome.
type Delivery struct {
	messenger  ports.Messenger
	clock      ports.Clock
	limiter    *rate.Limiter
	maxRetries int
	logger     *slog.Logger
}

var _ ports.Deliverer = (*Delivery)(nil)

// NewDelivery constructs the delivery pipeline.
func NewDelivery(deps DeliveryDeps) *Delivery {
	if deps.MaxRetries <= 0 {
		deps.MaxRetries = DefaultMaxRetries
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Delivery{
		messenger:  deps.Messenger,
		clock:      deps.Clock,
		limiter:    deps.Limiter,
		maxRetries: deps.MaxRetries,
		logger:     deps.Logger,
	}
}

// RetryDelay is the wait after the failed attempt with zero-based index attempt.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 4 {
		return retryMaxDelay
	}
	return min(retryBaseDelay<<attempt, retryMaxDelay)
}

// Send delivers item as a photo with caption when it has an image and as a
// text message otherwise. It returns true on the first successful attempt.
func (d *Delivery) Send(ctx context.Context, item domain.Item) bool {
	message := BuildMessage(item)
	image, hasImage := item.ImageURL()

	for attempt := 0; attempt < d.maxRetries; attempt++ {
		err := d.attempt(ctx, message, image, hasImage)
		if err == nil {
			d.logger.Info("notification sent", "title", item.Title(), "attempt", attempt+1)
			return true
		}

		d.messenger.Reset()

		if ctx.Err() != nil {
			d.logger.Warn("delivery interrupted", "title", item.Title(), "error", err)
			return false
		}

		if attempt == d.maxRetries-1 {
			d.logger.Error("delivery failed after all attempts",
				"title", item.Title(),
				"attempts", d.maxRetries,
				"error", err)
			return false
		}

		wait := RetryDelay(attempt)
		d.logger.Warn("delivery attempt failed",
			"title", item.Title(),
			"attempt", attempt+1,
			"max_attempts", d.maxRetries,
			"retry_in", wait,
			"error", err)

		if err := d.clock.Sleep(ctx, wait); err != nil {
			d.logger.Warn("delivery interrupted", "title", item.Title(), "error", err)
			return false
		}
	}

	return false
}

// Close releases the outbound session.
func (d *Delivery) Close() error {
	return d.messenger.Close()
}

func (d *Delivery) attempt(ctx context.Context, message, image string, hasImage bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrDelivery, r)
		}
	}()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limit: %w", domain.ErrDelivery, err)
		}
	}

	if hasImage {
		err = d.messenger.SendPhoto(ctx, image, message)
	} else {
		err = d.messenger.SendText(ctx, message)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	return nil
}

// BuildMessage renders the Markdown notification for item.
func BuildMessage(item domain.Item) string {
	return fmt.Sprintf("🎸 *New Rock Werchter news*\n\n📌 *%s*\n📅 Date: %s\n🔗 [Read more](%s)",
		escapeMarkdown(item.Title()),
		item.FormattedDate(),
		item.Link())
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
