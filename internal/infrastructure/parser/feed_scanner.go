package parser

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/scanner"
)

var htmlStripper = bluemonday.StrictPolicy()

// FeedScanner reads an RSS, Atom or JSON feed as an alternative source.
type FeedScanner struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

// NewFeedScanner wires a gofeed parser around client (nil keeps gofeed's default).
func NewFeedScanner(client *http.Client, logger *slog.Logger) *FeedScanner {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedScanner{parser: p, logger: logger}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "rss"
}

// Scan fetches the feed and converts every entry that has a link.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	if req.UserAgent != "" {
		f.parser.UserAgent = req.UserAgent
	}

	feed, err := f.parser.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", req.URL, err)
	}

	items := make([]domain.Item, 0, len(feed.Items))
	for i, entry := range feed.Items {
		item, err := convertEntry(entry)
		if err != nil {
			f.logger.Error("skip feed entry", "index", i, "error", err)
			continue
		}
		items = append(items, item)
	}

	f.logger.Debug("feed parsed", "url", req.URL, "title", feed.Title, "items", len(items))
	return items, nil
}

func convertEntry(entry *gofeed.Item) (domain.Item, error) {
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		return domain.Item{}, fmt.Errorf("%w: feed entry %q has no link", domain.ErrParse, entry.Title)
	}

	dateText := strings.TrimSpace(entry.Published)
	switch {
	case entry.PublishedParsed != nil:
		dateText = entry.PublishedParsed.Format(time.DateOnly)
	case entry.UpdatedParsed != nil:
		dateText = entry.UpdatedParsed.Format(time.DateOnly)
	}

	return domain.NewItem(stripHTML(entry.Title), dateText, link, entryImage(entry)), nil
}

func entryImage(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func stripHTML(s string) string {
	s = htmlStripper.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}
