package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"WerchterMonitor/internal/domain"
	"WerchterMonitor/internal/scanner"
)

const (
	// DefaultWerchterURL is the festival news page.
	DefaultWerchterURL = "https://www.rockwerchter.be/en/"

	defaultUserAgent = "WerchterMonitor/1.0"

	cardSelector  = ".card-grid__grid .card"
	titleSelector = ".card__title"
	infoSelector  = ".card__info"
	imageSelector = ".card__image img"

	// infoCutMarker ends the date part of a card's info line.
	infoCutMarker = "visit"
)

// WerchterScanner reads the news cards from the Rock Werchter site.
type WerchterScanner struct {
	client *http.Client
	logger *slog.Logger
}

// NewWerchterScanner wires an HTTP client; a 20s timeout client is used when nil.
func NewWerchterScanner(client *http.Client, logger *slog.Logger) *WerchterScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WerchterScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (w *WerchterScanner) Name() string {
	return "werchter"
}

// Scan downloads the page and returns one item per well-formed card.
// Malformed cards are logged and skipped.
func (w *WerchterScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	pageURL := req.URL
	if pageURL == "" {
		pageURL = DefaultWerchterURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", pageURL, err)
	}

	doc, err := w.fetchDocument(ctx, pageURL, req.UserAgent)
	if err != nil {
		return nil, err
	}

	var items []domain.Item
	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		item, err := parseCard(card, base)
		if err != nil {
			w.logger.Error("skip news card", "index", i, "error", err)
			return
		}
		items = append(items, item)
	})

	w.logger.Debug("cards parsed", "url", pageURL, "items", len(items))
	return items, nil
}

func (w *WerchterScanner) fetchDocument(ctx context.Context, pageURL, userAgent string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if err := scanner.CheckStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func parseCard(card *goquery.Selection, base *url.URL) (domain.Item, error) {
	href, ok := card.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.Item{}, fmt.Errorf("%w: card has no link", domain.ErrParse)
	}
	link, err := resolve(base, href)
	if err != nil {
		return domain.Item{}, fmt.Errorf("%w: card link %q: %w", domain.ErrParse, href, err)
	}

	titleNode := card.Find(titleSelector).First()
	if titleNode.Length() == 0 {
		return domain.Item{}, fmt.Errorf("%w: card %s has no title", domain.ErrParse, link)
	}
	title := strings.TrimSpace(titleNode.Text())

	var dateText string
	if info := card.Find(infoSelector).First(); info.Length() > 0 {
		dateText, _, _ = strings.Cut(info.Text(), infoCutMarker)
		dateText = strings.TrimSpace(dateText)
	}

	var imageURL string
	if src, ok := card.Find(imageSelector).First().Attr("src"); ok {
		if resolved, err := resolve(base, src); err == nil {
			imageURL = resolved
		}
	}

	return domain.NewItem(title, dateText, link, imageURL), nil
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}
