package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"WerchterMonitor/internal/scanner"
)

const newsPage = `<html><body>
<div class="card-grid__grid">
  <a class="card" href="/en/news/line-up-complete">
    <div class="card__image"><img src="/media/lineup.jpg"></div>
    <h3 class="card__title">  Line-up complete </h3>
    <p class="card__info">26 oktober 2024 visit the page</p>
  </a>
  <a class="card" href="https://www.rockwerchter.be/en/news/tickets">
    <h3 class="card__title">Tickets</h3>
  </a>
  <a class="card">
    <h3 class="card__title">No link</h3>
  </a>
  <a class="card" href="/en/news/untitled"></a>
</div>
<a class="card" href="/outside-grid"><h3 class="card__title">Ignored</h3></a>
</body></html>`

func TestWerchterScannerParsesCards(t *testing.T) {
	t.Parallel()

	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(newsPage))
	}))
	defer srv.Close()

	s := NewWerchterScanner(srv.Client(), nil)
	items, err := s.Scan(context.Background(), scanner.Request{URL: srv.URL + "/en/"})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if userAgent != defaultUserAgent {
		t.Fatalf("unexpected user agent %q", userAgent)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 well-formed cards, got %d", len(items))
	}

	first := items[0]
	if first.Title() != "Line-up complete" {
		t.Fatalf("unexpected title %q", first.Title())
	}
	if first.Link() != srv.URL+"/en/news/line-up-complete" {
		t.Fatalf("unexpected link %q", first.Link())
	}
	if first.DateText() != "26 oktober 2024" {
		t.Fatalf("date must stop before the marker, got %q", first.DateText())
	}
	if first.FormattedDate() != "26 October 2024" {
		t.Fatalf("unexpected formatted date %q", first.FormattedDate())
	}
	if img, ok := first.ImageURL(); !ok || img != srv.URL+"/media/lineup.jpg" {
		t.Fatalf("unexpected image %q (%v)", img, ok)
	}

	second := items[1]
	if second.Link() != "https://www.rockwerchter.be/en/news/tickets" {
		t.Fatalf("absolute links must be kept, got %q", second.Link())
	}
	if second.DateText() != "" {
		t.Fatalf("missing info must give empty date, got %q", second.DateText())
	}
	if _, ok := second.ImageURL(); ok {
		t.Fatal("card without image must have no image")
	}
}

func TestWerchterScannerStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewWerchterScanner(srv.Client(), nil).Scan(context.Background(), scanner.Request{URL: srv.URL})
	var statusErr *scanner.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestWerchterScannerEmptyPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>maintenance</p></body></html>"))
	}))
	defer srv.Close()

	items, err := NewWerchterScanner(srv.Client(), nil).Scan(context.Background(), scanner.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}
