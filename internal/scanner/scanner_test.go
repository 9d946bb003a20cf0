package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"WerchterMonitor/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.Item, error) {
	return []domain.Item{domain.NewItem("t", "", "https://example.org/"+s.name, "")}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubScanner{name: "werchter"})
	reg.Register(stubScanner{name: "rss"})

	got, err := reg.Resolve("rss")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Name() != "rss" {
		t.Fatalf("unexpected scanner %s", got.Name())
	}

	_, err = reg.Resolve("atom")
	if err == nil || !strings.Contains(err.Error(), "rss werchter") {
		t.Fatalf("expected error listing known scanners, got %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ok")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if err := CheckStatus(resp); err != nil {
		t.Fatalf("200 must pass, got %v", err)
	}

	resp, err = http.Get(srv.URL + "/down")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	var statusErr *StatusError
	if err := CheckStatus(resp); !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 status error, got %v", err)
	}
}
