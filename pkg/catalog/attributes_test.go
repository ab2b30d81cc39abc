package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/octoscrape/pkg/arguments"
	"github.com/matzehuels/octoscrape/pkg/octoclient"
)

type stubRefresher struct{ credential string }

func (s stubRefresher) RefreshCredential(context.Context) (string, error) {
	return s.credential, nil
}

func TestAttributeScraperDiscoverSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"data": {"search": {"spec_aggs": [
				{"buckets": [{"count": 10, "display_value": "1k", "float_value": 1000.0}]}
			]}}
		}`))
	}))
	defer server.Close()

	client := octoclient.New(server.URL, "ua", "px")
	scraper := NewAttributeScraper(client)
	args := arguments.New("px", "ua", "Resistors", []string{"Resistance"})

	buckets, err := scraper.Discover(context.Background(), args, stubRefresher{}, "4287", []string{"305"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(buckets["305"]) != 1 {
		t.Fatalf("buckets[305] = %+v, want one bucket", buckets["305"])
	}
}

func TestAttributeScraperRetriesAfterTransientFailure(t *testing.T) {
	var attempt int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempt, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": {"search": {"spec_aggs": [{"buckets": []}]}}}`))
	}))
	defer server.Close()

	client := octoclient.New(server.URL, "ua", "stale")
	scraper := NewAttributeScraper(client)
	args := arguments.New("stale", "ua", "Resistors", []string{"Resistance"})

	buckets, err := scraper.Discover(context.Background(), args, stubRefresher{credential: "fresh"}, "4287", []string{"305"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(buckets["305"]) != 0 {
		t.Errorf("buckets[305] = %+v, want empty", buckets["305"])
	}
	if args.Credential() != "fresh" {
		t.Errorf("Credential() = %q, want fresh after retry", args.Credential())
	}
}

func TestAttributeScraperRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := octoclient.New(server.URL, "ua", "px")
	scraper := NewAttributeScraper(client)
	args := arguments.New("px", "ua", "Resistors", []string{"Resistance"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scraper.Discover(ctx, args, stubRefresher{}, "4287", []string{"305"})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
