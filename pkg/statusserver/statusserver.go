// Package statusserver exposes the run's current phase and progress counts
// over HTTP, bound via the optional --status-addr flag (SPEC_FULL §5/§6
// expansion; no original_source counterpart — the reference scraper has no
// status surface at all). It is a side channel only: it never touches
// pkg/arguments' credential and is not a suspension point for any pipeline
// task.
package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
)

// Snapshot is the current phase and progress counters, published
// atomically by the scrape loop and served verbatim as JSON.
type Snapshot struct {
	Phase             string `json:"phase"`
	Category          string `json:"category"`
	ComponentsScraped int    `json:"components_scraped"`
	ComponentsMissed  int    `json:"components_missed"`
}

// Publisher holds the latest Snapshot behind an atomic pointer so the
// scrape loop (writer) and the HTTP handler (reader) never share a lock.
type Publisher struct {
	current atomic.Pointer[Snapshot]
}

// NewPublisher returns a Publisher seeded with a snapshot whose phase is
// "starting" and whose counters are zero.
func NewPublisher() *Publisher {
	p := &Publisher{}
	p.Publish(Snapshot{Phase: "starting"})
	return p
}

// Publish replaces the current snapshot. Safe for concurrent use; only the
// scrape loop's goroutine is expected to call it.
func (p *Publisher) Publish(s Snapshot) {
	p.current.Store(&s)
}

// Snapshot returns the most recently published snapshot.
func (p *Publisher) Snapshot() Snapshot {
	return *p.current.Load()
}

// Server serves a Publisher's snapshot over HTTP on a single /status route.
type Server struct {
	addr      string
	publisher *Publisher
	http      *http.Server
}

// New builds a Server bound to addr (e.g. ":8090"). It does not start
// listening until Run is called.
func New(addr string, publisher *Publisher) *Server {
	r := chi.NewRouter()
	s := &Server{addr: addr, publisher: publisher}
	r.Get("/status", s.handleStatus)
	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.publisher.Snapshot())
}

// Run starts the listener and blocks until ctx is cancelled, at which point
// it shuts the server down gracefully. A listen failure other than a clean
// shutdown is returned to the caller.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.http.Shutdown(context.Background())
	}
}
