// Package arguments holds the run-scoped, occasionally-mutated state every
// task in a scrape shares: the upstream credential, the user agent, and a
// run correlation id. It is grounded on cli/mod.rs's Arguments type, with
// its read/write split turned into an explicit Go RWMutex discipline.
package arguments

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Refresher prompts for a fresh credential when the upstream API rejects
// the current one. Implementations live in internal/cli (interactive
// prompt) or can be stubbed for tests.
type Refresher interface {
	RefreshCredential(ctx context.Context) (string, error)
}

// Arguments is the shared, mutable run state. The credential is read far
// more often (once per outgoing request) than it is written (only on a
// refresh), so reads take an RLock and writes take a Lock.
//
// Arguments is safe for concurrent use by multiple goroutines.
type Arguments struct {
	mu sync.RWMutex

	credential string
	userAgent  string
	category   string
	attributes []string

	runID string
}

// New builds Arguments for a run. runID is generated via google/uuid so
// concurrent runs writing to the same save directory can be told apart in
// persisted run metadata.
func New(credential, userAgent, category string, attributes []string) *Arguments {
	return &Arguments{
		credential: credential,
		userAgent:  userAgent,
		category:   category,
		attributes: attributes,
		runID:      uuid.NewString(),
	}
}

// Credential returns the current upstream credential under a read lock.
func (a *Arguments) Credential() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.credential
}

// UserAgent returns the configured user agent string.
func (a *Arguments) UserAgent() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userAgent
}

// Category returns the category display name this run is scraping.
func (a *Arguments) Category() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.category
}

// Attributes returns the attribute display names this run is scraping.
func (a *Arguments) Attributes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.attributes))
	copy(out, a.attributes)
	return out
}

// RunID returns the run's correlation id.
func (a *Arguments) RunID() string {
	return a.runID
}

// Refresh obtains a new credential via r and installs it. Per
// process_tasks_helper's args.write().await.prompt_user_for_new_px_key(),
// this is called once per failed batch, never once per failed task: the
// caller (pkg/taskrunner) must not hold any read lock on Arguments while
// calling Refresh, since Refresh itself takes the write lock after the
// prompt returns — holding a read lock across Refresh would deadlock
// against that write lock.
func (a *Arguments) Refresh(ctx context.Context, r Refresher) error {
	credential, err := r.RefreshCredential(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.credential = credential
	a.mu.Unlock()
	return nil
}
