package catalog

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/matzehuels/octoscrape/pkg/arguments"
	"github.com/matzehuels/octoscrape/pkg/codec"
	"github.com/matzehuels/octoscrape/pkg/observability"
	"github.com/matzehuels/octoscrape/pkg/octoclient"
	"github.com/matzehuels/octoscrape/pkg/taskrunner"
)

// ComponentCountWindow is one page request: a fully-specified filter
// combination plus the start offset and page limit to request.
type ComponentCountWindow struct {
	Filters map[string]codec.Bucket
	Start   int
	Limit   int
}

// RetrievalStats tallies how much of each combination's reported count was
// actually fetched, per §4.5's pagination/window-partitioning invariant.
type RetrievalStats struct {
	ComponentsScraped int
	ComponentsMissed  int
}

// PlanWindows partitions every combination's reported count into
// pagination windows of at most pageSize, after clamping the count to
// capCount (components beyond the cap are counted as missed, never
// fetched). Grounded on components/mod.rs's create_component_counts.
func PlanWindows(combinations []codec.BucketCombination, capCount, pageSize int) ([]ComponentCountWindow, RetrievalStats) {
	var windows []ComponentCountWindow
	var stats RetrievalStats

	for _, combo := range combinations {
		limited := combo.ComponentCount
		if limited > capCount {
			limited = capCount
		}
		stats.ComponentsScraped += limited
		if combo.ComponentCount > capCount {
			stats.ComponentsMissed += combo.ComponentCount - capCount
		}

		for start := 0; start < limited; start += pageSize {
			windows = append(windows, ComponentCountWindow{
				Filters: combo.Filters,
				Start:   start,
				Limit:   pageSize,
			})
		}
	}

	return windows, stats
}

// ComponentRetriever fetches the component page for every pagination
// window planned by PlanWindows, and captures the server's
// applied_category ancestry metadata once, from whichever response
// returns it first. Grounded on components/mod.rs's ComponentScraper and
// its one-shot metadata receiver.
type ComponentRetriever struct {
	client    *octoclient.Client
	batchSize int
}

// NewComponentRetriever builds a ComponentRetriever.
func NewComponentRetriever(client *octoclient.Client, batchSize int) *ComponentRetriever {
	return &ComponentRetriever{client: client, batchSize: batchSize}
}

// appliedCategoryCapture guards the one-shot applied_category capture:
// the first goroutine to observe a non-nil value wins, every later
// observation is discarded.
type appliedCategoryCapture struct {
	once sync.Once
	raw  json.RawMessage
}

func (c *appliedCategoryCapture) offer(raw json.RawMessage, ok bool) {
	if !ok {
		return
	}
	c.once.Do(func() { c.raw = raw })
}

// Retrieve fetches every window's component page and flattens the
// results. A window whose request fails is requeued by the task runner
// after a credential refresh until it succeeds; if the refresh itself
// fails or ctx is cancelled, Retrieve returns that error and no components.
func (r *ComponentRetriever) Retrieve(ctx context.Context, args *arguments.Arguments, refresher arguments.Refresher, categoryID string, windows []ComponentCountWindow, hooks taskrunner.Hooks) ([]json.RawMessage, json.RawMessage, error) {
	observability.Phase().OnRetrievalStart(ctx, len(windows))

	capture := &appliedCategoryCapture{}

	results, err := taskrunner.Run(ctx, windows, r.batchSize, args, refresher, hooks, func(ctx context.Context, w ComponentCountWindow) ([]json.RawMessage, error) {
		return r.fetchWindow(ctx, args, categoryID, w, capture)
	})
	if err != nil {
		observability.Phase().OnRetrievalComplete(ctx, 0, 0, 0, err)
		return nil, nil, err
	}

	var components []json.RawMessage
	for _, page := range results {
		components = append(components, page...)
	}

	observability.Phase().OnRetrievalComplete(ctx, len(components), 0, 0, nil)
	return components, capture.raw, nil
}

func (r *ComponentRetriever) fetchWindow(ctx context.Context, args *arguments.Arguments, categoryID string, w ComponentCountWindow, capture *appliedCategoryCapture) ([]json.RawMessage, error) {
	filterValues := make(map[string][]string, len(w.Filters))
	for id, bucket := range w.Filters {
		filterValues[id] = []string{bucket.Value()}
	}

	r.client.SetCredential(args.Credential())
	payload, err := codec.BuildComponentRetrievalPayload(categoryID, filterValues, w.Start, w.Limit)
	if err != nil {
		return nil, err
	}
	body, err := r.client.Post(ctx, payload)
	if err != nil {
		return nil, err
	}

	if raw, ok, parseErr := codec.ParseAppliedCategory(body); parseErr == nil {
		capture.offer(raw, ok)
	}

	return codec.ParseComponents(body)
}
