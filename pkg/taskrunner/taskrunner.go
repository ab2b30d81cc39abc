// Package taskrunner implements the bounded-batch task runner that
// combination counting and component retrieval drive: both reduce to "run
// these tasks, in batches of B, retrying whatever fails after a credential
// refresh." Attribute discovery is a single request with its own retry loop
// and does not use the runner. The algorithm is grounded on
// batch_manager/fetch/tasks.rs's process_tasks_helper/join_current_tasks.
package taskrunner

import (
	"context"
	"sync"

	"github.com/matzehuels/octoscrape/pkg/arguments"
	"github.com/matzehuels/octoscrape/pkg/scrapeerrors"
)

// Hooks lets a caller observe batch progress without the runner importing
// any UI package directly.
type Hooks interface {
	// OnBatchStart reports the size of the batch about to run and how many
	// tasks remain queued behind it.
	OnBatchStart(batchSize, remaining int)
	// OnBatchFailures reports that a batch produced failures and a
	// credential refresh is about to be attempted.
	OnBatchFailures(failed int)
}

// NoopHooks discards all progress events.
type NoopHooks struct{}

func (NoopHooks) OnBatchStart(int, int) {}
func (NoopHooks) OnBatchFailures(int)   {}

// Run processes every item in items through fn, in batches of batchSize.
// Within a batch all tasks run concurrently and the runner waits for every
// one of them (via sync.WaitGroup, never errgroup: a single task's failure
// must never cancel its siblings still in flight — process_tasks_helper
// always lets the whole batch land before deciding what to do next).
//
// If any task in a batch fails, that batch's successes are still kept:
// args.Refresh is called once for the whole batch, and only the failed
// tasks are re-enqueued into the next batch. Every item in items therefore
// contributes exactly one result to the returned slice, in the absence of
// an unrecovered error (spec.md §4.6 step 4, §8's quantified invariant).
//
// Run returns early with an error if ctx is cancelled or if args.Refresh
// itself fails (a CREDENTIAL_REFRESH_FAILED error per pkg/scrapeerrors,
// always fatal).
func Run[T any, R any](ctx context.Context, items []T, batchSize int, args *arguments.Arguments, refresher arguments.Refresher, hooks Hooks, fn func(context.Context, T) (R, error)) ([]R, error) {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	if batchSize < 1 {
		batchSize = 1
	}

	queue := make([]T, len(items))
	copy(queue, items)

	var results []R

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		batchLen := batchSize
		if batchLen > len(queue) {
			batchLen = len(queue)
		}
		batch := queue[:batchLen]
		queue = queue[batchLen:]

		hooks.OnBatchStart(len(batch), len(queue))

		type outcome struct {
			item T
			res  R
			err  error
		}
		outcomes := make([]outcome, len(batch))

		var wg sync.WaitGroup
		for i, item := range batch {
			wg.Add(1)
			go func(i int, item T) {
				defer wg.Done()
				res, err := fn(ctx, item)
				outcomes[i] = outcome{item: item, res: res, err: err}
			}(i, item)
		}
		wg.Wait()

		var failed []T
		for _, o := range outcomes {
			if o.err != nil {
				failed = append(failed, o.item)
			} else {
				results = append(results, o.res)
			}
		}

		if len(failed) == 0 {
			continue
		}

		hooks.OnBatchFailures(len(failed))
		if err := args.Refresh(ctx, refresher); err != nil {
			return results, scrapeerrors.Wrap(scrapeerrors.ErrCodeCredentialRefreshFailed, err, "refreshing credential after batch failure")
		}
		queue = append(queue, failed...)
	}

	return results, nil
}
