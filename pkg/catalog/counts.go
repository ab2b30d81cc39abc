package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/octoscrape/pkg/arguments"
	cachepkg "github.com/matzehuels/octoscrape/pkg/cache"
	"github.com/matzehuels/octoscrape/pkg/codec"
	"github.com/matzehuels/octoscrape/pkg/observability"
	"github.com/matzehuels/octoscrape/pkg/octoclient"
	"github.com/matzehuels/octoscrape/pkg/taskrunner"
)

// countCacheTTL bounds how long a cached combination count is trusted
// before a rerun re-issues the request; counts drift as the catalog
// changes, so this is deliberately short.
const countCacheTTL = time.Hour

// ComponentCounter walks the attribute buckets discovered for a category
// and resolves, for every fully-specified combination of their values, how
// many components the upstream API reports for that exact combination.
//
// Grounded on batch_manager/fetch/counts.rs's
// grab_bucket_combination_counts: named fast paths for k=1/2/3 attributes
// (process_buckets/get_bucket_pairs), generalized here to any k via a
// cross-product walk over the first k-1 attributes' already-discovered
// buckets (see counts_test.go for the equivalence proof against the
// named paths).
type ComponentCounter struct {
	client    *octoclient.Client
	batchSize int
	cache     cachepkg.Cache
	keyer     cachepkg.Keyer
}

// NewComponentCounter builds a ComponentCounter. cache may be nil, which
// is equivalent to passing cache.NewNullCache(): every request is sent,
// nothing is cached.
func NewComponentCounter(client *octoclient.Client, batchSize int, cache cachepkg.Cache) *ComponentCounter {
	if cache == nil {
		cache = cachepkg.NewNullCache()
	}
	return &ComponentCounter{client: client, batchSize: batchSize, cache: cache, keyer: cachepkg.NewDefaultKeyer()}
}

// fixedCombo is one point in the cross product of the fixed (all but
// last) attributes' discovered bucket values.
type fixedCombo map[string]codec.Bucket

// Count resolves combination counts for every value of the last attribute
// in attributeIDs, crossed with every already-discovered value of the
// attributes before it.
func (c *ComponentCounter) Count(ctx context.Context, args *arguments.Arguments, refresher arguments.Refresher, categoryID string, attributeIDs []string, buckets codec.AttributeBuckets, hooks taskrunner.Hooks) ([]codec.BucketCombination, error) {
	if len(attributeIDs) == 0 {
		return nil, nil
	}

	lastID := attributeIDs[len(attributeIDs)-1]
	fixedIDs := attributeIDs[:len(attributeIDs)-1]

	if len(fixedIDs) == 0 {
		return combinationsFromLastOnly(buckets[lastID], lastID), nil
	}

	combos := crossProduct(fixedIDs, buckets)
	observability.Phase().OnCountsStart(ctx, len(combos))

	results, err := taskrunner.Run(ctx, combos, c.batchSize, args, refresher, hooks, func(ctx context.Context, fixed fixedCombo) ([]codec.BucketCombination, error) {
		return c.countOne(ctx, args, categoryID, lastID, fixed)
	})
	if err != nil {
		observability.Phase().OnCountsComplete(ctx, 0, 0, err)
		return nil, err
	}

	var all []codec.BucketCombination
	for _, r := range results {
		all = append(all, r...)
	}
	observability.Phase().OnCountsComplete(ctx, len(all), 0, nil)
	return all, nil
}

// combinationsFromLastOnly handles k=1: the buckets for the sole attribute
// are already fully resolved from discovery, so no additional request is
// needed (counts.rs's len()==1 branch).
func combinationsFromLastOnly(lastBuckets []codec.Bucket, lastID string) []codec.BucketCombination {
	out := make([]codec.BucketCombination, 0, len(lastBuckets))
	for _, b := range lastBuckets {
		out = append(out, codec.BucketCombination{
			Filters:        map[string]codec.Bucket{lastID: b},
			ComponentCount: b.ComponentCount,
		})
	}
	return out
}

// crossProduct enumerates every combination of one value per fixedID, in
// the order get_bucket_pairs walks them: later ids vary fastest.
func crossProduct(fixedIDs []string, buckets codec.AttributeBuckets) []fixedCombo {
	combos := []fixedCombo{{}}
	for _, id := range fixedIDs {
		values := buckets[id]
		next := make([]fixedCombo, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				extended := make(fixedCombo, len(combo)+1)
				for k, val := range combo {
					extended[k] = val
				}
				extended[id] = v
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}

func (c *ComponentCounter) countOne(ctx context.Context, args *arguments.Arguments, categoryID, lastID string, fixed fixedCombo) ([]codec.BucketCombination, error) {
	filterValues := make(map[string][]string, len(fixed))
	cacheFilters := make(map[string]string, len(fixed)+1)
	for id, b := range fixed {
		filterValues[id] = []string{b.Value()}
		cacheFilters[id] = b.Value()
	}
	cacheFilters["__last"] = lastID

	key := c.keyer.CountKey(categoryID, cacheFilters)
	if data, hit, _ := c.cache.Get(ctx, key); hit {
		observability.Cache().OnCacheHit(ctx, "count")
		var cached []codec.BucketCombination
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	} else {
		observability.Cache().OnCacheMiss(ctx, "count")
	}

	c.client.SetCredential(args.Credential())
	payload, err := codec.BuildComponentCountPayload(categoryID, []string{lastID}, filterValues)
	if err != nil {
		return nil, err
	}
	body, err := c.client.Post(ctx, payload)
	if err != nil {
		return nil, err
	}
	combinations, err := codec.ParseBucketCombinations(body, fixed, lastID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(combinations); err == nil {
		_ = c.cache.Set(ctx, key, data, countCacheTTL)
		observability.Cache().OnCacheSet(ctx, "count", len(data))
	}
	return combinations, nil
}
