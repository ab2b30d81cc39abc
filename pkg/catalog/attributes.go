// Package catalog implements the three-phase scrape pipeline: attribute
// discovery, combination counting, and component retrieval. It builds on
// pkg/codec's wire-format types and pkg/octoclient's transport, and drives
// both through pkg/taskrunner's batch-gate concurrency.
package catalog

import (
	"context"

	"github.com/matzehuels/octoscrape/pkg/arguments"
	"github.com/matzehuels/octoscrape/pkg/codec"
	"github.com/matzehuels/octoscrape/pkg/observability"
	"github.com/matzehuels/octoscrape/pkg/octoclient"
)

// AttributeScraper discovers the candidate filter values (buckets) for a
// set of attributes scoped to one category. Grounded on
// batch_manager/fetch/attributes/mod.rs's AttributeScraper.process: a
// retry-until-parseable loop, refreshing the credential between attempts.
type AttributeScraper struct {
	client *octoclient.Client
}

// NewAttributeScraper builds an AttributeScraper over client.
func NewAttributeScraper(client *octoclient.Client) *AttributeScraper {
	return &AttributeScraper{client: client}
}

// Discover fetches buckets for every attributeID, scoped to categoryID. It
// retries indefinitely on any request or parse failure, refreshing the
// credential via refresher before each retry, until ctx is cancelled or the
// refresher itself returns an error.
func (s *AttributeScraper) Discover(ctx context.Context, args *arguments.Arguments, refresher arguments.Refresher, categoryID string, attributeIDs []string) (codec.AttributeBuckets, error) {
	observability.Phase().OnAttributesStart(ctx, categoryID)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buckets, err := s.attempt(ctx, args, categoryID, attributeIDs)
		if err == nil {
			observability.Phase().OnAttributesComplete(ctx, categoryID, len(buckets), 0, nil)
			return buckets, nil
		}

		if refreshErr := args.Refresh(ctx, refresher); refreshErr != nil {
			observability.Phase().OnAttributesComplete(ctx, categoryID, 0, 0, refreshErr)
			return nil, refreshErr
		}
	}
}

func (s *AttributeScraper) attempt(ctx context.Context, args *arguments.Arguments, categoryID string, attributeIDs []string) (codec.AttributeBuckets, error) {
	s.client.SetCredential(args.Credential())

	payload, err := codec.BuildAttributesPayload(categoryID, attributeIDs)
	if err != nil {
		return nil, err
	}

	body, err := s.client.Post(ctx, payload)
	if err != nil {
		return nil, err
	}

	return codec.ParseAttributeBuckets(body, attributeIDs)
}
