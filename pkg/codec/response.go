package codec

import (
	"encoding/json"
	"strconv"

	"github.com/matzehuels/octoscrape/pkg/scrapeerrors"
)

// Bucket is one facet value returned under spec_aggs[].buckets[]: a
// candidate filter value together with how many components carry it.
type Bucket struct {
	ComponentCount int     `json:"count"`
	DisplayValue   string  `json:"display_value"`
	FloatValue     *string `json:"float_value,omitempty"`
}

// Value returns the string this bucket should be sent back as a filter
// value: the numeric float_value when present (normalized to its string
// form), falling back to display_value otherwise (§4.2 numeric
// normalization rule).
func (b Bucket) Value() string {
	if b.FloatValue != nil {
		return *b.FloatValue
	}
	return b.DisplayValue
}

// rawBucket mirrors the wire shape exactly so float_value (a JSON number
// or null) can be captured before normalizing it to a string.
type rawBucket struct {
	ComponentCount int      `json:"count"`
	DisplayValue   string   `json:"display_value"`
	FloatValue     *float64 `json:"float_value"`
}

func (b rawBucket) toBucket() Bucket {
	out := Bucket{ComponentCount: b.ComponentCount, DisplayValue: b.DisplayValue}
	if b.FloatValue != nil {
		s := strconv.FormatFloat(*b.FloatValue, 'g', -1, 64)
		out.FloatValue = &s
	}
	return out
}

// AttributeBuckets maps an attribute id to the buckets discovered for it.
type AttributeBuckets map[string][]Bucket

// attributesEnvelope mirrors the parts of the FilterModalSearch response
// this codec reads: data.search.spec_aggs, an array in request order.
type attributesEnvelope struct {
	Data struct {
		Search struct {
			SpecAggs []struct {
				Buckets []rawBucket `json:"buckets"`
			} `json:"spec_aggs"`
		} `json:"search"`
	} `json:"data"`
}

// ParseAttributeBuckets extracts AttributeBuckets from a FilterModalSearch
// response, zipping spec_aggs entries (in response order) against
// attributeIDs (the order they were requested in).
func ParseAttributeBuckets(body []byte, attributeIDs []string) (AttributeBuckets, error) {
	var envelope attributesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, scrapeerrors.Wrap(scrapeerrors.ErrCodeParseConsistency, err, "decoding attribute buckets response")
	}

	if envelope.Data.Search.SpecAggs == nil {
		return nil, scrapeerrors.New(scrapeerrors.ErrCodeParseConsistency, "response has no spec_aggs field")
	}

	result := make(AttributeBuckets, len(attributeIDs))
	specAggs := envelope.Data.Search.SpecAggs
	for i, attributeID := range attributeIDs {
		if i >= len(specAggs) {
			break
		}
		buckets := make([]Bucket, 0, len(specAggs[i].Buckets))
		for _, raw := range specAggs[i].Buckets {
			buckets = append(buckets, raw.toBucket())
		}
		result[attributeID] = buckets
	}
	return result, nil
}

// BucketCombination pairs a fully-specified set of attribute-id-keyed
// filter buckets with the component count the server reported for that
// exact combination.
type BucketCombination struct {
	Filters        map[string]Bucket
	ComponentCount int
}

// combinationEnvelope mirrors data.search.spec_aggs[0].buckets, the shape
// returned when requesting counts for the final (last_key) attribute
// scoped by the filters fixed so far.
type combinationEnvelope struct {
	Data struct {
		Search struct {
			SpecAggs []struct {
				Buckets []rawBucket `json:"buckets"`
			} `json:"spec_aggs"`
		} `json:"search"`
	} `json:"data"`
}

// ParseBucketCombinations extracts one BucketCombination per bucket found
// at data.search.spec_aggs[0].buckets, each carrying forward the fixed
// filters plus the newly discovered lastKey bucket.
func ParseBucketCombinations(body []byte, fixed map[string]Bucket, lastKey string) ([]BucketCombination, error) {
	var envelope combinationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, scrapeerrors.Wrap(scrapeerrors.ErrCodeParseConsistency, err, "decoding combination count response")
	}
	if envelope.Data.Search.SpecAggs == nil {
		return nil, scrapeerrors.New(scrapeerrors.ErrCodeParseConsistency, "response has no spec_aggs field")
	}
	if len(envelope.Data.Search.SpecAggs) == 0 {
		return nil, nil
	}

	raws := envelope.Data.Search.SpecAggs[0].Buckets
	combinations := make([]BucketCombination, 0, len(raws))
	for _, raw := range raws {
		bucket := raw.toBucket()
		filters := make(map[string]Bucket, len(fixed)+1)
		for k, v := range fixed {
			filters[k] = v
		}
		filters[lastKey] = bucket
		combinations = append(combinations, BucketCombination{
			Filters:        filters,
			ComponentCount: bucket.ComponentCount,
		})
	}
	return combinations, nil
}

// componentsEnvelope mirrors data.search.results, the component page.
type componentsEnvelope struct {
	Data struct {
		Search struct {
			Results []json.RawMessage `json:"results"`
		} `json:"search"`
	} `json:"data"`
}

// ParseComponents extracts the raw component result rows from a
// PricesViewSearch response. Components are left as opaque JSON: per the
// Non-goal "no field enrichment/validation beyond shape", this codec never
// unpacks individual part fields.
func ParseComponents(body []byte) ([]json.RawMessage, error) {
	var envelope componentsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, scrapeerrors.Wrap(scrapeerrors.ErrCodeParseConsistency, err, "decoding component results response")
	}
	if envelope.Data.Search.Results == nil {
		return nil, scrapeerrors.New(scrapeerrors.ErrCodeParseConsistency, "response has no results field")
	}
	return envelope.Data.Search.Results, nil
}

// categoryEnvelope mirrors data.search.applied_category, the server-
// provided category ancestry metadata captured once per run.
type categoryEnvelope struct {
	Data struct {
		Search struct {
			AppliedCategory json.RawMessage `json:"applied_category"`
		} `json:"search"`
	} `json:"data"`
}

// ParseAppliedCategory extracts the applied_category object from a
// PricesViewSearch response, if present. The bool return reports whether
// the field was present and non-null.
func ParseAppliedCategory(body []byte) (json.RawMessage, bool, error) {
	var envelope categoryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, scrapeerrors.Wrap(scrapeerrors.ErrCodeParseConsistency, err, "decoding applied_category")
	}
	if len(envelope.Data.Search.AppliedCategory) == 0 || string(envelope.Data.Search.AppliedCategory) == "null" {
		return nil, false, nil
	}
	return envelope.Data.Search.AppliedCategory, true, nil
}
