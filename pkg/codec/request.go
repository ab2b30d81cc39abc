// Package codec implements the Request Codec: it builds the three GraphQL
// request payloads this client ever sends (attribute discovery,
// combination count, component retrieval) and parses the corresponding
// response shapes. Everything here is a pure function of its inputs —
// no network I/O, no shared state — which is what makes it safe to call
// concurrently from every task the runner spawns.
package codec

import "encoding/json"

// attributeBucketQuery is the FilterModalSearch query used for both
// attribute discovery and combination counting; only the variables differ.
const attributeBucketQuery = `
query FilterModalSearch($attribute_names: [String!]!, $currency: String!, $filters: Map, $in_stock_only: Boolean, $q: String) {
    search(currency: $currency, filters: $filters, in_stock_only: $in_stock_only, q: $q) {
        hits
        spec_aggs(attribute_names: $attribute_names, size: 100) {
            buckets {
                count
                display_value
                float_value
            }
        }
    }
}
`

// partSearchQuery is the PricesViewSearch query used for component
// retrieval.
const partSearchQuery = `
query PricesViewSearch($country: String!, $currency: String!, $filters: Map, $in_stock_only: Boolean, $limit: Int!, $q: String, $sort: String, $sort_dir: SortDirection, $start: Int) {
  search(country: $country, currency: $currency, filters: $filters, in_stock_only: $in_stock_only, limit: $limit, q: $q, sort: $sort, sort_dir: $sort_dir, start: $start) {
    applied_category {
      ancestors {
        id
        name
        path
      }
      id
      name
      path
    }
    applied_filters {
      display_values
      name
      shortname
      values
    }
    results {
      _cache_id
      description
      part {
        _cache_id
        best_datasheet {
          url
        }
        best_image {
          url
        }
        category {
          id
        }
        counts
        descriptions {
          text
        }
        id
        manufacturer {
          id
          is_verified
          name
        }
        manufacturer_url
        median_price_1000 {
          _cache_id
          converted_currency
          converted_price
        }
        mpn
        specs {
          attribute {
            id
            name
            shortname
          }
          display_value
        }
      }
    }
    hits
  }
}
`

// buildFilters assembles the filters map every request carries: a
// single-wrapped category_id entry, plus one entry per selected bucket
// value. Per the resolved Open Question (category_id is wrapped exactly
// once, never double-wrapped), categoryID is always placed in a
// one-element array.
func buildFilters(categoryID string, extra map[string][]string) map[string]any {
	filters := map[string]any{
		"category_id": []string{categoryID},
	}
	for k, v := range extra {
		filters[k] = v
	}
	return filters
}

// BuildAttributesPayload builds the FilterModalSearch request body for
// attribute discovery: no extra filters beyond category_id, requesting
// buckets for every attributeID.
func BuildAttributesPayload(categoryID string, attributeIDs []string) ([]byte, error) {
	body := map[string]any{
		"operationName": "FilterModalSearch",
		"variables": map[string]any{
			"attribute_names": attributeIDs,
			"currency":        "USD",
			"filters":         buildFilters(categoryID, nil),
			"in_stock_only":   false,
		},
		"query": attributeBucketQuery,
	}
	return json.Marshal(body)
}

// BuildComponentCountPayload builds the FilterModalSearch request body for
// a combination count: attribute_names carries the single attribute whose
// bucket counts we want next, scoped by the filters already fixed for this
// branch of the walk.
func BuildComponentCountPayload(categoryID string, attributeIDs []string, filters map[string][]string) ([]byte, error) {
	body := map[string]any{
		"operationName": "FilterModalSearch",
		"variables": map[string]any{
			"attribute_names": attributeIDs,
			"currency":        "USD",
			"filters":         buildFilters(categoryID, filters),
			"in_stock_only":   false,
		},
		"query": attributeBucketQuery,
	}
	return json.Marshal(body)
}

// BuildComponentRetrievalPayload builds the PricesViewSearch request body
// for a single page of a bucket combination's components. start and limit
// follow the pagination window computed by the Component Retriever (§4.5).
func BuildComponentRetrievalPayload(categoryID string, filters map[string][]string, start, limit int) ([]byte, error) {
	body := map[string]any{
		"operationName": "PricesViewSearch",
		"variables": map[string]any{
			"country":       "US",
			"currency":      "USD",
			"filters":       buildFilters(categoryID, filters),
			"in_stock_only": false,
			"limit":         limit,
			"start":         start,
		},
		"query": partSearchQuery,
	}
	return json.Marshal(body)
}
