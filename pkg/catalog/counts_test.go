package catalog

import (
	"sort"
	"testing"

	"github.com/matzehuels/octoscrape/pkg/codec"
)

func b(count int, value string) codec.Bucket {
	return codec.Bucket{ComponentCount: count, DisplayValue: value}
}

// referenceBucketPairs is an independent transcription of
// counts.rs's get_bucket_pairs for k=2/k=3, used as an oracle to verify
// crossProduct (the single generalized implementation this package uses
// for every k>=2) produces the same set of fixed combinations.
func referenceBucketPairs(fixedIDs []string, buckets codec.AttributeBuckets) []fixedCombo {
	switch len(fixedIDs) {
	case 1:
		secondLast := fixedIDs[0]
		var out []fixedCombo
		for _, bucket := range buckets[secondLast] {
			out = append(out, fixedCombo{secondLast: bucket})
		}
		return out
	case 2:
		thirdLast, secondLast := fixedIDs[0], fixedIDs[1]
		var out []fixedCombo
		for _, tb := range buckets[thirdLast] {
			for _, sb := range buckets[secondLast] {
				out = append(out, fixedCombo{thirdLast: tb, secondLast: sb})
			}
		}
		return out
	default:
		panic("reference oracle only covers k=2/k=3 (fixedIDs length 1 or 2)")
	}
}

func comboKey(c fixedCombo) string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += k + "=" + c[k].Value() + ";"
	}
	return s
}

func comboSet(combos []fixedCombo) map[string]bool {
	set := make(map[string]bool, len(combos))
	for _, c := range combos {
		set[comboKey(c)] = true
	}
	return set
}

func TestCrossProductMatchesReferenceForK2(t *testing.T) {
	buckets := codec.AttributeBuckets{
		"305": {b(10, "1k"), b(20, "2k")},
	}
	got := comboSet(crossProduct([]string{"305"}, buckets))
	want := comboSet(referenceBucketPairs([]string{"305"}, buckets))
	if len(got) != len(want) {
		t.Fatalf("got %d combos, want %d", len(got), len(want))
	}
	for k := range want {
		if !got[k] {
			t.Errorf("crossProduct missing combination %q present in reference", k)
		}
	}
}

func TestCrossProductMatchesReferenceForK3(t *testing.T) {
	buckets := codec.AttributeBuckets{
		"268": {b(5, "0402"), b(7, "0603")},
		"305": {b(10, "1k"), b(20, "2k"), b(30, "3k")},
	}
	got := comboSet(crossProduct([]string{"268", "305"}, buckets))
	want := comboSet(referenceBucketPairs([]string{"268", "305"}, buckets))
	if len(got) != len(want) {
		t.Fatalf("got %d combos, want %d", len(got), len(want))
	}
	for k := range want {
		if !got[k] {
			t.Errorf("crossProduct missing combination %q present in reference", k)
		}
	}
}

func TestCrossProductGeneralizesBeyondK3(t *testing.T) {
	// The reference Rust implementation has no k>3 path at all (it
	// returns an empty Vec); this proves the generalized walk produces
	// the full cardinality product for k=4 (three fixed attributes), which is
	// the behavior SPEC_FULL.md requires where the original has none.
	buckets := codec.AttributeBuckets{
		"1": {b(1, "a"), b(1, "b")},
		"2": {b(1, "a"), b(1, "b")},
		"3": {b(1, "a"), b(1, "b")},
	}
	combos := crossProduct([]string{"1", "2", "3"}, buckets)
	if len(combos) != 8 {
		t.Fatalf("len(combos) = %d, want 2^3 = 8", len(combos))
	}
	for _, c := range combos {
		if len(c) != 3 {
			t.Errorf("combination has %d entries, want 3: %+v", len(c), c)
		}
	}
}

func TestCombinationsFromLastOnlyUsesDiscoveredBucketsDirectly(t *testing.T) {
	last := []codec.Bucket{b(5, "5%"), b(9, "10%")}
	combos := combinationsFromLastOnly(last, "162")
	if len(combos) != 2 {
		t.Fatalf("len(combos) = %d, want 2", len(combos))
	}
	for i, c := range combos {
		if c.ComponentCount != last[i].ComponentCount {
			t.Errorf("combos[%d].ComponentCount = %d, want %d", i, c.ComponentCount, last[i].ComponentCount)
		}
		if c.Filters["162"].DisplayValue != last[i].DisplayValue {
			t.Errorf("combos[%d] filter value mismatch", i)
		}
	}
}
