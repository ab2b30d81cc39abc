package catalog

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/octoscrape/pkg/codec"
)

func TestPlanWindowsAppliesCapAndPageSize(t *testing.T) {
	combinations := []codec.BucketCombination{
		{Filters: map[string]codec.Bucket{"305": b(250, "1k")}, ComponentCount: 250},
		{Filters: map[string]codec.Bucket{"305": b(50, "2k")}, ComponentCount: 50},
	}

	windows, stats := PlanWindows(combinations, 200, 100)

	// First combination: reported 250, capped to 200 -> windows [0,100) [100,200).
	// Second combination: reported 50, under cap -> one window [0,50) with Limit page size 100.
	if len(windows) != 3 {
		t.Fatalf("len(windows) = %d, want 3", len(windows))
	}
	if stats.ComponentsScraped != 200+50 {
		t.Errorf("ComponentsScraped = %d, want 250", stats.ComponentsScraped)
	}
	if stats.ComponentsMissed != 50 {
		t.Errorf("ComponentsMissed = %d, want 50 (250-200 from the first combination)", stats.ComponentsMissed)
	}
}

func TestPlanWindowsEmptyCombinationProducesNoWindows(t *testing.T) {
	combinations := []codec.BucketCombination{
		{Filters: map[string]codec.Bucket{"305": b(0, "1k")}, ComponentCount: 0},
	}
	windows, stats := PlanWindows(combinations, 100, 50)
	if len(windows) != 0 {
		t.Fatalf("len(windows) = %d, want 0 for a zero-count combination", len(windows))
	}
	if stats.ComponentsScraped != 0 || stats.ComponentsMissed != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestAppliedCategoryCaptureIsOneShot(t *testing.T) {
	capture := &appliedCategoryCapture{}
	first := json.RawMessage(`{"id":"1"}`)
	second := json.RawMessage(`{"id":"2"}`)

	capture.offer(first, true)
	capture.offer(second, true)
	capture.offer(nil, false)

	if string(capture.raw) != string(first) {
		t.Errorf("raw = %s, want first offered value %s", capture.raw, first)
	}
}
