package runmeta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type denyOverwrite struct{}

func (denyOverwrite) ConfirmOverwrite(string) (bool, error) { return false, nil }

func TestSaveWritesArtifactAndMetadata(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	components := []json.RawMessage{json.RawMessage(`{"mpn":"ABC"}`)}
	meta := NewMetadata(1, 0, time.Second, "run-1", 5)
	if meta.RunID != "run-1" || meta.BatchSize != 5 {
		t.Fatalf("meta = %+v, want RunID %q and BatchSize %d preserved", meta, "run-1", 5)
	}

	wrote, err := w.Save("Ceramic Capacitors", components, nil, meta)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !wrote {
		t.Fatal("expected Save to report it wrote the artifact")
	}

	artifactPath := filepath.Join(dir, "ceramic_capacitors.json")
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		t.Fatalf("ReadFile(artifact): %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	results, ok := decoded["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("artifact results = %v, want one entry", decoded["results"])
	}

	metaPath := filepath.Join(dir, "ceramic_capacitors_metadata.json")
	if _, err := os.Stat(metaPath); err != nil {
		t.Fatalf("metadata file missing: %v", err)
	}
}

func TestSaveReplacesResultsInAppliedCategoryEnvelope(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	appliedCategory := json.RawMessage(`{"id":"6334","name":"Mica Capacitors","results":["placeholder"]}`)
	components := []json.RawMessage{json.RawMessage(`{"mpn":"XYZ"}`)}

	if _, err := w.Save("Mica Capacitors", components, appliedCategory, NewMetadata(1, 0, 0, "run-2", 10)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "mica_capacitors.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["id"] != "6334" {
		t.Errorf("id = %v, want 6334 preserved from applied_category envelope", decoded["id"])
	}
	results, ok := decoded["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("results = %v, want replaced with the single flattened component", decoded["results"])
	}
}

func TestSaveDeclinedOverwriteDoesNotError(t *testing.T) {
	dir := t.TempDir()
	// Seed an existing artifact.
	if err := os.WriteFile(filepath.Join(dir, "resistors.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := NewWriter(dir, denyOverwrite{})
	wrote, err := w.Save("Resistors", nil, nil, NewMetadata(0, 0, 0, "run-3", 1))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if wrote {
		t.Fatal("expected Save to report it did not write when overwrite was declined")
	}
}

func TestCombineAggregatesAndDeletesInputs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "resistors_metadata.json"), []byte(`{"components_scraped":10}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "capacitors_metadata.json"), []byte(`{"components_scraped":20}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "resistors.json"), []byte(`{"results":[]}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outputPath, combined, err := Combine(dir)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if combined != 2 {
		t.Fatalf("combined = %d, want 2", combined)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile(output): %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded["resistors"]; !ok {
		t.Error("combined output missing resistors key")
	}
	if _, ok := decoded["capacitors"]; !ok {
		t.Error("combined output missing capacitors key")
	}

	if _, err := os.Stat(filepath.Join(dir, "resistors_metadata.json")); !os.IsNotExist(err) {
		t.Error("expected resistors_metadata.json to be deleted")
	}
	if _, err := os.Stat(filepath.Join(dir, "resistors.json")); err != nil {
		t.Error("non-metadata artifact should not be touched by Combine")
	}
}
