// Package runmeta persists a scrape's results and provenance metadata to
// disk, and implements the metadata-combining mode. Grounded on
// data_manager/mod.rs's DataManager (save_to_disk/serialize) and
// cli/mod.rs's overwrite prompt.
package runmeta

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/octoscrape/pkg/scrapeerrors"
)

// RunMetadata is the provenance record written alongside a category's
// component artifact: how much was fetched, how much was missed, and
// when, per spec.md §6. RunID and BatchSize are an additive provenance
// expansion (SPEC_FULL.md §3): the run-correlation id from pkg/arguments
// and the batch size the run used, so a later audit can tell which runs
// share a batch configuration without reparsing logs.
type RunMetadata struct {
	ComponentsScraped int     `json:"components_scraped"`
	ComponentsMissed  int     `json:"components_missed"`
	TotalTime         float64 `json:"total_time"`
	DateCollected     int64   `json:"date_collected"`
	RunID             string  `json:"run_id"`
	BatchSize         int     `json:"batch_size"`
}

// OverwritePrompter asks the user whether an existing artifact may be
// overwritten. Implementations live in internal/cli; a stub that always
// returns true is appropriate for non-interactive runs.
type OverwritePrompter interface {
	ConfirmOverwrite(path string) (bool, error)
}

// AlwaysOverwrite never prompts: every existing artifact is replaced.
type AlwaysOverwrite struct{}

func (AlwaysOverwrite) ConfirmOverwrite(string) (bool, error) { return true, nil }

// Writer persists a single category's scrape result to saveDir.
type Writer struct {
	saveDir  string
	prompter OverwritePrompter
}

// NewWriter builds a Writer rooted at saveDir. prompter may be nil, which
// is equivalent to AlwaysOverwrite.
func NewWriter(saveDir string, prompter OverwritePrompter) *Writer {
	if prompter == nil {
		prompter = AlwaysOverwrite{}
	}
	return &Writer{saveDir: saveDir, prompter: prompter}
}

// Save writes `<save_dir>/<sanitized_category>.json` (the component
// artifact: the captured applied_category object with a top-level
// "results" field set to components, or {results: components} if no server
// metadata was captured; the rest of the server response is not kept) and
// `<save_dir>/<sanitized_category>_metadata.json` (meta).
//
// If the component artifact already exists, Save asks the prompter for
// permission to overwrite; declining aborts the write (not an error — per
// cli/mod.rs's prompt_user_for_file_overwrite, a "no" is a normal exit).
func (w *Writer) Save(category string, components []json.RawMessage, appliedCategory json.RawMessage, meta RunMetadata) (wrote bool, err error) {
	if err := os.MkdirAll(w.saveDir, 0o755); err != nil {
		return false, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "creating save directory %s", w.saveDir)
	}

	stem := scrapeerrors.SanitizeCategoryFilename(category)
	artifactPath := filepath.Join(w.saveDir, stem+".json")
	metadataPath := filepath.Join(w.saveDir, stem+"_metadata.json")

	if _, statErr := os.Stat(artifactPath); statErr == nil {
		ok, promptErr := w.prompter.ConfirmOverwrite(artifactPath)
		if promptErr != nil {
			return false, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, promptErr, "prompting for overwrite of %s", artifactPath)
		}
		if !ok {
			return false, nil
		}
	} else if !os.IsNotExist(statErr) {
		return false, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, statErr, "checking existing artifact %s", artifactPath)
	}

	artifact, err := buildArtifact(components, appliedCategory)
	if err != nil {
		return false, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "serializing component artifact")
	}
	if err := writeJSONFile(artifactPath, artifact); err != nil {
		return false, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "writing %s", artifactPath)
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return false, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "serializing run metadata")
	}
	if err := os.WriteFile(metadataPath, metaBytes, 0o644); err != nil {
		return false, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "writing %s", metadataPath)
	}

	return true, nil
}

// buildArtifact mirrors data_manager/mod.rs's serialize: if an
// applied_category object was captured, its top-level "results" field is
// set to the flattened components; otherwise the artifact is
// {results: [...]}.
func buildArtifact(components []json.RawMessage, appliedCategory json.RawMessage) (json.RawMessage, error) {
	if components == nil {
		components = []json.RawMessage{}
	}
	if len(appliedCategory) == 0 {
		return json.Marshal(map[string]any{"results": components})
	}

	var envelope map[string]any
	if err := json.Unmarshal(appliedCategory, &envelope); err != nil {
		return json.Marshal(map[string]any{"results": components})
	}
	envelope["results"] = components
	return json.Marshal(envelope)
}

func writeJSONFile(path string, raw json.RawMessage) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return os.WriteFile(path, raw, 0o644)
	}
	return os.WriteFile(path, pretty.Bytes(), 0o644)
}

// now returns the current Unix timestamp. Isolated behind a var so tests
// can substitute a fixed clock.
var now = func() int64 { return time.Now().Unix() }

// NewMetadata builds a RunMetadata stamped with the current time. runID and
// batchSize identify the run that produced scraped/missed (pkg/arguments'
// RunID and the Task Runner's configured batch size).
func NewMetadata(scraped, missed int, elapsed time.Duration, runID string, batchSize int) RunMetadata {
	return RunMetadata{
		ComponentsScraped: scraped,
		ComponentsMissed:  missed,
		TotalTime:         elapsed.Seconds(),
		DateCollected:     now(),
		RunID:             runID,
		BatchSize:         batchSize,
	}
}

// Combine implements the metadata-combining mode: scan saveDir for files
// whose stems end with "_metadata", read each as JSON, key it under the
// stem with that suffix removed, write the aggregate to
// `<save_dir>/scraper_metadata.json`, and delete the inputs. Grounded on
// spec.md §6's metadata-combining mode description (no original_source
// file implements this; the distilled spec is the sole source).
func Combine(saveDir string) (outputPath string, combined int, err error) {
	entries, err := os.ReadDir(saveDir)
	if err != nil {
		return "", 0, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "reading save directory %s", saveDir)
	}

	aggregate := make(map[string]json.RawMessage)
	var inputPaths []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		if !strings.HasSuffix(stem, "_metadata") {
			continue
		}
		prefix := strings.TrimSuffix(stem, "_metadata")

		path := filepath.Join(saveDir, name)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", 0, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, readErr, "reading %s", path)
		}
		aggregate[prefix] = json.RawMessage(data)
		inputPaths = append(inputPaths, path)
	}

	outputPath = filepath.Join(saveDir, "scraper_metadata.json")
	data, err := json.MarshalIndent(aggregate, "", "  ")
	if err != nil {
		return "", 0, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "serializing combined metadata")
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", 0, scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "writing %s", outputPath)
	}

	for _, path := range inputPaths {
		if err := os.Remove(path); err != nil {
			return outputPath, len(aggregate), scrapeerrors.Wrap(scrapeerrors.ErrCodePersistence, err, "deleting input %s", path)
		}
	}

	return outputPath, len(aggregate), nil
}
