package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/octoscrape/pkg/arguments"
	cachepkg "github.com/matzehuels/octoscrape/pkg/cache"
	"github.com/matzehuels/octoscrape/pkg/catalog"
	"github.com/matzehuels/octoscrape/pkg/observability"
	"github.com/matzehuels/octoscrape/pkg/octoclient"
	"github.com/matzehuels/octoscrape/pkg/octoconfig"
	"github.com/matzehuels/octoscrape/pkg/runmeta"
	"github.com/matzehuels/octoscrape/pkg/statusserver"
)

// scrapeFlags holds the scrape command's flag values, prompted for
// interactively when left empty (per cli/mod.rs's prompt_for_missing_fields).
type scrapeFlags struct {
	category    string
	attributes  []string
	px          string
	userAgent   string
	saveDir     string
	config      string
	noCache     bool
	statusAddr  string
	mongoURI    string
}

// scrapeCommand creates the scrape command: the three-phase pipeline
// (attribute discovery, combination counting, component retrieval) plus
// persistence, grounded end to end on batch_manager's orchestration.
func (c *CLI) scrapeCommand() *cobra.Command {
	flags := &scrapeFlags{}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a category's faceted component catalog",
		Long: `Discover the candidate values for a set of attributes within a category,
count the components in every fully-specified combination of those values,
retrieve the component pages, and persist the results with provenance
metadata. Any required field left unset is prompted for interactively.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScrape(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.category, "category", "", "category display name (e.g. \"Resistors\")")
	cmd.Flags().StringSliceVarP(&flags.attributes, "attribute", "a", nil, "attribute display name, repeatable")
	cmd.Flags().StringVar(&flags.px, "px", "", "PerimeterX credential (_px cookie value)")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", "", "User-Agent header override")
	cmd.Flags().StringVar(&flags.saveDir, "save-dir", "", "directory persisted artifacts are written to")
	cmd.Flags().StringVar(&flags.config, "config", "", "path to an optional TOML defaults file")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the combination-count cache")
	cmd.Flags().StringVar(&flags.statusAddr, "status-addr", "", "bind the optional status server (e.g. :8090); empty disables it")
	cmd.Flags().StringVar(&flags.mongoURI, "mongo-uri", "", "enable the optional additive MongoDB sink")

	return cmd
}

func (c *CLI) runScrape(ctx context.Context, flags *scrapeFlags) error {
	ctx = withLogger(ctx, c.Logger)

	settings, err := octoconfig.Load(flags.config)
	if err != nil {
		return err
	}
	if flags.saveDir != "" {
		settings.SaveDir = flags.saveDir
	}
	if flags.statusAddr != "" {
		settings.StatusAddr = flags.statusAddr
	}
	if flags.mongoURI != "" {
		settings.MongoURI = flags.mongoURI
	}
	if flags.userAgent != "" {
		settings.UserAgent = flags.userAgent
	}

	reader := bufio.NewReader(os.Stdin)
	if err := promptMissingScrapeFields(reader, flags, settings.UserAgent); err != nil {
		return err
	}

	categoryID, err := octoconfig.CategoryID(flags.category)
	if err != nil {
		return err
	}
	attributeIDs, err := octoconfig.AttributeIDs(flags.attributes)
	if err != nil {
		return err
	}

	client := octoclient.New(settings.Endpoint, settings.UserAgent, flags.px)
	args := arguments.New(flags.px, settings.UserAgent, flags.category, flags.attributes)
	refresher := &stdinRefresher{reader: reader, logger: c.Logger}

	cache, err := newCountCache(settings, flags.noCache)
	if err != nil {
		return err
	}
	defer cache.Close()

	var publisher *statusserver.Publisher
	if settings.StatusAddr != "" {
		publisher = statusserver.NewPublisher()
		srv := statusserver.New(settings.StatusAddr, publisher)
		srvCtx, cancelSrv := context.WithCancel(ctx)
		defer cancelSrv()
		go func() {
			if err := srv.Run(srvCtx); err != nil {
				c.Logger.Warn("status server stopped", "error", err)
			}
		}()
	}

	var sink *runmeta.MongoSink
	if settings.MongoURI != "" {
		sink, err = runmeta.NewMongoSink(ctx, settings.MongoURI)
		if err != nil {
			c.Logger.Warn("mongo sink unavailable, continuing without it", "error", err)
			sink = nil
		} else {
			defer sink.Close(ctx)
		}
	}

	observability.SetPhaseHooks(&cliPhaseHooks{logger: c.Logger, publisher: publisher, category: flags.category})
	defer observability.Reset()

	hooks := &cliBatchHooks{logger: c.Logger}

	start := time.Now()

	spinner := newSpinnerWithContext(ctx, "Discovering attributes")
	spinner.Start()
	attrScraper := catalog.NewAttributeScraper(client)
	buckets, err := attrScraper.Discover(ctx, args, refresher, categoryID, attributeIDs)
	if err != nil {
		spinner.StopWithError(err.Error())
		return err
	}
	spinner.StopWithSuccess("Discovered attribute buckets")

	spinner = newSpinnerWithContext(ctx, "Counting combinations")
	spinner.Start()
	counter := catalog.NewComponentCounter(client, settings.BatchSize, cache)
	combinations, err := counter.Count(ctx, args, refresher, categoryID, attributeIDs, buckets, hooks)
	if err != nil {
		spinner.StopWithError(err.Error())
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Counted %d combinations", len(combinations)))

	windows, stats := catalog.PlanWindows(combinations, settings.CapCount, settings.PageSize)

	spinner = newSpinnerWithContext(ctx, "Retrieving components")
	spinner.Start()
	retriever := catalog.NewComponentRetriever(client, settings.BatchSize)
	components, appliedCategory, err := retriever.Retrieve(ctx, args, refresher, categoryID, windows, hooks)
	if err != nil {
		spinner.StopWithError(err.Error())
		return err
	}
	spinner.StopWithSuccess("Retrieved components")

	meta := runmeta.NewMetadata(stats.ComponentsScraped, stats.ComponentsMissed, time.Since(start), args.RunID(), settings.BatchSize)

	writer := runmeta.NewWriter(settings.SaveDir, &stdinOverwritePrompter{reader: reader})
	wrote, err := writer.Save(flags.category, components, appliedCategory, meta)
	if err != nil {
		return err
	}
	if !wrote {
		printInfo("Aborted saving to disk")
		return nil
	}

	if sink != nil {
		if err := sink.InsertBatch(ctx, flags.category, components); err != nil {
			c.Logger.Warn("mongo sink insert failed, file artifact is unaffected", "error", err)
		}
	}

	printSuccess("Scraped %s", flags.category)
	printStats(stats.ComponentsScraped, stats.ComponentsMissed, false)
	printFile(settings.SaveDir)

	return nil
}

func promptMissingScrapeFields(reader *bufio.Reader, flags *scrapeFlags, defaultUserAgent string) error {
	var err error
	if flags.px == "" {
		flags.px, err = promptLine(reader, "Enter PerimeterX key: ")
		if err != nil {
			return err
		}
	}
	if flags.userAgent == "" {
		flags.userAgent = defaultUserAgent
	}
	if flags.category == "" {
		flags.category, err = promptLine(reader, "Enter Category Name: ")
		if err != nil {
			return err
		}
	}
	if len(flags.attributes) == 0 {
		for {
			attr, err := promptLine(reader, "Enter Attribute Name (enter 'done' when finished): ")
			if err != nil {
				return err
			}
			if attr == "done" {
				break
			}
			flags.attributes = append(flags.attributes, attr)
		}
	}
	return nil
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// stdinRefresher implements arguments.Refresher by reading a replacement
// credential from stdin, the CLI's non-interactive stand-in for the
// terminal UI this module places out of scope (SPEC_FULL §4.6).
type stdinRefresher struct {
	reader *bufio.Reader
	logger *log.Logger
}

func (r *stdinRefresher) RefreshCredential(ctx context.Context) (string, error) {
	r.logger.Warn("credential rejected by upstream, requesting a replacement")
	return promptLine(r.reader, "Enter a new PerimeterX key: ")
}

// stdinOverwritePrompter implements runmeta.OverwritePrompter with a plain
// y/n read from stdin.
type stdinOverwritePrompter struct {
	reader *bufio.Reader
}

func (p *stdinOverwritePrompter) ConfirmOverwrite(path string) (bool, error) {
	answer, err := promptLine(p.reader, fmt.Sprintf("%s already exists. Overwrite? [y/N]: ", path))
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// cliBatchHooks logs batch progress through the shared logger.
type cliBatchHooks struct {
	logger *log.Logger
}

func (h *cliBatchHooks) OnBatchStart(batchSize, remaining int) {
	h.logger.Debug("dispatching batch", "batch_size", batchSize, "remaining", remaining)
}

func (h *cliBatchHooks) OnBatchFailures(failed int) {
	if failed > 0 {
		h.logger.Warn("batch had failures, refreshing credential and requeueing", "failed", failed)
	}
}

// cliPhaseHooks logs phase transitions and, when a status server is
// running, republishes the current phase/count snapshot.
type cliPhaseHooks struct {
	logger    *log.Logger
	publisher *statusserver.Publisher
	category  string
}

func (h *cliPhaseHooks) publish(phase string, scraped, missed int) {
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(statusserver.Snapshot{
		Phase:             phase,
		Category:          h.category,
		ComponentsScraped: scraped,
		ComponentsMissed:  missed,
	})
}

func (h *cliPhaseHooks) OnAttributesStart(ctx context.Context, category string) {
	h.logger.Info("discovering attributes", "category", category)
	h.publish("attributes", 0, 0)
}

func (h *cliPhaseHooks) OnAttributesComplete(ctx context.Context, category string, bucketCount int, duration time.Duration, err error) {
	if err != nil {
		h.logger.Error("attribute discovery failed", "category", category, "error", err)
		return
	}
	h.logger.Info("discovered attribute buckets", "category", category, "attributes", bucketCount)
}

func (h *cliPhaseHooks) OnCountsStart(ctx context.Context, combinationCount int) {
	h.logger.Info("counting combinations", "combinations", combinationCount)
	h.publish("counting", 0, 0)
}

func (h *cliPhaseHooks) OnCountsComplete(ctx context.Context, combinationCount int, duration time.Duration, err error) {
	if err != nil {
		h.logger.Error("combination counting failed", "error", err)
		return
	}
	h.logger.Info("resolved combination counts", "combinations", combinationCount)
}

func (h *cliPhaseHooks) OnRetrievalStart(ctx context.Context, combinationCount int) {
	h.logger.Info("retrieving components", "windows", combinationCount)
	h.publish("retrieving", 0, 0)
}

func (h *cliPhaseHooks) OnRetrievalComplete(ctx context.Context, scraped, missed int, duration time.Duration, err error) {
	if err != nil {
		h.logger.Error("component retrieval failed", "error", err)
		return
	}
	h.logger.Info("retrieved components", "scraped", scraped, "missed", missed)
	h.publish("done", scraped, missed)
}

// newCountCache resolves the Component Counter's optional count cache from
// settings: Redis if CacheAddr is set, a local file cache otherwise, or a
// null cache when --no-cache is passed.
func newCountCache(settings octoconfig.Settings, noCache bool) (cachepkg.Cache, error) {
	if noCache {
		return cachepkg.NewNullCache(), nil
	}
	if settings.CacheAddr != "" {
		return cachepkg.NewRedisCache(settings.CacheAddr)
	}
	dir, err := cacheDir()
	if err != nil {
		return cachepkg.NewNullCache(), nil
	}
	return cachepkg.NewFileCache(dir)
}

// combineMetadataCommand creates the combine-metadata command.
func (c *CLI) combineMetadataCommand() *cobra.Command {
	var saveDir string

	cmd := &cobra.Command{
		Use:   "combine-metadata",
		Short: "Aggregate per-category metadata files into one summary document",
		Long: `Scan the save directory for every "<category>_metadata.json" file, combine
them keyed by category into "scraper_metadata.json", and delete the inputs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if saveDir == "" {
				saveDir = octoconfig.DefaultSaveDir
			}
			prog := newProgress(c.Logger)
			outputPath, combined, err := runmeta.Combine(saveDir)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Combined %d metadata files", combined))
			printSuccess("Combined %d metadata files", combined)
			printFile(outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&saveDir, "save-dir", "", "directory containing per-category metadata files")

	return cmd
}
