// Package pipeline orchestrates a full run: collect articles, extract
// events, filter, dedup, geocode, download images, and merge into the
// run's collection. Stages run over fully materialized batches; nothing
// streams against a collection that is still being mutated.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/janlim/eventscout/internal/collect"
	"github.com/janlim/eventscout/internal/collection"
	"github.com/janlim/eventscout/internal/config"
	"github.com/janlim/eventscout/internal/dedup"
	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/extract"
	"github.com/janlim/eventscout/internal/filter"
	"github.com/janlim/eventscout/internal/geocode"
	"github.com/janlim/eventscout/internal/images"
	"github.com/janlim/eventscout/internal/ledger"
	"github.com/janlim/eventscout/internal/llm"
	"github.com/janlim/eventscout/internal/report"
	"github.com/janlim/eventscout/internal/similarity"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID   string
	Steps   []StepResult
	Summary report.Summary
}

// Failed reports whether any step errored.
func (r *Result) Failed() bool {
	for _, step := range r.Steps {
		if step.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline wires the stages of one run together.
type Pipeline struct {
	cfg      *config.Config
	db       *ledger.DB
	store    *collection.Store
	provider llm.Provider
	embedder llm.Embedder
	geocoder *geocode.Client
}

// New creates a Pipeline from configuration.
func New(cfg *config.Config, db *ledger.DB) *Pipeline {
	ext := cfg.Extraction
	provider := llm.CreateProvider(
		ext.Provider,
		ext.Model,
		ext.OllamaURL,
		ext.GeminiModel,
		ext.GeminiKeyEnv,
		ext.OpenAIModel,
		ext.APIKeyEnv,
	)

	embModel := ext.EmbeddingModel
	if embModel == "" {
		embModel = "nomic-embed-text"
	}
	baseURL := ext.OllamaURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		store:    collection.NewStore(cfg.EventsDir()),
		provider: provider,
		embedder: llm.NewOllamaEmbedder(embModel, baseURL),
		geocoder: geocode.New(cfg.Geocoding.APIKeyEnv),
	}
}

// Run executes the full pipeline. Articles that fail extraction stay
// out of the ledger so the next run retries them; a ledger write
// failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, daysBack int) *Result {
	runCollection, err := p.store.NewRunCollection(time.Now())
	if err != nil {
		return &Result{Steps: []StepResult{{Name: "Prepare", Err: err}}}
	}
	r := &Result{RunID: runCollection.Name}
	r.Summary.RunID = runCollection.Name

	engine := similarity.New(p.embedder, p.cfg.Dedup.PrimaryThreshold, p.cfg.Dedup.VenueTitleThreshold)
	imageStore := images.NewStore(runCollection.ImagesDir(), p.cfg.Images.MaxPerEvent)
	deduper := dedup.New(engine, imageStore)

	// Step 1: Collect
	articles, step := p.runCollect(ctx, daysBack)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Extract
	events, step := p.runExtract(ctx, articles, &r.Summary)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 3: Filter
	relevant, nonRelevant, step := p.runFilter(ctx, events, &r.Summary)
	r.Steps = append(r.Steps, step)

	// Step 4: Dedup
	kept, step := p.runDedup(ctx, deduper, relevant, &r.Summary)
	r.Steps = append(r.Steps, step)

	// Step 5: Geocode
	step = p.runGeocode(ctx, kept)
	r.Steps = append(r.Steps, step)

	// Step 6: Images
	step = p.runImages(ctx, imageStore, kept)
	r.Steps = append(r.Steps, step)

	// Step 7: Merge
	step = p.runMerge(ctx, deduper, runCollection, kept, nonRelevant, &r.Summary)
	r.Steps = append(r.Steps, step)

	return r
}

func (p *Pipeline) runCollect(ctx context.Context, daysBack int) ([]event.Article, StepResult) {
	log.Println("Step 1/7: Collecting articles...")
	collector := collect.New(p.db, p.cfg.Sources)
	articles, err := collector.Collect(ctx, daysBack)
	if err != nil {
		return nil, StepResult{Name: "Collect", Err: err}
	}
	return articles, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d fresh articles", len(articles)),
	}
}

func (p *Pipeline) runExtract(ctx context.Context, articles []event.Article, summary *report.Summary) ([]event.Event, StepResult) {
	log.Println("Step 2/7: Extracting events...")
	if p.provider == nil {
		return nil, StepResult{Name: "Extract", Err: fmt.Errorf("no LLM provider available")}
	}
	extractor := extract.New(p.provider, p.cfg.Extraction.MaxTokens)

	var events []event.Event
	for _, article := range articles {
		extracted, err := extractor.Extract(ctx, article)
		if err != nil {
			// Not recorded: the next run retries this article.
			log.Printf("Extraction failed for %s: %v", article.URL, err)
			summary.Errored++
			continue
		}

		// Zero-yield articles are recorded too, so they are not
		// refetched forever.
		if err := p.db.Record(article.SourceID, article.ID, len(extracted)); err != nil {
			return nil, StepResult{Name: "Extract", Err: fmt.Errorf("ledger write failed: %w", err)}
		}
		summary.Processed++
		events = append(events, extracted...)
	}

	return events, StepResult{
		Name:    "Extract",
		Summary: fmt.Sprintf("Extracted %d events from %d articles (%d failed)", len(events), summary.Processed, summary.Errored),
	}
}

func (p *Pipeline) runFilter(ctx context.Context, events []event.Event, summary *report.Summary) (relevant, nonRelevant []event.Event, step StepResult) {
	log.Println("Step 3/7: Filtering for relevance...")
	relevant, nonRelevant = filter.New(p.provider).Run(ctx, events)
	summary.NonRelevant = len(nonRelevant)
	return relevant, nonRelevant, StepResult{
		Name:    "Filter",
		Summary: fmt.Sprintf("%d relevant, %d non-relevant", len(relevant), len(nonRelevant)),
	}
}

func (p *Pipeline) runDedup(ctx context.Context, deduper *dedup.Deduplicator, relevant []event.Event, summary *report.Summary) ([]event.Event, StepResult) {
	log.Println("Step 4/7: Deduplicating...")

	kept, droppedBatch := deduper.DedupBatch(ctx, relevant)

	existing, err := p.existingEvents()
	if err != nil {
		// History unavailable: keep the batch-level result rather
		// than dropping candidates against unknown state.
		log.Printf("Loading existing collections: %v", err)
		summary.Duplicates = len(droppedBatch)
		summary.Kept = len(kept)
		return kept, StepResult{
			Name:    "Dedup",
			Summary: fmt.Sprintf("%d kept, %d duplicates (history unavailable)", len(kept), len(droppedBatch)),
		}
	}

	kept, droppedHistory := deduper.DedupAgainstExisting(ctx, existing, kept)
	summary.Duplicates = len(droppedBatch) + len(droppedHistory)
	summary.Kept = len(kept)

	return kept, StepResult{
		Name:    "Dedup",
		Summary: fmt.Sprintf("%d kept, %d dropped within batch, %d matched history", len(kept), len(droppedBatch), len(droppedHistory)),
	}
}

func (p *Pipeline) runGeocode(ctx context.Context, events []event.Event) StepResult {
	log.Println("Step 5/7: Geocoding venues...")
	if !p.cfg.Geocoding.Enabled || !p.geocoder.IsConfigured() {
		return StepResult{Name: "Geocode", Summary: "Skipped (disabled or no API key)"}
	}

	before := countWithCoordinates(events)
	p.geocoder.FillCoordinates(ctx, events)
	after := countWithCoordinates(events)

	return StepResult{
		Name:    "Geocode",
		Summary: fmt.Sprintf("Resolved %d venues (%d/%d events placed)", after-before, after, len(events)),
	}
}

func (p *Pipeline) runImages(ctx context.Context, store *images.Store, events []event.Event) StepResult {
	log.Println("Step 6/7: Downloading images...")
	if !p.cfg.Images.Download {
		return StepResult{Name: "Images", Summary: "Skipped (disabled)"}
	}

	store.Download(ctx, events)
	downloaded := 0
	for _, ev := range events {
		for _, img := range ev.Images {
			if img.LocalPath != "" {
				downloaded++
			}
		}
	}
	return StepResult{
		Name:    "Images",
		Summary: fmt.Sprintf("Downloaded %d images", downloaded),
	}
}

func (p *Pipeline) runMerge(ctx context.Context, deduper *dedup.Deduplicator, c *collection.Collection, kept, nonRelevant []event.Event, summary *report.Summary) StepResult {
	log.Println("Step 7/7: Merging into collection...")
	merger := collection.NewMerger(deduper)

	if err := merger.Merge(ctx, c, kept); err != nil {
		return StepResult{Name: "Merge", Err: err}
	}
	if err := merger.MergeNonRelevant(c, nonRelevant); err != nil {
		return StepResult{Name: "Merge", Err: err}
	}

	if err := report.Write(c, *summary); err != nil {
		log.Printf("Writing digest: %v", err)
	}
	if err := p.db.SaveRunReport(ledger.RunReport{
		RunID:       summary.RunID,
		Processed:   summary.Processed,
		Kept:        summary.Kept,
		Duplicates:  summary.Duplicates,
		NonRelevant: summary.NonRelevant,
		Errored:     summary.Errored,
	}); err != nil {
		return StepResult{Name: "Merge", Err: fmt.Errorf("saving run report: %w", err)}
	}

	return StepResult{
		Name:    "Merge",
		Summary: fmt.Sprintf("Collection %s: %d events, %d non-relevant records", c.Name, len(c.Events), len(c.NonRelevant)),
	}
}

// CrossFolderDedup deduplicates across an explicit set of collections
// and writes the survivors back. Used for periodic historical cleanup.
// Collections with review conflicts are left untouched and reported.
func (p *Pipeline) CrossFolderDedup(ctx context.Context, names []string) (*Result, error) {
	if len(names) == 0 {
		var err error
		names, err = p.store.List()
		if err != nil {
			return nil, err
		}
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("cross-folder dedup needs at least two collections, have %d", len(names))
	}

	collections := make([]*collection.Collection, 0, len(names))
	groups := make([][]event.Event, 0, len(names))
	for _, name := range names {
		c, err := p.store.Open(name)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
		groups = append(groups, c.Events)
	}

	engine := similarity.New(p.embedder, p.cfg.Dedup.PrimaryThreshold, p.cfg.Dedup.VenueTitleThreshold)
	deduper := dedup.New(engine, nil)

	result, dropped, conflicts := deduper.DedupAcrossCollections(ctx, groups)
	r := &Result{}

	if len(conflicts) > 0 {
		for _, c := range conflicts {
			log.Printf("Review conflict: %v", c)
		}
		r.Steps = append(r.Steps, StepResult{
			Name: "Cross-folder dedup",
			Err:  fmt.Errorf("%d review conflicts, nothing written", len(conflicts)),
		})
		return r, nil
	}

	for i, c := range collections {
		if len(result[i]) == len(c.Events) {
			continue
		}
		c.Events = result[i]
		if err := c.Save(); err != nil {
			r.Steps = append(r.Steps, StepResult{Name: "Cross-folder dedup", Err: err})
			return r, nil
		}
	}

	// Images are deleted only after every collection is durably
	// rewritten, so an aborted save never costs a kept event its files.
	for _, ev := range dropped {
		for _, img := range ev.Images {
			if img.LocalPath == "" {
				continue
			}
			if err := os.Remove(img.LocalPath); err != nil && !os.IsNotExist(err) {
				log.Printf("Deleting image %s: %v", img.LocalPath, err)
			}
		}
	}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Cross-folder dedup",
		Summary: fmt.Sprintf("Dropped %d duplicates across %d collections", len(dropped), len(names)),
	})
	return r, nil
}

// existingEvents loads the events of every stored collection for
// history-scope dedup.
func (p *Pipeline) existingEvents() ([]event.Event, error) {
	collections, err := p.store.OpenAll()
	if err != nil {
		return nil, err
	}
	var all []event.Event
	for _, c := range collections {
		all = append(all, c.Events...)
	}
	return all, nil
}

func countWithCoordinates(events []event.Event) int {
	n := 0
	for _, ev := range events {
		if ev.HasCoordinates() {
			n++
		}
	}
	return n
}
