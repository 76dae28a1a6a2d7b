package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/janlim/eventscout/internal/collection"
	"github.com/janlim/eventscout/internal/config"
	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/geocode"
	"github.com/janlim/eventscout/internal/ledger"
)

// scriptedProvider answers extraction prompts with an event array and
// classification prompts with a relevance verdict.
type scriptedProvider struct {
	events string
}

func (s *scriptedProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if strings.Contains(prompt, `{"relevant": true}`) {
		if strings.Contains(prompt, "Networking") {
			return `{"relevant": false}`, nil
		}
		return `{"relevant": true}`, nil
	}
	return s.events, nil
}

func (s *scriptedProvider) IsConfigured() bool { return true }

type oneHotEmbedder struct {
	index map[string]int
}

func (m *oneHotEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	const dims = 64
	out := make([][]float64, len(texts))
	for i, text := range texts {
		idx, ok := m.index[text]
		if !ok {
			idx = len(m.index) % dims
			m.index[text] = idx
		}
		v := make([]float64, dims)
		v[idx] = 1
		out[i] = v
	}
	return out, nil
}

func articleServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	body := strings.Repeat("The light festival returns to the waterfront with craft booths for kids. ", 5)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Blog</title>
<item><title>Weekend Guide</title><link>%s/weekend</link><guid>post-1</guid><pubDate>%s</pubDate></item>
</channel></rss>`, server.URL, time.Now().Format(time.RFC1123Z))
	})
	mux.HandleFunc("/weekend", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><article><h1>Weekend Guide</h1><p>%s</p></article></body></html>", body)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestPipeline(t *testing.T, feedURL string) (*Pipeline, *config.Config, *ledger.DB) {
	t.Helper()
	cfg := &config.Config{
		Sources: config.Sources{Feeds: []config.Feed{{URL: feedURL, Name: "testblog"}}},
		Dedup:   config.Dedup{PrimaryThreshold: 0.85, VenueTitleThreshold: 0.5},
		Output:  config.Output{DataDir: t.TempDir()},
	}

	db, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p := &Pipeline{
		cfg:   cfg,
		db:    db,
		store: collection.NewStore(cfg.EventsDir()),
		provider: &scriptedProvider{events: `[
			{"title": "Light Festival", "venue_name": "Waterfront Park", "start_datetime": "2026-07-04"},
			{"title": "Networking Mixer", "venue_name": "Downtown Bar"}
		]`},
		embedder: &oneHotEmbedder{},
		geocoder: geocode.New("UNSET_TEST_KEY"),
	}
	return p, cfg, db
}

func TestRunEndToEnd(t *testing.T) {
	server := articleServer(t)
	p, cfg, db := newTestPipeline(t, server.URL+"/feed")

	result := p.Run(context.Background(), 7)
	if result.Failed() {
		for _, step := range result.Steps {
			if step.Err != nil {
				t.Fatalf("step %s failed: %v", step.Name, step.Err)
			}
		}
	}

	if result.Summary.Processed != 1 {
		t.Errorf("expected 1 article processed, got %d", result.Summary.Processed)
	}
	if result.Summary.Kept != 1 || result.Summary.NonRelevant != 1 {
		t.Errorf("expected 1 kept / 1 non-relevant, got %d / %d", result.Summary.Kept, result.Summary.NonRelevant)
	}

	done, err := db.HasProcessed("testblog", "post-1")
	if err != nil || !done {
		t.Errorf("expected article in ledger, done=%v err=%v", done, err)
	}

	c, err := collection.Load(filepath.Join(cfg.EventsDir(), result.RunID))
	if err != nil {
		t.Fatalf("loading run collection: %v", err)
	}
	if len(c.Events) != 1 || c.Events[0].Title != "Light Festival" {
		t.Fatalf("unexpected collection events %+v", c.Events)
	}
	if c.Events[0].DedupStatus == "" || c.Events[0].Relevance == "" {
		t.Error("expected status fields stamped on persisted event")
	}
	if len(c.NonRelevant) != 1 || c.NonRelevant[0].Title != "Networking Mixer" {
		t.Errorf("unexpected non-relevant records %+v", c.NonRelevant)
	}

	if _, err := os.Stat(filepath.Join(c.Dir, "digest.md")); err != nil {
		t.Errorf("expected digest written: %v", err)
	}

	latest, err := db.LatestRunReport()
	if err != nil || latest == nil {
		t.Fatalf("expected run report, got %v / %v", latest, err)
	}
	if latest.RunID != result.RunID || latest.Kept != 1 {
		t.Errorf("unexpected run report %+v", latest)
	}
}

func TestSecondRunSkipsLedgeredArticles(t *testing.T) {
	server := articleServer(t)
	p, _, _ := newTestPipeline(t, server.URL+"/feed")

	first := p.Run(context.Background(), 7)
	if first.Failed() {
		t.Fatalf("first run failed: %+v", first.Steps)
	}

	second := p.Run(context.Background(), 7)
	if second.Failed() {
		t.Fatalf("second run failed: %+v", second.Steps)
	}
	if second.Summary.Processed != 0 {
		t.Errorf("expected no articles reprocessed, got %d", second.Summary.Processed)
	}
}

func TestCrossFolderDedup(t *testing.T) {
	p, cfg, _ := newTestPipeline(t, "http://unused.invalid/feed")
	store := collection.NewStore(cfg.EventsDir())

	a := &collection.Collection{Dir: filepath.Join(store.Root, "2026-06-01_080000"), Name: "2026-06-01_080000"}
	a.Events = []event.Event{{
		ID: "old", Title: "Lights Show", VenueName: "Gardens by the Bay",
		SourceURL: "https://blog/a", ExtractedAt: "2026-06-01T00:00:00Z",
	}}
	if err := a.Save(); err != nil {
		t.Fatal(err)
	}

	b := &collection.Collection{Dir: filepath.Join(store.Root, "2026-07-01_080000"), Name: "2026-07-01_080000"}
	b.Events = []event.Event{
		{
			ID: "dup", Title: "Garden Lights Show 2025", VenueName: "Gardens by the Bay",
			SourceURL: "https://blog/b", ExtractedAt: "2026-07-01T00:00:00Z",
		},
		{
			ID: "keep", Title: "Pottery Class", VenueName: "Clay Studio",
			SourceURL: "https://blog/c", ExtractedAt: "2026-07-01T00:00:00Z",
		},
	}
	if err := b.Save(); err != nil {
		t.Fatal(err)
	}

	result, err := p.CrossFolderDedup(context.Background(), nil)
	if err != nil {
		t.Fatalf("cross-folder dedup: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected step failure %+v", result.Steps)
	}

	reloadedA, err := collection.Load(a.Dir)
	if err != nil {
		t.Fatal(err)
	}
	reloadedB, err := collection.Load(b.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloadedA.Events) != 1 {
		t.Errorf("expected earlier collection untouched, got %d events", len(reloadedA.Events))
	}
	if len(reloadedB.Events) != 1 || reloadedB.Events[0].ID != "keep" {
		t.Errorf("expected duplicate removed from later collection, got %+v", reloadedB.Events)
	}
}

func TestCrossFolderDedupNeedsTwoCollections(t *testing.T) {
	p, _, _ := newTestPipeline(t, "http://unused.invalid/feed")
	if _, err := p.CrossFolderDedup(context.Background(), nil); err == nil {
		t.Fatal("expected error with no collections on disk")
	}
}
