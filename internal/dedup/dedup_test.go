package dedup

import (
	"context"
	"testing"

	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/similarity"
)

// oneHotEmbedder assigns each distinct text its own orthogonal vector:
// identical texts score 1, everything else scores 0.
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

func newDeduplicator(images ImageDeleter) *Deduplicator {
	return New(similarity.New(&oneHotEmbedder{}, 0.85, 0.5), images)
}

type recordingDeleter struct {
	deleted []string
}

func (r *recordingDeleter) Delete(path string) error {
	r.deleted = append(r.deleted, path)
	return nil
}

// Mutual duplicates via the venue rule: same venue, titles sharing
// enough tokens.
var (
	earlier = event.Event{
		ID: "earlier", Title: "Lights Show", VenueName: "Gardens by the Bay",
		SourceURL: "https://blog/a", ExtractedAt: "2026-07-01T08:00:00Z",
	}
	later = event.Event{
		ID: "later", Title: "Garden Lights Show 2025", VenueName: "Gardens by the Bay",
		SourceURL: "https://blog/b", ExtractedAt: "2026-07-02T08:00:00Z",
	}
	unrelated = event.Event{
		ID: "unrelated", Title: "Pottery Class", VenueName: "Clay Studio",
		SourceURL: "https://blog/c", ExtractedAt: "2026-07-03T08:00:00Z",
	}
)

func ids(events []event.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func TestDedupBatchFirstSeenWins(t *testing.T) {
	orderings := [][]event.Event{
		{earlier, later, unrelated},
		{later, earlier, unrelated},
		{unrelated, later, earlier},
	}
	for _, batch := range orderings {
		kept, dropped := newDeduplicator(nil).DedupBatch(context.Background(), batch)
		if len(kept) != 2 || len(dropped) != 1 {
			t.Fatalf("ordering %v: expected 2 kept / 1 dropped, got %v / %v", ids(batch), ids(kept), ids(dropped))
		}
		if dropped[0].ID != "later" {
			t.Errorf("ordering %v: expected later-extracted duplicate dropped, got %q", ids(batch), dropped[0].ID)
		}
	}
}

func TestDedupBatchDeterminism(t *testing.T) {
	d := newDeduplicator(nil)
	batch := []event.Event{later, unrelated, earlier}

	kept1, dropped1 := d.DedupBatch(context.Background(), batch)
	kept2, dropped2 := d.DedupBatch(context.Background(), batch)

	if len(kept1) != len(kept2) || len(dropped1) != len(dropped2) {
		t.Fatal("expected identical results across runs")
	}
	for i := range kept1 {
		if kept1[i].ID != kept2[i].ID {
			t.Errorf("kept order differs at %d: %q vs %q", i, kept1[i].ID, kept2[i].ID)
		}
	}
}

func TestDedupBatchStampsStatus(t *testing.T) {
	kept, dropped := newDeduplicator(nil).DedupBatch(context.Background(), []event.Event{earlier, later})

	for _, ev := range kept {
		if ev.DedupStatus != event.DedupKept {
			t.Errorf("expected kept status on %q, got %q", ev.ID, ev.DedupStatus)
		}
	}
	for _, ev := range dropped {
		if ev.DedupStatus != event.DedupDropped {
			t.Errorf("expected duplicate status on %q, got %q", ev.ID, ev.DedupStatus)
		}
	}
}

func TestDroppedImagesDeleted(t *testing.T) {
	withImages := later
	withImages.Images = []event.Image{
		{OriginalURL: "https://img/a.jpg", LocalPath: "/data/images/a.jpg"},
		{OriginalURL: "https://img/b.jpg"},
	}
	keptWithImages := earlier
	keptWithImages.Images = []event.Image{{OriginalURL: "https://img/k.jpg", LocalPath: "/data/images/k.jpg"}}

	deleter := &recordingDeleter{}
	_, dropped := newDeduplicator(deleter).DedupBatch(context.Background(), []event.Event{keptWithImages, withImages})

	if len(dropped) != 1 || dropped[0].ID != "later" {
		t.Fatalf("expected later dropped, got %v", ids(dropped))
	}
	if len(deleter.deleted) != 1 || deleter.deleted[0] != "/data/images/a.jpg" {
		t.Errorf("expected only the dropped event's local image deleted, got %v", deleter.deleted)
	}
}

func TestDedupAgainstExistingNeverDropsExisting(t *testing.T) {
	// Incoming was extracted before the existing record, but existing
	// state still wins.
	incoming := earlier
	existing := []event.Event{later}

	kept, dropped := newDeduplicator(nil).DedupAgainstExisting(context.Background(), existing, []event.Event{incoming, unrelated})

	if len(kept) != 1 || kept[0].ID != "unrelated" {
		t.Errorf("expected only the unrelated candidate kept, got %v", ids(kept))
	}
	if len(dropped) != 1 || dropped[0].ID != "earlier" {
		t.Errorf("expected the incoming duplicate dropped, got %v", ids(dropped))
	}
}

func TestDedupAcrossCollections(t *testing.T) {
	folderA := []event.Event{earlier, unrelated}
	folderB := []event.Event{later}

	result, dropped, conflicts := newDeduplicator(nil).DedupAcrossCollections(context.Background(), [][]event.Event{folderA, folderB})

	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts %v", conflicts)
	}
	if len(result) != 2 {
		t.Fatalf("expected parallel result shape, got %d folders", len(result))
	}
	if len(result[0]) != 2 || len(result[1]) != 0 {
		t.Errorf("expected survivors to stay in their folders, got %v / %v", ids(result[0]), ids(result[1]))
	}
	if len(dropped) != 1 || dropped[0].ID != "later" {
		t.Errorf("expected later dropped, got %v", ids(dropped))
	}
}

func TestCrossCollectionScopeDefersImageDeletion(t *testing.T) {
	withImage := later
	withImage.Images = []event.Image{{OriginalURL: "https://img/a.jpg", LocalPath: "/data/images/a.jpg"}}

	deleter := &recordingDeleter{}
	d := newDeduplicator(deleter)
	_, dropped, conflicts := d.DedupAcrossCollections(context.Background(), [][]event.Event{{earlier}, {withImage}})

	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts %v", conflicts)
	}
	if len(dropped) != 1 || dropped[0].ID != "later" {
		t.Fatalf("expected later dropped, got %v", ids(dropped))
	}
	// Dropped events reference persisted collections here, so files
	// outlive the decision until the caller has rewritten them.
	if len(deleter.deleted) != 0 {
		t.Errorf("expected no deletion during cross-collection dedup, got %v", deleter.deleted)
	}
	if dropped[0].DedupStatus != event.DedupDropped {
		t.Errorf("expected dropped status stamped, got %q", dropped[0].DedupStatus)
	}

	d.DeleteImages(dropped)
	if len(deleter.deleted) != 1 || deleter.deleted[0] != "/data/images/a.jpg" {
		t.Errorf("expected deferred deletion on request, got %v", deleter.deleted)
	}
}

func TestReviewedOutranksFirstSeen(t *testing.T) {
	reviewedLater := later
	reviewedLater.Reviewed = true

	result, dropped, conflicts := newDeduplicator(nil).DedupAcrossCollections(context.Background(), [][]event.Event{{earlier}, {reviewedLater}})

	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts %v", conflicts)
	}
	if len(result[1]) != 1 || result[1][0].ID != "later" {
		t.Errorf("expected reviewed event kept, got %v", ids(result[1]))
	}
	if len(dropped) != 1 || dropped[0].ID != "earlier" {
		t.Errorf("expected unreviewed earlier event dropped, got %v", ids(dropped))
	}
}

func TestTwoReviewedDuplicatesConflict(t *testing.T) {
	reviewedA := earlier
	reviewedA.Reviewed = true
	reviewedB := later
	reviewedB.Reviewed = true

	result, dropped, conflicts := newDeduplicator(nil).DedupAcrossCollections(context.Background(), [][]event.Event{{reviewedA}, {reviewedB}})

	if len(conflicts) != 1 {
		t.Fatalf("expected one conflict, got %d", len(conflicts))
	}
	if len(dropped) != 0 {
		t.Errorf("expected both reviewed events kept, dropped %v", ids(dropped))
	}
	if len(result[0]) != 1 || len(result[1]) != 1 {
		t.Errorf("expected both folders intact, got %v / %v", ids(result[0]), ids(result[1]))
	}
}
