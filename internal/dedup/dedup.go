// Package dedup removes duplicate events across three scopes: within a
// single extraction batch, against an existing collection, and across
// an arbitrary set of collections. The first-seen candidate wins in
// every scope, so repeated runs over the same input are reproducible.
package dedup

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/similarity"
)

// ImageDeleter removes a locally stored image by path. Deletion runs
// only after the owning event is durably marked dropped.
type ImageDeleter interface {
	Delete(localPath string) error
}

// Conflict is a pair of reviewed events that are mutual duplicates.
// Automatic resolution cannot pick a winner, so the caller must
// surface it to the operator.
type Conflict struct {
	A, B event.Event
}

func (c Conflict) Error() string {
	return fmt.Sprintf("reviewed events %q and %q are mutual duplicates", c.A.Title, c.B.Title)
}

// Deduplicator orchestrates the similarity engine over event sets.
type Deduplicator struct {
	engine *similarity.Engine
	images ImageDeleter
}

// New creates a Deduplicator. images may be nil when no local image
// store is in use.
func New(engine *similarity.Engine, images ImageDeleter) *Deduplicator {
	return &Deduplicator{engine: engine, images: images}
}

// DedupBatch deduplicates one extraction batch against itself. Both
// returned slices carry a stamped dedup status; dropped events have
// their local images deleted.
func (d *Deduplicator) DedupBatch(ctx context.Context, batch []event.Event) (kept, dropped []event.Event) {
	d.prepare(ctx, batch)

	kept, dropped, conflicts := d.sweep(batch)
	for _, c := range conflicts {
		// Within a fresh batch nothing is reviewed yet, so this
		// indicates reviewed events fed through the wrong scope.
		log.Printf("Unexpected review conflict in batch scope: %v", c)
	}

	stamp(kept, dropped)
	d.DeleteImages(dropped)
	return kept, dropped
}

// DedupAgainstExisting deduplicates incoming candidates against an
// existing collection. Existing events are never dropped; an incoming
// duplicate of any existing event is discarded.
func (d *Deduplicator) DedupAgainstExisting(ctx context.Context, existing, incoming []event.Event) (kept, dropped []event.Event) {
	d.prepare(ctx, existing)
	d.prepare(ctx, incoming)

	for _, candidate := range ordered(incoming) {
		duplicate := false
		for _, prior := range existing {
			if d.engine.IsDuplicate(prior, candidate) {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped = append(dropped, candidate)
		} else {
			kept = append(kept, candidate)
		}
	}

	stamp(kept, dropped)
	d.DeleteImages(dropped)
	return kept, dropped
}

// DedupAcrossCollections deduplicates the union of several collections
// while remembering which collection each survivor belongs to. The
// returned slice is parallel to the input. Reviewed events are never
// dropped in favor of unreviewed ones; two reviewed mutual duplicates
// are returned as conflicts with both members kept.
//
// Unlike the batch scopes this never deletes images: the drops touch
// persisted events, so the caller must rewrite every collection first
// and call DeleteImages only once the saves are durable. On conflict
// no images may be deleted at all.
func (d *Deduplicator) DedupAcrossCollections(ctx context.Context, collections [][]event.Event) (result [][]event.Event, dropped []event.Event, conflicts []Conflict) {
	var all []event.Event
	origin := make(map[string]int)
	for folder, events := range collections {
		for _, ev := range events {
			all = append(all, ev)
			origin[ev.ID] = folder
		}
	}
	d.prepare(ctx, all)

	kept, droppedEvents, conflicts := d.sweep(all)

	result = make([][]event.Event, len(collections))
	for _, ev := range kept {
		folder := origin[ev.ID]
		result[folder] = append(result[folder], ev)
	}
	dropped = droppedEvents

	stamp(kept, dropped)
	return result, dropped, conflicts
}

// sweep runs the pairwise first-seen-wins pass over one ordered set.
func (d *Deduplicator) sweep(events []event.Event) (kept, dropped []event.Event, conflicts []Conflict) {
	candidates := ordered(events)
	out := make([]bool, len(candidates))

	for i := range candidates {
		if out[i] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if out[j] {
				continue
			}
			if !d.engine.IsDuplicate(candidates[i], candidates[j]) {
				continue
			}

			switch {
			case candidates[i].Reviewed && candidates[j].Reviewed:
				conflicts = append(conflicts, Conflict{A: candidates[i], B: candidates[j]})
			case candidates[j].Reviewed:
				// A reviewed event outranks first-seen ordering.
				out[i] = true
			default:
				out[j] = true
			}
			if out[i] {
				break
			}
		}
	}

	for i, ev := range candidates {
		if out[i] {
			dropped = append(dropped, ev)
		} else {
			kept = append(kept, ev)
		}
	}
	return kept, dropped, conflicts
}

// prepare embeds a set, keeping candidates unscored on failure so the
// lexical rules still apply and nothing is silently dropped.
func (d *Deduplicator) prepare(ctx context.Context, events []event.Event) {
	if err := d.engine.PrepareBatch(ctx, events); err != nil {
		log.Printf("SIMILARITY ENGINE FAILURE, affected events kept unscored: %v", err)
	}
}

// stamp marks dedup status on both groups. Marking happens strictly
// before any image deletion.
func stamp(kept, dropped []event.Event) {
	for i := range kept {
		kept[i].DedupStatus = event.DedupKept
	}
	for i := range dropped {
		dropped[i].DedupStatus = event.DedupDropped
	}
}

// DeleteImages removes the local images of dropped events. Errors are
// logged, never fatal: an orphaned file is recoverable, a dangling
// reference is not.
func (d *Deduplicator) DeleteImages(dropped []event.Event) {
	if d.images == nil {
		return
	}
	for _, ev := range dropped {
		for _, img := range ev.Images {
			if img.LocalPath == "" {
				continue
			}
			if err := d.images.Delete(img.LocalPath); err != nil {
				log.Printf("Deleting image %s for dropped event %q: %v", img.LocalPath, ev.Title, err)
			}
		}
	}
}

// ordered returns a copy sorted by extraction time, then title, then
// ID. This ordering defines first-seen for every scope.
func ordered(events []event.Event) []event.Event {
	sorted := make([]event.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ExtractedAt != sorted[j].ExtractedAt {
			return sorted[i].ExtractedAt < sorted[j].ExtractedAt
		}
		if sorted[i].Title != sorted[j].Title {
			return sorted[i].Title < sorted[j].Title
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
