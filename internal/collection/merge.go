package collection

import (
	"context"
	"fmt"
	"strings"

	"github.com/janlim/eventscout/internal/dedup"
	"github.com/janlim/eventscout/internal/event"
)

// MergeConflict is returned when re-validation finds duplicates that
// automatic resolution cannot settle. The merge is aborted and the
// collection on disk is left exactly as it was.
type MergeConflict struct {
	Collection string
	Conflicts  []dedup.Conflict
}

func (e *MergeConflict) Error() string {
	pairs := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		pairs[i] = c.Error()
	}
	return fmt.Sprintf("merge aborted for %s: %s", e.Collection, strings.Join(pairs, "; "))
}

// Merger folds incoming events into existing collections.
type Merger struct {
	dedup *dedup.Deduplicator
}

// NewMerger creates a Merger.
func NewMerger(d *dedup.Deduplicator) *Merger {
	return &Merger{dedup: d}
}

// Merge adds incoming events to the collection and writes it out.
// The no-duplicate invariant is re-validated across existing plus
// incoming even when the incoming set was already deduplicated against
// history, because manual review between runs may have changed the
// existing events. Reviewed existing events always outrank incoming
// duplicates. On conflict nothing is written and no images are
// deleted; dropped events lose their local images only once the
// rewritten collection is durable on disk.
func (m *Merger) Merge(ctx context.Context, c *Collection, incoming []event.Event) error {
	result, dropped, conflicts := m.dedup.DedupAcrossCollections(ctx, [][]event.Event{c.Events, incoming})
	if len(conflicts) > 0 {
		return &MergeConflict{Collection: c.Name, Conflicts: conflicts}
	}

	merged := make([]event.Event, 0, len(result[0])+len(result[1]))
	merged = append(merged, result[0]...)
	merged = append(merged, result[1]...)
	c.Events = merged

	if err := c.Save(); err != nil {
		return fmt.Errorf("merging into %s: %w", c.Name, err)
	}

	m.dedup.DeleteImages(dropped)
	return nil
}

// MergeNonRelevant appends the non-relevant record set and writes the
// collection. Non-relevant events are records, not publications, so
// they are deduplicated by ID only.
func (m *Merger) MergeNonRelevant(c *Collection, incoming []event.Event) error {
	seen := make(map[string]struct{}, len(c.NonRelevant))
	for _, ev := range c.NonRelevant {
		seen[ev.ID] = struct{}{}
	}
	for _, ev := range incoming {
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		c.NonRelevant = append(c.NonRelevant, ev)
	}

	if err := c.Save(); err != nil {
		return fmt.Errorf("merging non-relevant into %s: %w", c.Name, err)
	}
	return nil
}
