// Package similarity decides whether two events describe the same
// real-world happening. It combines embedding cosine similarity over
// title + description with a venue-match signal that can override the
// embedding score for recurring events at the same place.
package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/llm"
)

// Engine scores event pairs for duplication. It is deterministic for a
// fixed embedding model: identical inputs always produce identical
// verdicts, which keeps dedup runs reproducible.
type Engine struct {
	embedder            llm.Embedder
	primaryThreshold    float64
	venueTitleThreshold float64

	// embeddings caches vectors by event ID for the current run.
	embeddings map[string][]float64
}

// New creates an Engine. primaryThreshold gates the embedding score
// (default 0.85); venueTitleThreshold gates title similarity when the
// venue-match signal fires (default 0.5).
func New(embedder llm.Embedder, primaryThreshold, venueTitleThreshold float64) *Engine {
	return &Engine{
		embedder:            embedder,
		primaryThreshold:    primaryThreshold,
		venueTitleThreshold: venueTitleThreshold,
		embeddings:          make(map[string][]float64),
	}
}

// PrepareBatch embeds the comparison text of every event not already
// cached, in one call. An embedding failure leaves the affected events
// unscored: Score returns 0 for them, so they are kept rather than
// silently dropped, and the lexical rules still apply.
func (e *Engine) PrepareBatch(ctx context.Context, events []event.Event) error {
	if e.embedder == nil {
		return nil
	}

	var texts []string
	var ids []string
	for _, ev := range events {
		if _, ok := e.embeddings[ev.ID]; ok {
			continue
		}
		ids = append(ids, ev.ID)
		texts = append(texts, ev.ComparisonText())
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d events: %w", len(texts), err)
	}

	for i, id := range ids {
		e.embeddings[id] = vectors[i]
	}
	return nil
}

// Score returns the embedding cosine similarity between two events,
// clamped to [0,1]. Events without a cached vector score 0.
func (e *Engine) Score(a, b event.Event) float64 {
	va, okA := e.embeddings[a.ID]
	vb, okB := e.embeddings[b.ID]
	if !okA || !okB {
		return 0
	}
	return clamp01(cosine(va, vb))
}

// IsDuplicate reports whether two events describe the same happening.
// Decision rules, in priority order:
//
//  1. Same source URL with venues that do not both disagree: duplicate.
//  2. Venue match and title similarity at or above the venue-assisted
//     threshold: duplicate, regardless of embedding score.
//  3. Embedding score at or above the primary threshold: duplicate.
func (e *Engine) IsDuplicate(a, b event.Event) bool {
	if a.SourceURL != "" && a.SourceURL == b.SourceURL {
		va, vb := a.NormVenue(), b.NormVenue()
		bothDiffer := va != "" && vb != "" && va != vb
		if !bothDiffer {
			return true
		}
	}

	if venueMatch(a, b) && TitleSimilarity(a.Title, b.Title) >= e.venueTitleThreshold {
		return true
	}

	return e.Score(a, b) >= e.primaryThreshold
}

// venueMatch reports whether two events share a venue: case-folded
// equal venue names, or one normalized address containing the other.
// Empty strings never match, not even each other.
func venueMatch(a, b event.Event) bool {
	va, vb := a.NormVenue(), b.NormVenue()
	if va != "" && va == vb {
		return true
	}

	aa, ab := a.NormAddress(), b.NormAddress()
	if aa == "" || ab == "" {
		return false
	}
	return strings.Contains(aa, ab) || strings.Contains(ab, aa)
}

// TitleSimilarity computes the Dice coefficient over case-folded title
// tokens. Purely lexical so the venue-assisted rule stays deterministic
// and costs no embedding calls.
func TitleSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for token := range ta {
		if _, ok := tb[token]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(s)) {
		token = strings.Trim(token, ".,!?:;()'\"")
		if token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
