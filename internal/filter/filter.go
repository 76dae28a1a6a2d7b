// Package filter classifies events as relevant or not for a
// family-outings audience. The verdict is binary; both groups are
// persisted downstream so the split stays auditable.
package filter

import (
	"context"
	"fmt"
	"log"

	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/llm"
)

const classifyPrompt = `You are screening events for a guide of family outings
with children. An event is relevant if a parent could realistically bring
kids: festivals, shows, workshops, markets, exhibitions, playgrounds,
outdoor activities. Not relevant: adult nightlife, product promotions,
webinars, corporate networking, events with a strict adults-only policy.

Event:
  Title: %s
  Description: %s
  Venue: %s
  Age group: %s
  Categories: %v

Respond with ONLY a JSON object: {"relevant": true} or {"relevant": false}`

// classifyMaxTokens bounds the classification response; the payload is
// a single small JSON object.
const classifyMaxTokens = 64

// Filter labels events by audience relevance.
type Filter struct {
	provider llm.Provider
}

// New creates a Filter.
func New(provider llm.Provider) *Filter {
	return &Filter{provider: provider}
}

// Classify returns the relevance label for one event. Any failure to
// reach a verdict (provider error, unparseable response, missing field)
// defaults to non-relevant: a missed event is recoverable from the
// non-relevant record set, a junk event reaching publication is not.
func (f *Filter) Classify(ctx context.Context, ev event.Event) event.RelevanceLabel {
	if ev.Title == "" {
		return event.RelevanceNonRelevant
	}
	if f.provider == nil {
		log.Printf("No relevance provider configured, defaulting %q to non-relevant", ev.Title)
		return event.RelevanceNonRelevant
	}

	prompt := fmt.Sprintf(classifyPrompt, ev.Title, ev.Description, ev.VenueName, ev.AgeDisplay, ev.Categories)

	response, err := f.provider.Generate(ctx, prompt, classifyMaxTokens)
	if err != nil {
		log.Printf("Relevance check failed for %q, defaulting to non-relevant: %v", ev.Title, err)
		return event.RelevanceNonRelevant
	}

	result := llm.ParseJSONResponse(response)
	if result == nil {
		log.Printf("Unparseable relevance verdict for %q, defaulting to non-relevant", ev.Title)
		return event.RelevanceNonRelevant
	}

	relevant, ok := result["relevant"].(bool)
	if !ok {
		log.Printf("Missing relevant field for %q, defaulting to non-relevant", ev.Title)
		return event.RelevanceNonRelevant
	}

	if relevant {
		return event.RelevanceRelevant
	}
	return event.RelevanceNonRelevant
}

// Run labels every event in the batch in place and returns the two
// groups. No event appears in both.
func (f *Filter) Run(ctx context.Context, events []event.Event) (relevant, nonRelevant []event.Event) {
	for i := range events {
		events[i].Relevance = f.Classify(ctx, events[i])
		if events[i].Relevance == event.RelevanceRelevant {
			relevant = append(relevant, events[i])
		} else {
			nonRelevant = append(nonRelevant, events[i])
		}
	}
	return relevant, nonRelevant
}
