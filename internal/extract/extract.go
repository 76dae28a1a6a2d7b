// Package extract turns article text into structured event payloads via
// an LLM and normalizes them into domain events.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/llm"
)

const extractionPrompt = `You are extracting family-friendly events from a blog article.

Return a JSON array of event objects. Each object has these fields
(use an empty string for anything the article does not state; never
invent values):

  title              - event name
  blurb              - one-sentence summary
  description        - fuller description, a few sentences
  url                - the event's own page if linked, else ""
  venue_name         - venue name
  full_address       - full street address
  start_datetime     - ISO date or datetime of the first day
  end_datetime       - ISO date or datetime of the last day
  datetime_display   - human-readable schedule, e.g. "Sat-Sun, 10am-6pm"
  price_display      - human-readable price, e.g. "From $12" or "Free"
  is_free            - true only if explicitly free
  organiser          - organising company or body
  age_group_display  - target ages, e.g. "4-12 years"
  categories         - array of short category labels
  image_urls         - array of image URLs from the article for this event

Only include real, dated or ongoing events a family could attend.
Skip product roundups, giveaways and general venue descriptions.
Return [] if the article contains no events. Return ONLY the JSON array.

Article title: %s
Article URL: %s

Article text:
%s`

// maxArticleChars caps the article text included in the prompt.
const maxArticleChars = 24000

// Extractor extracts events from articles using an LLM provider.
type Extractor struct {
	provider  llm.Provider
	maxTokens int
}

// New creates an Extractor.
func New(provider llm.Provider, maxTokens int) *Extractor {
	return &Extractor{provider: provider, maxTokens: maxTokens}
}

// Extract asks the LLM for the events in one article and returns them
// normalized. Malformed payload elements are skipped with a log line;
// the remaining events are still returned. An error is returned only
// when the LLM call itself fails.
func (e *Extractor) Extract(ctx context.Context, article event.Article) ([]event.Event, error) {
	text := article.Content
	if len(text) > maxArticleChars {
		cut := maxArticleChars
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	prompt := fmt.Sprintf(extractionPrompt, article.Title, article.URL, text)

	response, err := e.provider.Generate(ctx, prompt, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("extracting events from %s: %w", article.URL, err)
	}
	if looksLikeRefusal(response) {
		return nil, fmt.Errorf("model declined to extract from %s", article.URL)
	}

	elements := llm.ParseJSONArray(response)
	extractedAt := time.Now().UTC()

	var events []event.Event
	for _, element := range elements {
		var raw event.RawEvent
		if err := json.Unmarshal(element, &raw); err != nil {
			log.Printf("Skipping undecodable event payload from %s: %v", article.URL, err)
			continue
		}

		ev, err := event.Normalize(raw, article.SourceID, article.ID, article.URL, extractedAt)
		if err != nil {
			log.Printf("Skipping malformed event from %s: %v", article.URL, err)
			continue
		}
		events = append(events, ev)
	}

	if len(elements) > 0 && len(events) == 0 {
		log.Printf("All %d extracted payloads from %s were malformed", len(elements), article.URL)
	}

	return events, nil
}

// looksLikeRefusal reports whether the model declined instead of
// answering. Used to distinguish "no events" from a refusal so the
// article is not recorded as exhausted.
func looksLikeRefusal(response string) bool {
	lowered := strings.ToLower(strings.TrimSpace(response))
	for _, marker := range []string{"i can't", "i cannot", "i'm unable", "as an ai"} {
		if strings.HasPrefix(lowered, marker) {
			return true
		}
	}
	return false
}
