package filter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/janlim/eventscout/internal/event"
)

type fakeProvider struct {
	responses map[string]string
	fallback  string
	err       error
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for needle, response := range f.responses {
		if needle != "" && strings.Contains(prompt, needle) {
			return response, nil
		}
	}
	return f.fallback, nil
}

func (f *fakeProvider) IsConfigured() bool { return true }

func TestClassifyRelevant(t *testing.T) {
	f := New(&fakeProvider{fallback: `{"relevant": true}`})
	got := f.Classify(context.Background(), event.Event{Title: "Kids Craft Fair"})
	if got != event.RelevanceRelevant {
		t.Errorf("expected relevant, got %q", got)
	}
}

func TestClassifyNonRelevant(t *testing.T) {
	f := New(&fakeProvider{fallback: `{"relevant": false}`})
	got := f.Classify(context.Background(), event.Event{Title: "Whisky Tasting Night"})
	if got != event.RelevanceNonRelevant {
		t.Errorf("expected non-relevant, got %q", got)
	}
}

func TestClassifyDefaultsOnError(t *testing.T) {
	f := New(&fakeProvider{err: errors.New("provider down")})
	got := f.Classify(context.Background(), event.Event{Title: "Kids Craft Fair"})
	if got != event.RelevanceNonRelevant {
		t.Errorf("expected provider failure to default to non-relevant, got %q", got)
	}
}

func TestClassifyDefaultsOnGarbage(t *testing.T) {
	cases := []string{
		"maybe relevant?",
		`{"verdict": "yes"}`,
		`{"relevant": "true"}`,
		"",
	}
	for _, response := range cases {
		f := New(&fakeProvider{fallback: response})
		got := f.Classify(context.Background(), event.Event{Title: "Kids Craft Fair"})
		if got != event.RelevanceNonRelevant {
			t.Errorf("response %q: expected non-relevant, got %q", response, got)
		}
	}
}

func TestClassifyNilProvider(t *testing.T) {
	f := New(nil)
	got := f.Classify(context.Background(), event.Event{Title: "Kids Craft Fair"})
	if got != event.RelevanceNonRelevant {
		t.Errorf("expected missing provider to default to non-relevant, got %q", got)
	}
}

func TestClassifyEmptyTitle(t *testing.T) {
	f := New(&fakeProvider{fallback: `{"relevant": true}`})
	got := f.Classify(context.Background(), event.Event{})
	if got != event.RelevanceNonRelevant {
		t.Errorf("expected missing text to default to non-relevant, got %q", got)
	}
}

func TestRunSplitsBatch(t *testing.T) {
	f := New(&fakeProvider{
		responses: map[string]string{"Whisky Tasting Night": `{"relevant": false}`},
		fallback:  `{"relevant": true}`,
	})

	events := []event.Event{
		{ID: "a", Title: "Kids Craft Fair"},
		{ID: "b", Title: "Whisky Tasting Night"},
		{ID: "c", Title: "Science Centre Open House"},
	}
	relevant, nonRelevant := f.Run(context.Background(), events)

	if len(relevant) != 2 || len(nonRelevant) != 1 {
		t.Fatalf("expected 2/1 split, got %d/%d", len(relevant), len(nonRelevant))
	}
	if nonRelevant[0].ID != "b" {
		t.Errorf("expected whisky night filtered, got %q", nonRelevant[0].Title)
	}
	for _, ev := range events {
		if ev.Relevance == event.RelevanceUnknown {
			t.Errorf("expected label stamped on %q", ev.Title)
		}
	}
	seen := map[string]int{}
	for _, ev := range append(relevant, nonRelevant...) {
		seen[ev.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("event %s appears %d times across groups", id, n)
		}
	}
}
