package event

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

// MalformedError reports a raw payload that cannot become a candidate.
// The candidate is dropped from its batch; the batch continues.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed candidate: %s", e.Reason)
}

// Normalize converts a raw extraction payload into the canonical Event.
// sourceID and articleID identify the originating article; sourceURL is the
// article URL the candidate was extracted from. Missing optional fields
// become empty values. A missing title or source URL is a MalformedError.
func Normalize(raw RawEvent, sourceID, articleID, sourceURL string, extractedAt time.Time) (Event, error) {
	title := CleanSpace(raw.Title)
	if title == "" {
		return Event{}, &MalformedError{Reason: "empty title"}
	}
	srcURL := CleanSpace(sourceURL)
	if srcURL == "" {
		return Event{}, &MalformedError{Reason: "empty source URL"}
	}

	id := CleanSpace(raw.GUID)
	if id == "" {
		id = uuid.NewString()
	}

	ev := Event{
		ID:           id,
		Title:        title,
		Blurb:        CleanSpace(raw.Blurb),
		Description:  CleanSpace(raw.Description),
		VenueName:    CleanSpace(raw.VenueName),
		FullAddress:  CleanSpace(raw.FullAddress),
		StartDate:    normalizeDate(raw.StartDatetime),
		EndDate:      normalizeDate(raw.EndDatetime),
		TimeDisplay:  CleanSpace(raw.DatetimeDisplay),
		PriceDisplay: CleanSpace(raw.PriceDisplay),
		IsFree:       raw.IsFree,
		Organiser:    CleanSpace(raw.Organiser),
		AgeDisplay:   CleanSpace(raw.AgeGroupDisplay),
		EventURL:     CleanSpace(raw.URL),
		SourceURL:    srcURL,
		SourceID:     sourceID,
		ArticleID:    articleID,
		ExtractedAt:  extractedAt.UTC().Format(time.RFC3339),
	}

	for _, c := range raw.Categories {
		if c = CleanSpace(c); c != "" {
			ev.Categories = append(ev.Categories, c)
		}
	}
	for _, u := range raw.ImageURLs {
		if u = CleanSpace(u); u != "" {
			ev.Images = append(ev.Images, Image{OriginalURL: u})
		}
	}

	return ev, nil
}

// normalizeDate parses any common date representation into YYYY-MM-DD.
// Unparseable input becomes empty rather than propagating junk downstream.
func normalizeDate(s string) string {
	s = CleanSpace(s)
	if s == "" {
		return ""
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}
