package event

import "strings"

// RelevanceLabel is the tri-state relevance classification of a candidate.
type RelevanceLabel string

const (
	RelevanceUnknown     RelevanceLabel = ""
	RelevanceRelevant    RelevanceLabel = "relevant"
	RelevanceNonRelevant RelevanceLabel = "non_relevant"
)

// DedupStatus is the tri-state deduplication outcome of a candidate.
type DedupStatus string

const (
	DedupUnknown DedupStatus = ""
	DedupKept    DedupStatus = "kept"
	DedupDropped DedupStatus = "duplicate"
)

// Image describes one image attached to an event.
type Image struct {
	OriginalURL  string `json:"original_url"`
	LocalPath    string `json:"local_path,omitempty"`
	Filename     string `json:"filename,omitempty"`
	SourceCredit string `json:"source_credit,omitempty"`
}

// Event is the canonical normalized candidate event. Every pipeline stage
// after the Normalizer operates on this shape.
type Event struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Blurb        string         `json:"blurb,omitempty"`
	Description  string         `json:"description,omitempty"`
	VenueName    string         `json:"venue_name,omitempty"`
	FullAddress  string         `json:"full_address,omitempty"`
	Latitude     float64        `json:"latitude,omitempty"`
	Longitude    float64        `json:"longitude,omitempty"`
	StartDate    string         `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate      string         `json:"end_date,omitempty"`   // YYYY-MM-DD
	TimeDisplay  string         `json:"datetime_display,omitempty"`
	PriceDisplay string         `json:"price_display,omitempty"`
	IsFree       bool           `json:"is_free,omitempty"`
	Organiser    string         `json:"organiser,omitempty"`
	AgeDisplay   string         `json:"age_group_display,omitempty"`
	Categories   []string       `json:"categories,omitempty"`
	EventURL     string         `json:"url,omitempty"`
	SourceURL    string         `json:"source_url"`
	SourceID     string         `json:"source_id,omitempty"`
	ArticleID    string         `json:"article_id,omitempty"`
	Images       []Image        `json:"images,omitempty"`
	ExtractedAt  string         `json:"extracted_at"` // RFC3339
	Relevance    RelevanceLabel `json:"relevance_label,omitempty"`
	DedupStatus  DedupStatus    `json:"dedup_status,omitempty"`
	Reviewed     bool           `json:"reviewed,omitempty"`
}

// NormVenue returns the venue name canonicalized for comparison:
// whitespace collapsed and case-folded. Display casing is preserved in
// VenueName.
func (e *Event) NormVenue() string {
	return strings.ToLower(CleanSpace(e.VenueName))
}

// NormAddress returns the address canonicalized for comparison.
func (e *Event) NormAddress() string {
	return strings.ToLower(CleanSpace(e.FullAddress))
}

// HasCoordinates reports whether the event carries geocoded coordinates.
func (e *Event) HasCoordinates() bool {
	return e.Latitude != 0 || e.Longitude != 0
}

// ComparisonText is the text the Similarity Engine embeds for this event.
func (e *Event) ComparisonText() string {
	if e.Description == "" {
		return CleanSpace(e.Title)
	}
	return CleanSpace(e.Title + " " + e.Description)
}

// CleanSpace collapses all whitespace runs to single spaces and trims.
func CleanSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
