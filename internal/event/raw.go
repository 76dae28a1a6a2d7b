package event

// RawEvent is the loosely-typed payload produced by the extraction
// collaborator for one candidate event. Field names match the JSON schema
// the language model is prompted with; anything may be missing or empty.
type RawEvent struct {
	Title           string   `json:"title"`
	Blurb           string   `json:"blurb"`
	Description     string   `json:"description"`
	GUID            string   `json:"guid"`
	URL             string   `json:"url"`
	PriceDisplay    string   `json:"price_display"`
	IsFree          bool     `json:"is_free"`
	Organiser       string   `json:"organiser"`
	AgeGroupDisplay string   `json:"age_group_display"`
	DatetimeDisplay string   `json:"datetime_display"`
	StartDatetime   string   `json:"start_datetime"`
	EndDatetime     string   `json:"end_datetime"`
	VenueName       string   `json:"venue_name"`
	FullAddress     string   `json:"full_address"`
	Categories      []string `json:"categories"`
	ImageURLs       []string `json:"image_urls"`
}
