package event

// Article is a fetched blog article ready for extraction.
type Article struct {
	SourceID  string
	ID        string
	URL       string
	Title     string
	Published string
	Content   string
}
