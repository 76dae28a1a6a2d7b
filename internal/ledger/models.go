package ledger

// ProcessedArticle is one row of the processed-articles ledger, keyed by
// (source_id, article_id).
type ProcessedArticle struct {
	SourceID    string
	ArticleID   string
	ProcessedAt string
	EventCount  int
}

// RunReport holds the audit counts for one pipeline run.
type RunReport struct {
	ID          int64
	RunID       string
	GeneratedAt string
	Processed   int
	Kept        int
	Duplicates  int
	NonRelevant int
	Errored     int
}

// Stats contains aggregate ledger statistics.
type Stats struct {
	TotalArticles int
	TotalEvents   int
	Sources       int
	Runs          int
}
