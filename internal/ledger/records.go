package ledger

import (
	"database/sql"
	"fmt"
)

// HasProcessed reports whether the article has already been recorded.
func (db *DB) HasProcessed(sourceID, articleID string) (bool, error) {
	var one int
	err := db.conn.QueryRow(
		"SELECT 1 FROM processed_articles WHERE source_id = ? AND article_id = ?",
		sourceID, articleID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return true, nil
}

// Record marks an article as processed with the number of events it yielded.
// Recording is idempotent: reprocessing the same article updates the row
// in place instead of inserting a second one. Zero-yield articles are
// recorded too so they are not refetched on the next run.
func (db *DB) Record(sourceID, articleID string, eventCount int) error {
	_, err := db.conn.Exec(`
		INSERT INTO processed_articles (source_id, article_id, event_count)
		VALUES (?, ?, ?)
		ON CONFLICT(source_id, article_id) DO UPDATE SET
			processed_at = datetime('now'),
			event_count = excluded.event_count`,
		sourceID, articleID, eventCount,
	)
	if err != nil {
		return fmt.Errorf("recording article %s/%s: %w", sourceID, articleID, err)
	}
	return nil
}

// HistoryFor returns all processed articles for a source, newest first.
func (db *DB) HistoryFor(sourceID string) ([]ProcessedArticle, error) {
	rows, err := db.conn.Query(`
		SELECT source_id, article_id, processed_at, event_count
		FROM processed_articles
		WHERE source_id = ?
		ORDER BY processed_at DESC, article_id`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var articles []ProcessedArticle
	for rows.Next() {
		var a ProcessedArticle
		if err := rows.Scan(&a.SourceID, &a.ArticleID, &a.ProcessedAt, &a.EventCount); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// ResetSource forgets all processed articles for one source so they can be
// reprocessed on the next run.
func (db *DB) ResetSource(sourceID string) (int64, error) {
	res, err := db.conn.Exec("DELETE FROM processed_articles WHERE source_id = ?", sourceID)
	if err != nil {
		return 0, fmt.Errorf("resetting source %s: %w", sourceID, err)
	}
	return res.RowsAffected()
}

// Reset forgets all processed articles across every source.
func (db *DB) Reset() (int64, error) {
	res, err := db.conn.Exec("DELETE FROM processed_articles")
	if err != nil {
		return 0, fmt.Errorf("resetting ledger: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns aggregate counts across the ledger.
func (db *DB) Stats() (*Stats, error) {
	s := &Stats{}
	err := db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(event_count), 0), COUNT(DISTINCT source_id)
		FROM processed_articles`,
	).Scan(&s.TotalArticles, &s.TotalEvents, &s.Sources)
	if err != nil {
		return nil, fmt.Errorf("querying ledger stats: %w", err)
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM run_reports").Scan(&s.Runs); err != nil {
		return nil, fmt.Errorf("querying run count: %w", err)
	}
	return s, nil
}
