package ledger

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS processed_articles (
    source_id TEXT NOT NULL,
    article_id TEXT NOT NULL,
    processed_at TEXT NOT NULL DEFAULT (datetime('now')),
    event_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_id, article_id)
);

CREATE TABLE IF NOT EXISTS run_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    generated_at TEXT DEFAULT (datetime('now')),
    processed INTEGER DEFAULT 0,
    kept INTEGER DEFAULT 0,
    duplicates INTEGER DEFAULT 0,
    non_relevant INTEGER DEFAULT 0,
    errored INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_processed_source ON processed_articles(source_id);
CREATE INDEX IF NOT EXISTS idx_run_reports_run ON run_reports(run_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
