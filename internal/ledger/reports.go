package ledger

import (
	"database/sql"
	"fmt"
)

// SaveRunReport stores the audit counts for a completed run. Saving a
// report under an existing run ID replaces its counts.
func (db *DB) SaveRunReport(r RunReport) error {
	_, err := db.conn.Exec(`
		INSERT INTO run_reports (run_id, processed, kept, duplicates, non_relevant, errored)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			generated_at = datetime('now'),
			processed = excluded.processed,
			kept = excluded.kept,
			duplicates = excluded.duplicates,
			non_relevant = excluded.non_relevant,
			errored = excluded.errored`,
		r.RunID, r.Processed, r.Kept, r.Duplicates, r.NonRelevant, r.Errored,
	)
	if err != nil {
		return fmt.Errorf("saving run report %s: %w", r.RunID, err)
	}
	return nil
}

// LatestRunReport returns the most recent run report, or nil if no run
// has been recorded yet.
func (db *DB) LatestRunReport() (*RunReport, error) {
	var r RunReport
	err := db.conn.QueryRow(`
		SELECT id, run_id, generated_at, processed, kept, duplicates, non_relevant, errored
		FROM run_reports
		ORDER BY id DESC
		LIMIT 1`,
	).Scan(&r.ID, &r.RunID, &r.GeneratedAt, &r.Processed, &r.Kept, &r.Duplicates, &r.NonRelevant, &r.Errored)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run report: %w", err)
	}
	return &r, nil
}

// RunReports returns up to limit run reports, newest first.
func (db *DB) RunReports(limit int) ([]RunReport, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, generated_at, processed, kept, duplicates, non_relevant, errored
		FROM run_reports
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying run reports: %w", err)
	}
	defer rows.Close()

	var reports []RunReport
	for rows.Next() {
		var r RunReport
		if err := rows.Scan(&r.ID, &r.RunID, &r.GeneratedAt, &r.Processed, &r.Kept, &r.Duplicates, &r.NonRelevant, &r.Errored); err != nil {
			return nil, fmt.Errorf("scanning run report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
