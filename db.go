package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		run_at               DATETIME NOT NULL,
		total_rows           INTEGER NOT NULL,
		total_requests       INTEGER NOT NULL,
		skipped_rows         INTEGER NOT NULL DEFAULT 0,
		most_common_category TEXT DEFAULT '',
		most_common_count    INTEGER NOT NULL DEFAULT 0,
		enriched_count       INTEGER NOT NULL DEFAULT 0,
		failed_count         INTEGER NOT NULL DEFAULT 0,
		llm_provider         TEXT DEFAULT '',
		llm_model            TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_run_at ON analysis_runs(run_at);

	CREATE TABLE IF NOT EXISTS run_categories (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id   INTEGER NOT NULL,
		position INTEGER NOT NULL,
		category TEXT NOT NULL,
		count    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rc_run ON run_categories(run_id);

	CREATE TABLE IF NOT EXISTS enriched_requests (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id         INTEGER NOT NULL,
		row_number     INTEGER NOT NULL,
		request_id     TEXT DEFAULT '',
		request_date   TEXT DEFAULT '',
		category       TEXT DEFAULT '',
		choice         TEXT DEFAULT '',
		priority       TEXT DEFAULT '',
		summary        TEXT DEFAULT '',
		recommendation TEXT DEFAULT '',
		error          TEXT DEFAULT '',
		processing_sec REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_er_run ON enriched_requests(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return db, nil
}

// AnalysisRun is one persisted pipeline execution, for trend reporting.
type AnalysisRun struct {
	ID                 int64
	RunAt              time.Time
	TotalRows          int
	TotalRequests      int
	SkippedRows        int
	MostCommonCategory string
	MostCommonCount    int
	EnrichedCount      int
	FailedCount        int
	LLMProvider        string
	LLMModel           string
}

func InsertAnalysisRun(db *sql.DB, run AnalysisRun, result AnalysisResult) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO analysis_runs (run_at, total_rows, total_requests, skipped_rows, most_common_category, most_common_count, enriched_count, failed_count, llm_provider, llm_model)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunAt, run.TotalRows, run.TotalRequests, run.SkippedRows,
		run.MostCommonCategory, run.MostCommonCount, run.EnrichedCount, run.FailedCount,
		run.LLMProvider, run.LLMModel,
	)
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return runID, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO run_categories (run_id, position, category, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return runID, err
	}
	defer stmt.Close()

	for position, category := range result.CategoryOrder {
		if _, err := stmt.Exec(runID, position, category, result.CategoryCounts[category]); err != nil {
			return runID, err
		}
	}

	return runID, tx.Commit()
}

func InsertEnrichedRequests(db *sql.DB, runID int64, enriched []EnrichedRequest) (int, error) {
	if len(enriched) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO enriched_requests (run_id, row_number, request_id, request_date, category, choice, priority, summary, recommendation, error, processing_sec)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range enriched {
		priority, summary, recommendation := "", "", ""
		processing := 0.0
		if e.Analysis != nil {
			priority = e.Analysis.Priority
			summary = e.Analysis.Summary
			recommendation = e.Analysis.Recommendation
			processing = e.Analysis.ProcessingTime
		}
		_, err := stmt.Exec(runID, e.RowNumber, e.ID, e.Date, e.Category, e.Choice,
			priority, summary, recommendation, e.Err, processing)
		if err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, tx.Commit()
}

func GetRecentRuns(db *sql.DB, limit int) ([]AnalysisRun, error) {
	rows, err := db.Query(
		`SELECT id, run_at, total_rows, total_requests, skipped_rows, most_common_category, most_common_count, enriched_count, failed_count, llm_provider, llm_model
		 FROM analysis_runs ORDER BY run_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var run AnalysisRun
		if err := rows.Scan(&run.ID, &run.RunAt, &run.TotalRows, &run.TotalRequests, &run.SkippedRows,
			&run.MostCommonCategory, &run.MostCommonCount, &run.EnrichedCount, &run.FailedCount,
			&run.LLMProvider, &run.LLMModel); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunCategories returns the persisted frequency table for a run in its
// original first-seen order.
func GetRunCategories(db *sql.DB, runID int64) ([]CategoryCount, error) {
	rows, err := db.Query(
		`SELECT category, count FROM run_categories WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// TrendPoint is one run's count for a category.
type TrendPoint struct {
	RunAt time.Time
	Count int
}

// GetCategoryTrend returns per-run counts for one category since a cutoff,
// oldest first.
func GetCategoryTrend(db *sql.DB, category string, since time.Time) ([]TrendPoint, error) {
	rows, err := db.Query(
		`SELECT r.run_at, c.count
		 FROM run_categories c JOIN analysis_runs r ON r.id = c.run_id
		 WHERE c.category = ? AND r.run_at >= ?
		 ORDER BY r.run_at`, category, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var point TrendPoint
		if err := rows.Scan(&point.RunAt, &point.Count); err != nil {
			return nil, err
		}
		out = append(out, point)
	}
	return out, rows.Err()
}
