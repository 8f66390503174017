package db

import (
	"fmt"
	"time"

	"github.com/thesavant42/wayback-scraper/internal/config"
	"github.com/thesavant42/wayback-scraper/internal/models"
)

// SaveRun stores a finished run with its per-date URLs and discovered domains
func (db *DB) SaveRun(run models.RunSummary, results map[time.Time][]string, discovered []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(insertRun,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Domains,
		run.Dates,
		run.StatusFilter,
		run.Generations,
		run.URLCount,
		run.Discovered,
		boolInt(run.Truncated),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	resultStmt, err := tx.Prepare(insertRunResult)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer resultStmt.Close()

	for date, urls := range results {
		for _, u := range urls {
			if _, err := resultStmt.Exec(run.ID, date.Format(config.DateLayout), u); err != nil {
				return fmt.Errorf("failed to insert run result: %w", err)
			}
		}
	}

	discoveredStmt, err := tx.Prepare(insertRunDiscovered)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer discoveredStmt.Close()

	for _, d := range discovered {
		if _, err := discoveredStmt.Exec(run.ID, d); err != nil {
			return fmt.Errorf("failed to insert discovered domain: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRuns returns the most recent runs, newest first
func (db *DB) GetRuns(limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(selectRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var r models.RunSummary
		var startedAt, finishedAt string
		var truncated int
		if err := rows.Scan(
			&r.ID, &startedAt, &finishedAt, &r.Domains, &r.Dates, &r.StatusFilter,
			&r.Generations, &r.URLCount, &r.Discovered, &truncated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = parseTimestamp(startedAt)
		r.FinishedAt, _ = parseTimestamp(finishedAt)
		r.Truncated = truncated != 0
		runs = append(runs, r)
	}
	return runs, nil
}

// GetRunResults returns the stored URLs of a run keyed by MM-DD-YYYY date
func (db *DB) GetRunResults(runID string) (map[string][]string, error) {
	rows, err := db.conn.Query(selectRunResults, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()

	results := make(map[string][]string)
	for rows.Next() {
		var date, u string
		if err := rows.Scan(&date, &u); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		results[date] = append(results[date], u)
	}
	return results, nil
}

// GetRunDiscovered returns the domains a run discovered, in discovery order
func (db *DB) GetRunDiscovered(runID string) ([]string, error) {
	rows, err := db.conn.Query(selectRunDiscovered, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan discovered domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, nil
}
