package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/thesavant42/wayback-scraper/internal/models"
)

// cdxLayout matches the 14-digit capture timestamps stored as raw_path
const cdxLayout = "20060102150405"

// SnapshotCache stores CDX answers for one index endpoint and collapse setting.
// Answers from other endpoints or collapse lengths are never returned.
type SnapshotCache struct {
	db             *DB
	indexURL       string
	collapseDigits int
}

// SnapshotCache returns the snapshot cache scoped to an index query setup
func (db *DB) SnapshotCache(indexURL string, collapseDigits int) *SnapshotCache {
	return &SnapshotCache{db: db, indexURL: indexURL, collapseDigits: collapseDigits}
}

// GetSnapshots returns the cached candidates for a CDX query.
// The bool is false when the query has never been cached.
func (c *SnapshotCache) GetSnapshots(domain, statusFilter string) ([]models.SnapshotCandidate, bool, error) {
	var count int
	err := c.db.conn.QueryRow(selectSnapshotQuery, c.indexURL, c.collapseDigits, domain, statusFilter).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query snapshot cache: %w", err)
	}

	rows, err := c.db.conn.Query(selectSnapshotCandidates, c.indexURL, c.collapseDigits, domain, statusFilter)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached snapshots: %w", err)
	}
	defer rows.Close()

	candidates := make([]models.SnapshotCandidate, 0, count)
	for rows.Next() {
		var sc models.SnapshotCandidate
		if err := rows.Scan(&sc.RawPath, &sc.StatusCode); err != nil {
			return nil, false, fmt.Errorf("failed to scan cached snapshot: %w", err)
		}
		ts, err := time.Parse(cdxLayout, sc.RawPath)
		if err != nil {
			// Only parsed candidates are ever stored
			continue
		}
		sc.Timestamp = ts
		candidates = append(candidates, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read cached snapshots: %w", err)
	}

	return candidates, true, nil
}

// SaveSnapshots replaces the cached candidates for a CDX query
func (c *SnapshotCache) SaveSnapshots(domain, statusFilter string, candidates []models.SnapshotCandidate) error {
	tx, err := c.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(deleteSnapshotCandidates, c.indexURL, c.collapseDigits, domain, statusFilter); err != nil {
		return fmt.Errorf("failed to clear cached snapshots: %w", err)
	}

	stmt, err := tx.Prepare(insertSnapshotCandidate)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, sc := range candidates {
		if _, err := stmt.Exec(c.indexURL, c.collapseDigits, domain, statusFilter, i, sc.RawPath, sc.StatusCode); err != nil {
			return fmt.Errorf("failed to insert snapshot %s: %w", sc.RawPath, err)
		}
	}

	if _, err := tx.Exec(upsertSnapshotQuery, c.indexURL, c.collapseDigits, domain, statusFilter, len(candidates)); err != nil {
		return fmt.Errorf("failed to record snapshot query: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CachedDomain is a domain with cached index results
type CachedDomain struct {
	Domain      string
	Candidates  int
	LastFetched time.Time
}

// GetCachedDomains lists every domain with cached index results
func (db *DB) GetCachedDomains() ([]CachedDomain, error) {
	rows, err := db.conn.Query(selectCachedDomains)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached domains: %w", err)
	}
	defer rows.Close()

	var domains []CachedDomain
	for rows.Next() {
		var d CachedDomain
		var fetchedAt string
		if err := rows.Scan(&d.Domain, &d.Candidates, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		d.LastFetched, _ = parseTimestamp(fetchedAt)
		domains = append(domains, d)
	}
	return domains, nil
}

// ResolutionCache stores redirect resolutions computed under one hop limit
type ResolutionCache struct {
	db       *DB
	maxDepth int
}

// ResolutionCache returns the resolution cache scoped to a resolver hop limit
func (db *DB) ResolutionCache(maxDepth int) *ResolutionCache {
	return &ResolutionCache{db: db, maxDepth: maxDepth}
}

// GetResolution returns a cached redirect resolution
func (c *ResolutionCache) GetResolution(snapshotURL string) (models.Resolution, bool, error) {
	var r models.Resolution
	var redirected, recursive int
	var chain string

	err := c.db.conn.QueryRow(selectResolution, snapshotURL, c.maxDepth).Scan(&r.FinalURL, &redirected, &recursive, &chain)
	if err == sql.ErrNoRows {
		return models.Resolution{}, false, nil
	}
	if err != nil {
		return models.Resolution{}, false, fmt.Errorf("failed to query resolution: %w", err)
	}

	r.Redirected = redirected != 0
	r.Recursive = recursive != 0
	if chain != "" {
		r.Chain = strings.Split(chain, "\n")
	}
	return r, true, nil
}

// SaveResolution stores a redirect resolution
func (c *ResolutionCache) SaveResolution(snapshotURL string, r models.Resolution) error {
	_, err := c.db.conn.Exec(upsertResolution, snapshotURL, c.maxDepth, r.FinalURL, boolInt(r.Redirected), boolInt(r.Recursive), strings.Join(r.Chain, "\n"))
	if err != nil {
		return fmt.Errorf("failed to save resolution: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
