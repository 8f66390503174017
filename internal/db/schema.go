package db

// Schema for cached CDX queries. A row in snapshot_queries means the query
// was answered, even if it returned no candidates.
const createSnapshotTables = `
CREATE TABLE IF NOT EXISTS snapshot_queries (
    index_url TEXT NOT NULL,
    collapse_digits INTEGER NOT NULL,
    domain TEXT NOT NULL,
    status_filter TEXT NOT NULL,
    candidate_count INTEGER NOT NULL,
    fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (index_url, collapse_digits, domain, status_filter)
);

CREATE TABLE IF NOT EXISTS snapshot_candidates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    index_url TEXT NOT NULL,
    collapse_digits INTEGER NOT NULL,
    domain TEXT NOT NULL,
    status_filter TEXT NOT NULL,
    position INTEGER NOT NULL,
    raw_path TEXT NOT NULL,
    status_code TEXT,
    UNIQUE(index_url, collapse_digits, domain, status_filter, position)
);

CREATE INDEX IF NOT EXISTS idx_candidates_query ON snapshot_candidates(index_url, collapse_digits, domain, status_filter);
`

const upsertSnapshotQuery = `
INSERT OR REPLACE INTO snapshot_queries (index_url, collapse_digits, domain, status_filter, candidate_count, fetched_at)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
`

const deleteSnapshotCandidates = `
DELETE FROM snapshot_candidates
WHERE index_url = ? AND collapse_digits = ? AND domain = ? AND status_filter = ?
`

const insertSnapshotCandidate = `
INSERT INTO snapshot_candidates (index_url, collapse_digits, domain, status_filter, position, raw_path, status_code)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const selectSnapshotQuery = `
SELECT candidate_count FROM snapshot_queries
WHERE index_url = ? AND collapse_digits = ? AND domain = ? AND status_filter = ?
`

const selectSnapshotCandidates = `
SELECT raw_path, COALESCE(status_code, '-') FROM snapshot_candidates
WHERE index_url = ? AND collapse_digits = ? AND domain = ? AND status_filter = ?
ORDER BY position ASC
`

const selectCachedDomains = `
SELECT domain, SUM(candidate_count), MAX(fetched_at) FROM snapshot_queries
GROUP BY domain
ORDER BY domain ASC
`

// Schema for resolved interstitial redirect chains. The hop limit is part
// of the key: a chain recursive at one depth may resolve at another.
const createResolutionsTable = `
CREATE TABLE IF NOT EXISTS redirect_resolutions (
    snapshot_url TEXT NOT NULL,
    max_depth INTEGER NOT NULL,
    final_url TEXT NOT NULL,
    redirected INTEGER NOT NULL,
    recursive INTEGER NOT NULL,
    chain TEXT,
    resolved_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (snapshot_url, max_depth)
);
`

const upsertResolution = `
INSERT OR REPLACE INTO redirect_resolutions (snapshot_url, max_depth, final_url, redirected, recursive, chain)
VALUES (?, ?, ?, ?, ?, ?)
`

const selectResolution = `
SELECT final_url, redirected, recursive, COALESCE(chain, '') FROM redirect_resolutions
WHERE snapshot_url = ? AND max_depth = ?
`

// Schema for run history
const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    domain_count INTEGER NOT NULL,
    dates TEXT NOT NULL,
    status_filter TEXT,
    generations INTEGER NOT NULL,
    url_count INTEGER NOT NULL,
    discovered_count INTEGER NOT NULL,
    truncated INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    target_date TEXT NOT NULL,
    url TEXT NOT NULL,
    UNIQUE(run_id, target_date, url)
);

CREATE TABLE IF NOT EXISTS run_discovered (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    domain TEXT NOT NULL,
    UNIQUE(run_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_run_results_run ON run_results(run_id);
CREATE INDEX IF NOT EXISTS idx_run_discovered_run ON run_discovered(run_id);
`

const insertRun = `
INSERT INTO runs (
    id, started_at, finished_at, domain_count, dates, status_filter,
    generations, url_count, discovered_count, truncated
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertRunResult = `
INSERT OR IGNORE INTO run_results (run_id, target_date, url)
VALUES (?, ?, ?)
`

const insertRunDiscovered = `
INSERT OR IGNORE INTO run_discovered (run_id, domain)
VALUES (?, ?)
`

const selectRuns = `
SELECT id, started_at, finished_at, domain_count, dates, COALESCE(status_filter, ''),
       generations, url_count, discovered_count, truncated
FROM runs
ORDER BY started_at DESC
LIMIT ?
`

const selectRunResults = `
SELECT target_date, url FROM run_results
WHERE run_id = ?
ORDER BY target_date ASC, url ASC
`

const selectRunDiscovered = `
SELECT domain FROM run_discovered
WHERE run_id = ?
ORDER BY id ASC
`
