package models

import "time"

// SnapshotCandidate represents one row returned by the Wayback CDX index
type SnapshotCandidate struct {
	Timestamp  time.Time
	StatusCode string // raw status column, "-" when the capture has none
	RawPath    string // 14-digit timestamp segment used in replay URLs
}

// SnapshotRecord is a candidate enriched with its domain and replay URL
type SnapshotRecord struct {
	Domain            string
	SnapshotURL       string
	SnapshotTimestamp time.Time
	StatusCode        string
}

// DateBucket holds, for one domain, the closest snapshot per target date
type DateBucket struct {
	Domain  string
	Entries map[time.Time]SnapshotRecord
}

// Resolution is the result of following an interstitial redirect chain
type Resolution struct {
	FinalURL   string
	Redirected bool
	Recursive  bool
	Chain      []string // every URL visited, starting with the snapshot itself
}

// ResolvedSnapshot is the outcome of redirect resolution for a bucket entry
type ResolvedSnapshot struct {
	Original   SnapshotRecord
	Date       time.Time
	FinalURL   string
	Redirected bool
	Recursive  bool  // redirect cycle or hop limit; never written to output
	SameDomain *bool // nil when the snapshot was not redirected
}

// Included reports whether the snapshot belongs in the per-date output
func (r ResolvedSnapshot) Included() bool {
	if !r.Redirected {
		return true
	}
	return !r.Recursive && r.SameDomain != nil && *r.SameDomain
}

// RunSummary describes a stored scraper run
type RunSummary struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Domains      int
	Dates        string // comma-separated MM-DD-YYYY
	StatusFilter string
	Generations  int
	URLCount     int
	Discovered   int
	Truncated    bool
}
