package scraper

import (
	"strings"

	"github.com/thesavant42/wayback-scraper/internal/models"
)

// Catalog turns index candidates into replayable snapshot records
type Catalog struct {
	ReplayURL string // e.g. https://web.archive.org/web/
}

// Build composes one record per candidate, preserving candidate order
func (c Catalog) Build(domain string, candidates []models.SnapshotCandidate) []models.SnapshotRecord {
	base := c.ReplayURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	records := make([]models.SnapshotRecord, 0, len(candidates))
	for _, cand := range candidates {
		records = append(records, models.SnapshotRecord{
			Domain:            domain,
			SnapshotURL:       base + cand.RawPath + "/" + domain,
			SnapshotTimestamp: cand.Timestamp,
			StatusCode:        cand.StatusCode,
		})
	}
	return records
}
