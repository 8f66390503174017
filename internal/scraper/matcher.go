package scraper

import (
	"time"

	"github.com/thesavant42/wayback-scraper/internal/models"
)

// Closest picks, for every target date, the record whose timestamp is nearest
// to it. Distances are compared in whole seconds; on a tie the earlier record
// in the input wins. Dates with no records are absent from the result.
func Closest(records []models.SnapshotRecord, dates []time.Time) map[time.Time]models.SnapshotRecord {
	matched := make(map[time.Time]models.SnapshotRecord, len(dates))
	if len(records) == 0 {
		return matched
	}

	for _, date := range dates {
		date = date.UTC()
		best := 0
		bestDist := distanceSeconds(records[0].SnapshotTimestamp, date)
		for i := 1; i < len(records); i++ {
			if d := distanceSeconds(records[i].SnapshotTimestamp, date); d < bestDist {
				best, bestDist = i, d
			}
		}
		matched[date] = records[best]
	}
	return matched
}

// BuildDateBucket runs Closest for one domain's catalog
func BuildDateBucket(domain string, records []models.SnapshotRecord, dates []time.Time) models.DateBucket {
	return models.DateBucket{
		Domain:  domain,
		Entries: Closest(records, dates),
	}
}

func distanceSeconds(a, b time.Time) int64 {
	d := a.Unix() - b.Unix()
	if d < 0 {
		return -d
	}
	return d
}
