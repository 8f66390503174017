package ui

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thesavant42/wayback-scraper/internal/db"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestPrintRunDetail(t *testing.T) {
	tests := []struct {
		name       string
		results    map[string][]string
		discovered []string
		contains   []string
	}{
		{
			name: "urls and discovered domains",
			results: map[string][]string{
				"06-01-2020": {"https://web.archive.org/web/20200601000000/a.com"},
				"01-01-2020": {"https://web.archive.org/web/20200101000000/a.com", "https://web.archive.org/web/20191231000000/b.com"},
			},
			discovered: []string{"c.com"},
			contains:   []string{"01-01-2020 (2)", "06-01-2020 (1)", "b.com", "Discovered domains: 1", "c.com"},
		},
		{
			name:     "empty run",
			contains: []string{"No snapshots stored for this run", "Discovered domains: 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureStdout(t, func() { PrintRunDetail("run-1", tt.results, tt.discovered) })
			assert.Contains(t, out, "run-1")
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestPrintCachedDomains(t *testing.T) {
	out := captureStdout(t, func() { PrintCachedDomains(nil) })
	assert.Contains(t, out, "Snapshot cache is empty")

	out = captureStdout(t, func() {
		PrintCachedDomains([]db.CachedDomain{
			{Domain: "example.com", Candidates: 42, LastFetched: time.Now()},
		})
	})
	assert.Contains(t, out, "1 domains")
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "42 candidates")
}
