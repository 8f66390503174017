package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/thesavant42/wayback-scraper/internal/config"
	"github.com/thesavant42/wayback-scraper/internal/models"
	"github.com/thesavant42/wayback-scraper/internal/scraper"
)

// NewDomainsFile is the name of the discovered domains output
const NewDomainsFile = "new_domains.txt"

// DateFileName returns the per-date output file name, output_MM-DD-YYYY.txt
func DateFileName(date time.Time) string {
	return fmt.Sprintf("output_%s.txt", date.Format(config.DateLayout))
}

// WriteDateFiles writes one file per target date with one URL per line, sorted.
// Dates without URLs still get an empty file. Returns the written paths.
func WriteDateFiles(outdir string, results map[time.Time][]string) ([]string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for _, date := range sortedDates(results) {
		urls := append([]string(nil), results[date]...)
		sort.Strings(urls)

		path := filepath.Join(outdir, DateFileName(date))
		if err := writeLines(path, urls); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteNewDomains writes discovered domains, one per line, in discovery order
func WriteNewDomains(outdir string, domains []string) (string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(outdir, NewDomainsFile)
	if err := writeLines(path, domains); err != nil {
		return "", err
	}
	return path, nil
}

// ExportRunReport writes the markdown report for a run into outdir
func ExportRunReport(outdir string, run models.RunSummary, result *scraper.Result) (string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename with timestamp
	timestamp := run.StartedAt.Format("2006-01-02-150405")
	filename := filepath.Join(outdir, fmt.Sprintf("report-%s.md", timestamp))

	content := GenerateMarkdownReport(run, result)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write markdown file: %w", err)
	}

	return filename, nil
}

func writeLines(path string, lines []string) error {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
