package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/thesavant42/wayback-scraper/internal/config"
	"github.com/thesavant42/wayback-scraper/internal/db"
	"github.com/thesavant42/wayback-scraper/internal/models"
	"github.com/thesavant42/wayback-scraper/internal/scraper"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	rowStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	lineStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)

	warningStyle = lipgloss.NewStyle().
			Foreground(ColorAccentDim).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(ColorInfo).
			MarginBottom(1)
)

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	successStyle := lipgloss.NewStyle().
		Foreground(ColorSuccess).
		Bold(true)
	fmt.Println(successStyle.Render(message))
}

// PrintError prints an error message
func PrintError(message string) {
	errorStyle := lipgloss.NewStyle().
		Foreground(ColorBorder).
		Bold(true)
	fmt.Println(errorStyle.Render("Error: " + message))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println(warningStyle.Render("Warning: " + message))
}

// PrintRunSummary prints per-date URL counts, discovery stats and failures.
//
// This is a non-interactive report: lipgloss only colors the text, the
// table layout is plain string formatting.
func PrintRunSummary(runID string, result *scraper.Result) {
	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("Wayback run %s", runID)))

	dates := sortedDates(result.Results)
	colWidths := []int{12, 8}
	separator := strings.Repeat("─", colWidths[0]+colWidths[1]+5)

	fmt.Println(lineStyle.Render("┌" + separator + "┐"))
	fmt.Println(headerStyle.Render(fmt.Sprintf("│ %-*s │ %*s │", colWidths[0], "Date", colWidths[1], "URLs")))
	fmt.Println(lineStyle.Render("├" + separator + "┤"))
	for _, d := range dates {
		fmt.Println(rowStyle.Render(fmt.Sprintf("│ %-*s │ %*d │",
			colWidths[0], d.Format(config.DateLayout),
			colWidths[1], len(result.Results[d]))))
	}
	fmt.Println(lineStyle.Render("└" + separator + "┘"))

	stats := fmt.Sprintf("%d URLs, %d domains processed, %d discovered, %d generations",
		result.URLCount(), len(result.Processed), len(result.Discovered), result.Generations)
	fmt.Println(StatsStyle.Render(stats))

	if result.Truncated {
		PrintWarning("run stopped at the generation or time ceiling; discovered domains may be unprocessed")
	}

	if len(result.Failed) > 0 {
		fmt.Println(warningStyle.Render(fmt.Sprintf("%d domains failed:", len(result.Failed))))
		for _, domain := range sortedKeys(result.Failed) {
			fmt.Println(HintStyle.Render(fmt.Sprintf("  %s: %v", domain, result.Failed[domain])))
		}
	}
	fmt.Println()
}

// PrintRunHistory prints stored runs, newest first
func PrintRunHistory(runs []models.RunSummary) {
	if len(runs) == 0 {
		fmt.Println(HintStyle.Render("No runs recorded"))
		return
	}

	fmt.Println(TitleStyle.Render("Previous runs"))
	for _, r := range runs {
		line := fmt.Sprintf("%s  %d domains  dates %s  %d URLs  %d discovered  %s",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Domains,
			r.Dates,
			r.URLCount,
			r.Discovered,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
		)
		if r.Truncated {
			line += "  (truncated)"
		}
		fmt.Println(AccentStyle.Render(r.ID) + "  " + rowStyle.Render(line))
	}
	fmt.Println()
}

// PrintRunDetail prints the stored URLs per date and discovered domains of one run
func PrintRunDetail(runID string, results map[string][]string, discovered []string) {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render(fmt.Sprintf("Run %s", runID)))
	sb.WriteString("\n")

	if len(results) == 0 {
		sb.WriteString(HintStyle.Render("No snapshots stored for this run"))
		sb.WriteString("\n")
	}
	dates := make([]string, 0, len(results))
	for d := range results {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		sb.WriteString(AccentStyle.Render(fmt.Sprintf("%s (%d)", d, len(results[d]))))
		sb.WriteString("\n")
		for _, u := range results[d] {
			sb.WriteString(rowStyle.Render("  " + u))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(subtitleStyle.Render(fmt.Sprintf("Discovered domains: %d", len(discovered))))
	for _, domain := range discovered {
		sb.WriteString("\n")
		sb.WriteString(rowStyle.Render("  " + domain))
	}

	fmt.Println(BorderStyle.Padding(0, 1).Render(sb.String()))
}

// PrintCachedDomains prints the domains with cached index answers
func PrintCachedDomains(domains []db.CachedDomain) {
	if len(domains) == 0 {
		fmt.Println(HintStyle.Render("Snapshot cache is empty"))
		return
	}

	fmt.Println(subtitleStyle.Render(fmt.Sprintf("Cached index answers for %d domains", len(domains))))
	for _, d := range domains {
		fmt.Println(rowStyle.Render(fmt.Sprintf("  %-40s %6d candidates  %s",
			d.Domain, d.Candidates, d.LastFetched.Local().Format("2006-01-02 15:04"))))
	}
	fmt.Println()
}

// GenerateMarkdownReport renders a run as a markdown document
func GenerateMarkdownReport(run models.RunSummary, result *scraper.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Wayback Snapshot Report %s\n\n", run.ID))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n", run.StartedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Finished:** %s\n", run.FinishedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Input Domains:** %d\n", run.Domains))
	if run.StatusFilter != "" {
		sb.WriteString(fmt.Sprintf("**Status Filter:** %s\n", run.StatusFilter))
	}
	sb.WriteString(fmt.Sprintf("**Generations:** %d\n", result.Generations))
	if result.Truncated {
		sb.WriteString("**Truncated:** yes\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Snapshots per Date\n\n")
	sb.WriteString("| Date | URLs |\n")
	sb.WriteString("|------|------|\n")
	dates := sortedDates(result.Results)
	for _, d := range dates {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", d.Format(config.DateLayout), len(result.Results[d])))
	}
	sb.WriteString("\n")

	for _, d := range dates {
		sb.WriteString(fmt.Sprintf("### %s\n\n", d.Format(config.DateLayout)))
		if len(result.Results[d]) == 0 {
			sb.WriteString("No snapshots\n\n")
			continue
		}
		for _, u := range result.Results[d] {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", u, u))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Discovered Domains\n\n")
	if len(result.Discovered) == 0 {
		sb.WriteString("None\n\n")
	}
	for _, domain := range result.Discovered {
		sb.WriteString(fmt.Sprintf("- %s\n", domain))
	}
	if len(result.Discovered) > 0 {
		sb.WriteString("\n")
	}

	if len(result.Failed) > 0 {
		sb.WriteString("## Failed Domains\n\n")
		sb.WriteString("| Domain | Error |\n")
		sb.WriteString("|--------|-------|\n")
		for _, domain := range sortedKeys(result.Failed) {
			msg := strings.ReplaceAll(result.Failed[domain].Error(), "|", "\\|")
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", domain, msg))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("**Summary:** %d URLs across %d dates, %d domains discovered\n",
		result.URLCount(), len(dates), len(result.Discovered)))

	return sb.String()
}

func sortedDates(results map[time.Time][]string) []time.Time {
	dates := make([]time.Time, 0, len(results))
	for d := range results {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
