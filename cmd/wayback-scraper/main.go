package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/thesavant42/wayback-scraper/internal/api"
	"github.com/thesavant42/wayback-scraper/internal/config"
	"github.com/thesavant42/wayback-scraper/internal/db"
	"github.com/thesavant42/wayback-scraper/internal/models"
	"github.com/thesavant42/wayback-scraper/internal/scraper"
	"github.com/thesavant42/wayback-scraper/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		ui.PrintError(fmt.Sprintf("Invalid configuration: %v", err))
		return 1
	}

	// Parse command line flags; env values are the defaults
	domainsFlag := flag.String("domains", "", "File with one domain per line")
	datesFlag := flag.String("dates", "", "Comma separated target dates, MM-DD-YYYY")
	blacklistFlag := flag.String("blacklist", "", "File with hosts or URLs never to discover")
	outdir := flag.String("outdir", ".", "Directory for output files")
	statusFlag := flag.String("status", "", "Only consider captures with this CDX status (e.g. 200 or 3..)")
	workers := flag.Int("workers", cfg.Workers, "Domains processed concurrently per generation")
	maxGenerations := flag.Int("max-generations", cfg.MaxGenerations, "Discovery generations before stopping")
	maxDepth := flag.Int("max-depth", cfg.MaxDepth, "Interstitial hops before a chain counts as recursive")
	rateLimit := flag.Float64("rate", cfg.RateLimit, "Archive requests per second (0 = unlimited)")
	dbPath := flag.String("db", cfg.DBPath, "SQLite cache and run history (empty = disabled)")
	refresh := flag.Bool("refresh", false, "Ignore cached index results and resolutions")
	matchRoot := flag.Bool("match-root", false, "Treat hosts sharing a registrable domain as the same domain")
	tui := flag.Bool("tui", false, "Show live progress")
	report := flag.Bool("report", false, "Write a markdown report to the output directory")
	history := flag.Bool("history", false, "List previous runs and cached domains stored in -db and exit")
	runDetail := flag.String("run", "", "With -history, show the stored results of this run ID")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", "", "Write logs to this file instead of stderr")
	flag.Parse()

	cfg.Workers = *workers
	cfg.MaxGenerations = *maxGenerations
	cfg.MaxDepth = *maxDepth
	cfg.RateLimit = *rateLimit
	cfg.DBPath = *dbPath
	cfg.LogLevel = *logLevel
	if err := cfg.Validate(); err != nil {
		ui.PrintError(err.Error())
		return 1
	}

	logger, closeLog, err := newLogger(cfg.LogLevel, *logFile, *tui)
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	defer closeLog()

	var database *db.DB
	if cfg.DBPath != "" {
		database, err = db.New(cfg.DBPath)
		if err != nil {
			ui.PrintError(fmt.Sprintf("Failed to initialize database: %v", err))
			return 1
		}
		defer database.Close()
	}

	// Handle --history flag
	if *history {
		if database == nil {
			ui.PrintError("-history needs a database (-db or WAYBACK_DB)")
			return 1
		}
		if *runDetail != "" {
			return showRun(database, *runDetail)
		}
		runs, err := database.GetRuns(20)
		if err != nil {
			ui.PrintError(fmt.Sprintf("Failed to get runs: %v", err))
			return 1
		}
		ui.PrintRunHistory(runs)

		cached, err := database.GetCachedDomains()
		if err != nil {
			ui.PrintError(fmt.Sprintf("Failed to get cached domains: %v", err))
			return 1
		}
		ui.PrintCachedDomains(cached)
		return 0
	}

	inputs := ui.RunInputs{DomainsFile: *domainsFlag, Dates: *datesFlag}
	if (inputs.DomainsFile == "" || inputs.Dates == "") && isatty.IsTerminal(os.Stdin.Fd()) {
		inputs, err = ui.PromptForRunInputs(inputs)
		if err != nil {
			ui.PrintError(err.Error())
			return 1
		}
	}
	if inputs.DomainsFile == "" || inputs.Dates == "" {
		ui.PrintError("both -domains and -dates are required")
		flag.Usage()
		return 1
	}

	domains, err := config.ReadList(inputs.DomainsFile)
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	dates, err := config.ParseDates(inputs.Dates)
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	var blacklist []string
	if *blacklistFlag != "" {
		if blacklist, err = config.ReadList(*blacklistFlag); err != nil {
			ui.PrintError(err.Error())
			return 1
		}
	}

	runID := uuid.NewString()
	runLogger := logger.With("run", runID[:8])
	runLogger.Info("starting run", "domains", len(domains), "dates", inputs.Dates, "workers", cfg.Workers)

	client := api.NewWaybackClient(cfg.ClientOptions(), runLogger)
	resolver := scraper.NewResolver(client, scraper.GoqueryMarkerParser{}, cfg.MaxDepth, runLogger)

	opts := scraper.Options{
		Dates:           dates,
		StatusFilter:    *statusFlag,
		ReplayURL:       client.ReplayURL(),
		Blacklist:       blacklist,
		MatchRootDomain: *matchRoot,
		Workers:         cfg.Workers,
		MaxGenerations:  cfg.MaxGenerations,
		MaxRunDuration:  cfg.MaxRunDuration,
		Refresh:         *refresh,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	startedAt := time.Now()
	var result *scraper.Result
	var runErr error
	execute := func(progress func(scraper.Event)) error {
		opts.Progress = progress
		controller := scraper.NewController(client, resolver, opts, runLogger)
		if database != nil {
			controller.
				WithSnapshotCache(database.SnapshotCache(cfg.IndexURL, cfg.CollapseDigits)).
				WithResolutionCache(database.ResolutionCache(cfg.MaxDepth))
		}
		result, runErr = controller.Run(ctx, domains)
		return nil
	}

	if *tui {
		err = ui.RunWithProgress(cancel, func(p *ui.ProgressReporter) error {
			return execute(p.Report)
		})
	} else {
		err = execute(nil)
	}
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}

	exitCode := 0
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			ui.PrintError(fmt.Sprintf("Run failed: %v", runErr))
			return 1
		}
		ui.PrintWarning("interrupted, writing partial results")
		exitCode = 1
	}
	if result == nil {
		return 1
	}

	// Every target date gets an output file, even an empty one
	for _, d := range dates {
		if _, ok := result.Results[d]; !ok {
			result.Results[d] = nil
		}
	}

	written, err := ui.WriteDateFiles(*outdir, result.Results)
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	newDomainsPath, err := ui.WriteNewDomains(*outdir, result.Discovered)
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}

	summary := models.RunSummary{
		ID:           runID,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
		Domains:      len(domains),
		Dates:        formatDates(dates),
		StatusFilter: *statusFlag,
		Generations:  result.Generations,
		URLCount:     result.URLCount(),
		Discovered:   len(result.Discovered),
		Truncated:    result.Truncated,
	}

	ui.PrintRunSummary(runID, result)
	ui.PrintSuccess(fmt.Sprintf("Wrote %d date files and %s", len(written), newDomainsPath))

	if *report {
		path, err := ui.ExportRunReport(*outdir, summary, result)
		if err != nil {
			ui.PrintError(err.Error())
			return 1
		}
		ui.PrintSuccess(fmt.Sprintf("Report written to %s", path))
	}

	if database != nil {
		if err := database.SaveRun(summary, result.Results, result.Discovered); err != nil {
			runLogger.Warn("failed to save run history", "error", err)
		}
	}

	runLogger.Info("run finished", "urls", summary.URLCount, "discovered", summary.Discovered,
		"generations", summary.Generations, "elapsed", summary.FinishedAt.Sub(startedAt).Round(time.Second))
	return exitCode
}

// showRun prints the stored results and discoveries of one run
func showRun(database *db.DB, runID string) int {
	results, err := database.GetRunResults(runID)
	if err != nil {
		ui.PrintError(fmt.Sprintf("Failed to get run results: %v", err))
		return 1
	}
	discovered, err := database.GetRunDiscovered(runID)
	if err != nil {
		ui.PrintError(fmt.Sprintf("Failed to get discovered domains: %v", err))
		return 1
	}
	ui.PrintRunDetail(runID, results, discovered)
	return 0
}

// newLogger builds the run logger. With the progress display on and no log
// file, logs are discarded so they do not tear the spinner output.
func newLogger(level, path string, tui bool) (*log.Logger, func(), error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	} else if tui {
		w = io.Discard
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "wayback",
	})
	return logger, closeFn, nil
}

func formatDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(config.DateLayout)
	}
	return strings.Join(parts, ",")
}
