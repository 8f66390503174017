package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/wayback-scraper/internal/api"
	"github.com/thesavant42/wayback-scraper/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxGenerations bounds the crawl when archives keep yielding new hosts
const DefaultMaxGenerations = 10

// SnapshotSource lists the captures of a domain
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context, domain, statusFilter string) ([]models.SnapshotCandidate, error)
}

// RedirectResolver follows an interstitial redirect chain
type RedirectResolver interface {
	Resolve(ctx context.Context, snapshotURL string) (models.Resolution, error)
}

// SnapshotCache stores index results between runs
type SnapshotCache interface {
	GetSnapshots(domain, statusFilter string) ([]models.SnapshotCandidate, bool, error)
	SaveSnapshots(domain, statusFilter string, candidates []models.SnapshotCandidate) error
}

// ResolutionCache stores redirect resolutions between runs
type ResolutionCache interface {
	GetResolution(snapshotURL string) (models.Resolution, bool, error)
	SaveResolution(snapshotURL string, resolution models.Resolution) error
}

// Options configures a Controller
type Options struct {
	Dates           []time.Time
	StatusFilter    string
	ReplayURL       string
	Blacklist       []string
	MatchRootDomain bool
	Workers         int           // domains processed concurrently within a generation
	MaxGenerations  int           // <= 0 selects DefaultMaxGenerations
	MaxRunDuration  time.Duration // 0 disables the wall-clock ceiling
	Refresh         bool          // ignore cached entries, still write fresh ones
	Progress        func(Event)   // called from worker goroutines
}

// Result is everything a run produced
type Result struct {
	Results     map[time.Time][]string
	Discovered  []string
	Processed   []string
	Failed      map[string]error
	Generations int
	Truncated   bool
}

// URLCount returns the number of distinct URLs across all dates
func (r *Result) URLCount() int {
	n := 0
	for _, urls := range r.Results {
		n += len(urls)
	}
	return n
}

// Controller drives the generation loop: fetch, match, resolve, classify,
// aggregate, and repeat with newly discovered domains
type Controller struct {
	source     SnapshotSource
	resolver   RedirectResolver
	classifier *Classifier
	catalog    Catalog
	snapCache  SnapshotCache
	resCache   ResolutionCache
	opts       Options
	logger     *log.Logger
}

// NewController creates a Controller
func NewController(source SnapshotSource, resolver RedirectResolver, opts Options, logger *log.Logger) *Controller {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxGenerations <= 0 {
		opts.MaxGenerations = DefaultMaxGenerations
	}
	if opts.ReplayURL == "" {
		opts.ReplayURL = api.DefaultReplayURL
	}

	dates := make([]time.Time, 0, len(opts.Dates))
	seen := make(map[time.Time]bool, len(opts.Dates))
	for _, d := range opts.Dates {
		d = d.UTC()
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	opts.Dates = dates

	return &Controller{
		source:     source,
		resolver:   resolver,
		classifier: NewClassifier(opts.Blacklist, opts.MatchRootDomain),
		catalog:    Catalog{ReplayURL: opts.ReplayURL},
		opts:       opts,
		logger:     logger,
	}
}

// WithSnapshotCache enables index result caching
func (c *Controller) WithSnapshotCache(cache SnapshotCache) *Controller {
	c.snapCache = cache
	return c
}

// WithResolutionCache enables redirect resolution caching
func (c *Controller) WithResolutionCache(cache ResolutionCache) *Controller {
	c.resCache = cache
	return c
}

// domainOutcome is what one worker hands back to the aggregator
type domainOutcome struct {
	domain     string
	snapshots  []models.ResolvedSnapshot
	discovered []string
	err        error
}

// Run crawls domains and every eligible domain discovered from them.
// Per-domain and per-snapshot failures are logged and recorded, never
// returned. The returned error is non-nil only if ctx itself was cancelled,
// in which case the partial result is still returned.
func (c *Controller) Run(ctx context.Context, domains []string) (*Result, error) {
	result := &Result{Failed: make(map[string]error)}

	initial := make([]string, 0, len(domains))
	for _, d := range domains {
		host, err := NormalizeDomain(d)
		if err != nil {
			c.warn("Skipping invalid domain", "domain", d, "err", err)
			result.Failed[d] = err
			continue
		}
		initial = append(initial, host)
	}

	runCtx := ctx
	if c.opts.MaxRunDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.opts.MaxRunDuration)
		defer cancel()
	}

	state := NewState(initial, c.classifier.BlacklistedHosts())
	var runErr error

	for !state.Done() {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		if runCtx.Err() != nil {
			c.warn("Run duration limit reached, stopping", "limit", c.opts.MaxRunDuration, "pending", len(state.Pending()))
			result.Truncated = true
			break
		}
		if state.Generation() >= c.opts.MaxGenerations {
			c.warn("Generation limit reached, stopping", "limit", c.opts.MaxGenerations, "pending", len(state.Pending()))
			result.Truncated = true
			break
		}

		batch := state.StartGeneration()
		generation := state.Generation()
		c.info("Starting generation", "generation", generation, "domains", len(batch))
		c.emit(Event{Kind: EventGenerationStarted, Generation: generation, Domains: len(batch)})

		outcomes := c.runGeneration(runCtx, generation, batch)
		interrupted := runCtx.Err() != nil

		accepted := 0
		for _, out := range outcomes {
			if out.err != nil {
				result.Failed[out.domain] = out.err
				continue
			}
			for _, snap := range out.snapshots {
				if snap.Included() {
					state.AddResult(snap.Date, snap.FinalURL)
				}
			}
			for _, host := range out.discovered {
				if state.Offer(host) {
					accepted++
					c.info("New domain found", "domain", host, "via", out.domain)
				}
			}
		}
		state.EndGeneration()

		c.info("Generation complete", "generation", generation, "newDomains", accepted)

		// Domains cut off mid-generation leave the result incomplete even
		// when nothing is left pending
		if interrupted {
			if ctx.Err() != nil {
				runErr = ctx.Err()
			} else {
				c.warn("Run duration limit reached, stopping", "limit", c.opts.MaxRunDuration, "pending", len(state.Pending()))
				result.Truncated = true
			}
			break
		}
	}

	result.Results = state.Results()
	result.Discovered = state.Discovered()
	result.Processed = state.Processed()
	result.Generations = state.Generation()

	c.emit(Event{Kind: EventRunFinished, Generation: result.Generations, Domains: len(result.Processed), Snapshots: result.URLCount()})
	return result, runErr
}

// runGeneration processes a batch on a bounded pool. Outcomes are returned
// in batch order regardless of completion order.
func (c *Controller) runGeneration(ctx context.Context, generation int, batch []string) []domainOutcome {
	outcomes := make([]domainOutcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, domain := range batch {
		g.Go(func() error {
			c.emit(Event{Kind: EventDomainStarted, Generation: generation, Domain: domain})
			outcomes[i] = c.processDomain(gctx, domain)
			c.emit(Event{
				Kind:       EventDomainFinished,
				Generation: generation,
				Domain:     domain,
				Snapshots:  len(outcomes[i].snapshots),
				Err:        outcomes[i].err,
			})
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (c *Controller) processDomain(ctx context.Context, domain string) domainOutcome {
	out := domainOutcome{domain: domain}

	candidates, err := c.fetchCandidates(ctx, domain)
	if err != nil {
		c.warn("Skipping domain", "domain", domain, "err", err)
		out.err = err
		return out
	}
	c.info("Snapshots obtained", "domain", domain, "count", len(candidates))

	records := c.catalog.Build(domain, candidates)
	bucket := BuildDateBucket(domain, records, c.opts.Dates)
	if len(bucket.Entries) == 0 {
		c.info("No snapshots to match", "domain", domain)
		return out
	}

	// Several dates often share one snapshot; resolve it once
	resolved := make(map[string]models.Resolution)
	for _, date := range c.opts.Dates {
		record, ok := bucket.Entries[date]
		if !ok {
			continue
		}

		snap, discovered, err := c.resolveEntry(ctx, date, record, resolved)
		if err != nil {
			c.warn("Skipping snapshot", "url", record.SnapshotURL, "timeout", api.IsTimeout(err), "err", err)
			continue
		}
		out.snapshots = append(out.snapshots, snap)
		if discovered != "" {
			out.discovered = append(out.discovered, discovered)
		}
	}
	return out
}

// resolveEntry applies redirect resolution and classification to one bucket
// entry. The second return value is a host offered for the next generation.
func (c *Controller) resolveEntry(ctx context.Context, date time.Time, record models.SnapshotRecord, memo map[string]models.Resolution) (models.ResolvedSnapshot, string, error) {
	snap := models.ResolvedSnapshot{
		Original: record,
		Date:     date,
		FinalURL: record.SnapshotURL,
	}
	if !IsRedirectStatus(record.StatusCode) {
		return snap, "", nil
	}

	resolution, ok := memo[record.SnapshotURL]
	if !ok {
		var err error
		resolution, err = c.lookupResolution(ctx, record.SnapshotURL)
		if err != nil {
			return snap, "", err
		}
		memo[record.SnapshotURL] = resolution
	}

	snap.FinalURL = resolution.FinalURL
	snap.Redirected = resolution.Redirected
	snap.Recursive = resolution.Recursive

	if resolution.Recursive {
		c.info("Recursive redirect skipped", "url", record.SnapshotURL, "hops", len(resolution.Chain)-1)
		return snap, "", nil
	}
	if !resolution.Redirected {
		return snap, "", nil
	}

	cls, err := c.classifier.Classify(record.SnapshotURL, resolution.FinalURL)
	if err != nil {
		return snap, "", fmt.Errorf("failed to classify %s: %w", resolution.FinalURL, err)
	}
	same := cls.SameDomain
	snap.SameDomain = &same
	return snap, cls.DiscoveredHost, nil
}

func (c *Controller) fetchCandidates(ctx context.Context, domain string) ([]models.SnapshotCandidate, error) {
	if c.snapCache != nil && !c.opts.Refresh {
		cached, ok, err := c.snapCache.GetSnapshots(domain, c.opts.StatusFilter)
		if err != nil {
			c.warn("Snapshot cache read failed", "domain", domain, "err", err)
		} else if ok {
			c.debug("Using cached snapshots", "domain", domain, "count", len(cached))
			return cached, nil
		}
	}

	candidates, err := c.source.FetchSnapshots(ctx, domain, c.opts.StatusFilter)
	if err != nil {
		return nil, err
	}

	if c.snapCache != nil {
		if err := c.snapCache.SaveSnapshots(domain, c.opts.StatusFilter, candidates); err != nil {
			c.warn("Snapshot cache write failed", "domain", domain, "err", err)
		}
	}
	return candidates, nil
}

func (c *Controller) lookupResolution(ctx context.Context, snapshotURL string) (models.Resolution, error) {
	if c.resCache != nil && !c.opts.Refresh {
		cached, ok, err := c.resCache.GetResolution(snapshotURL)
		if err != nil {
			c.warn("Resolution cache read failed", "url", snapshotURL, "err", err)
		} else if ok {
			return cached, nil
		}
	}

	resolution, err := c.resolver.Resolve(ctx, snapshotURL)
	if err != nil {
		return models.Resolution{}, err
	}

	if c.resCache != nil {
		if err := c.resCache.SaveResolution(snapshotURL, resolution); err != nil {
			c.warn("Resolution cache write failed", "url", snapshotURL, "err", err)
		}
	}
	return resolution, nil
}

// IsRedirectStatus reports whether a CDX status column is 301 or 302,
// the captures for which the archive serves an interstitial page
func IsRedirectStatus(status string) bool {
	switch api.StatusCodeInt(status) {
	case 301, 302:
		return true
	}
	return false
}

// IsIndexQueryError reports whether err came from a failed index query
func IsIndexQueryError(err error) bool {
	var qe *api.IndexQueryError
	return errors.As(err, &qe)
}

func (c *Controller) emit(ev Event) {
	if c.opts.Progress != nil {
		c.opts.Progress(ev)
	}
}

func (c *Controller) info(msg string, keyvals ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, keyvals...)
	}
}

func (c *Controller) warn(msg string, keyvals ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, keyvals...)
	}
}

func (c *Controller) debug(msg string, keyvals ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, keyvals...)
	}
}
