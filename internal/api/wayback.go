package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/wayback-scraper/internal/models"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	DefaultIndexURL  = "https://web.archive.org/cdx/search/cdx"
	DefaultReplayURL = "https://web.archive.org/web/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// CDXTimestampLayout is the 14-digit capture timestamp used by the index and replay URLs
	CDXTimestampLayout = "20060102150405"

	cdxTimeout  = 180 * time.Second // 3 minutes for large domain queries
	pageTimeout = 60 * time.Second
)

// ClientOptions configures a WaybackClient
type ClientOptions struct {
	IndexURL       string
	ReplayURL      string
	CollapseDigits int // timestamp prefix length used to collapse captures
	IndexTimeout   time.Duration
	PageTimeout    time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration // first backoff; doubles on every retry
	RateLimit      float64       // requests per second shared by all calls, 0 = unlimited
	UserAgent      string
}

// DefaultClientOptions returns options pointing at the public Wayback Machine
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		IndexURL:       DefaultIndexURL,
		ReplayURL:      DefaultReplayURL,
		CollapseDigits: 6,
		IndexTimeout:   cdxTimeout,
		PageTimeout:    pageTimeout,
		MaxRetries:     3,
		RetryBackoff:   10 * time.Second,
		RateLimit:      1,
		UserAgent:      DefaultUserAgent,
	}
}

// WaybackClient handles Wayback Machine CDX and replay requests
type WaybackClient struct {
	indexClient *http.Client
	pageClient  *http.Client
	limiter     *rate.Limiter
	opts        ClientOptions
	logger      *log.Logger
}

// NewWaybackClient creates a new Wayback Machine API client
func NewWaybackClient(opts ClientOptions, logger *log.Logger) *WaybackClient {
	defaults := DefaultClientOptions()
	if opts.IndexURL == "" {
		opts.IndexURL = defaults.IndexURL
	}
	if opts.ReplayURL == "" {
		opts.ReplayURL = defaults.ReplayURL
	}
	if !strings.HasSuffix(opts.ReplayURL, "/") {
		opts.ReplayURL += "/"
	}
	if opts.CollapseDigits <= 0 {
		opts.CollapseDigits = defaults.CollapseDigits
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = defaults.IndexTimeout
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaults.PageTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &WaybackClient{
		indexClient: &http.Client{
			Timeout: opts.IndexTimeout,
		},
		pageClient: &http.Client{
			Timeout: opts.PageTimeout,
			// Interstitial pages must be read as served, not followed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logger,
	}
}

// ReplayURL returns the replay base snapshot URLs are composed from
func (c *WaybackClient) ReplayURL() string {
	return c.opts.ReplayURL
}

// ExtractRootDomain extracts the root domain from a URL or hostname
// Uses publicsuffix to handle complex TLDs like .co.uk
// Examples:
//   - "https://playground.bfl.ai/" -> "bfl.ai"
//   - "test1.dev.pci.westcoast.acme.com" -> "acme.com"
//   - "bfl.ai" -> "bfl.ai"
func ExtractRootDomain(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty input")
	}

	if strings.Contains(input, "://") {
		parsed, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		input = parsed.Hostname()
	}

	input = strings.ToLower(strings.TrimSuffix(input, "."))

	rootDomain, err := publicsuffix.EffectiveTLDPlusOne(input)
	if err != nil {
		return "", fmt.Errorf("failed to extract root domain: %w", err)
	}

	return rootDomain, nil
}

// BuildCDXQuery constructs the query string for a timestamp-collapsed domain lookup
// Returns the query string WITHOUT the leading '?'
// statusFilter is passed through as statuscode:<filter>, so "200" and "3.." both work
func BuildCDXQuery(domain, statusFilter string, collapseDigits int) string {
	params := url.Values{}
	params.Set("url", strings.TrimSpace(domain))
	params.Set("collapse", fmt.Sprintf("timestamp:%d", collapseDigits))
	params.Set("output", "json")
	if statusFilter = strings.TrimSpace(statusFilter); statusFilter != "" {
		params.Set("filter", "statuscode:"+statusFilter)
	}
	return params.Encode()
}

// ParseCDXTimestamp parses a 14-digit capture timestamp as UTC
func ParseCDXTimestamp(ts string) (time.Time, error) {
	if len(ts) != len(CDXTimestampLayout) {
		return time.Time{}, fmt.Errorf("expected %d digits, got %d", len(CDXTimestampLayout), len(ts))
	}
	return time.Parse(CDXTimestampLayout, ts)
}

// FetchSnapshots returns the collapsed capture list for a domain in index order.
// Rate limiting (429/503) and timeouts are retried with exponential backoff;
// any other failure is returned immediately.
func (c *WaybackClient) FetchSnapshots(ctx context.Context, domain, statusFilter string) ([]models.SnapshotCandidate, error) {
	retryCount := 0

	for {
		candidates, err := c.fetchSnapshotsOnce(ctx, domain, statusFilter)
		if err == nil {
			if c.logger != nil {
				c.logger.Debug("CDX query complete", "domain", domain, "candidates", len(candidates))
			}
			return candidates, nil
		}

		if ctx.Err() != nil || !isRetryable(err) || retryCount >= c.opts.MaxRetries {
			if retryCount > 0 {
				return nil, fmt.Errorf("request failed after %d retries: %w", retryCount, err)
			}
			return nil, err
		}

		retryCount++
		// Exponential backoff: 1x, 2x, 4x the configured base
		backoff := c.opts.RetryBackoff << (retryCount - 1)
		if c.logger != nil {
			c.logger.Warn("CDX query failed, retrying", "domain", domain, "backoff", backoff, "retry", retryCount, "maxRetries", c.opts.MaxRetries, "err", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (c *WaybackClient) fetchSnapshotsOnce(ctx context.Context, domain, statusFilter string) ([]models.SnapshotCandidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	rawURL := c.opts.IndexURL + "?" + BuildCDXQuery(domain, statusFilter, c.opts.CollapseDigits)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "application/json, text/plain, */*")

	resp, err := c.indexClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &IndexQueryError{
			Domain:     domain,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return c.parseCDXResponse(body, domain)
}

// parseCDXResponse parses the CDX JSON response
// Format: [[header], [record1], [record2], ...]
// Column positions come from the header; the default CDX layout is
// urlkey,timestamp,original,mimetype,statuscode,digest,length
func (c *WaybackClient) parseCDXResponse(body []byte, domain string) ([]models.SnapshotCandidate, error) {
	candidates := make([]models.SnapshotCandidate, 0)

	// Empty body means no captures
	if strings.TrimSpace(string(body)) == "" {
		return candidates, nil
	}

	var rawRows [][]string
	if err := json.Unmarshal(body, &rawRows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if len(rawRows) == 0 {
		return candidates, nil
	}

	tsCol, statusCol := 1, 4
	for i, name := range rawRows[0] {
		switch name {
		case "timestamp":
			tsCol = i
		case "statuscode":
			statusCol = i
		}
	}

	// Skip header row (index 0)
	for i := 1; i < len(rawRows); i++ {
		row := rawRows[i]
		if len(row) <= tsCol {
			if c.logger != nil {
				c.logger.Warn("Dropping snapshot", "err", &MalformedSnapshotError{
					Domain: domain,
					Err:    fmt.Errorf("row has %d columns, timestamp expected in column %d", len(row), tsCol+1),
				})
			}
			continue
		}

		ts, err := ParseCDXTimestamp(row[tsCol])
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("Dropping snapshot", "err", &MalformedSnapshotError{Domain: domain, Timestamp: row[tsCol], Err: err})
			}
			continue
		}

		status := "-"
		if len(row) > statusCol && row[statusCol] != "" {
			status = row[statusCol]
		}

		candidates = append(candidates, models.SnapshotCandidate{
			Timestamp:  ts,
			StatusCode: status,
			RawPath:    row[tsCol],
		})
	}

	return candidates, nil
}

// FetchPage retrieves a replay page body without following HTTP redirects.
// Redirect responses are returned as-is: the archive serves its interstitial
// markup in their body.
func (c *WaybackClient) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := c.pageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &PageFetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	return readBody(resp)
}

func (c *WaybackClient) setHeaders(req *http.Request, accept string) {
	// Set headers emulating a real browser
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Referer", "https://web.archive.org/")
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
}

// readBody reads a response body, handling gzip-compressed responses
// Use case-insensitive check and handle variations like "gzip", "x-gzip", etc.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	contentEncoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	if strings.Contains(contentEncoding, "gzip") {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// StatusCodeInt converts a CDX status column to an int, returning 0 for "-"
func StatusCodeInt(status string) int {
	code, err := strconv.Atoi(strings.TrimSpace(status))
	if err != nil {
		return 0
	}
	return code
}
