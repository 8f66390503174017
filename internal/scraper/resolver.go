package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/thesavant42/wayback-scraper/internal/models"
)

// DefaultMaxDepth caps how many replay pages one resolution may fetch
const DefaultMaxDepth = 3

// DefaultMarkerSelector matches the link inside the archive's
// "Got an HTTP 302 response at crawl time" interstitial
const DefaultMarkerSelector = "p.impatient a[href]"

// PageFetcher retrieves replay pages without following HTTP redirects
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// MarkerParser finds the next hop advertised by an interstitial redirect page
type MarkerParser interface {
	RedirectTarget(body []byte) (href string, found bool, err error)
}

// GoqueryMarkerParser locates the interstitial marker with a CSS selector
type GoqueryMarkerParser struct {
	Selector string
}

// RedirectTarget returns the href of the first element matching the selector
func (p GoqueryMarkerParser) RedirectTarget(body []byte) (string, bool, error) {
	selector := p.Selector
	if selector == "" {
		selector = DefaultMarkerSelector
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to parse replay page: %w", err)
	}

	href, ok := doc.Find(selector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false, nil
	}
	return href, true, nil
}

// Resolver follows interstitial redirect chains to their final snapshot
type Resolver struct {
	fetcher  PageFetcher
	parser   MarkerParser
	maxDepth int
	logger   *log.Logger
}

// NewResolver creates a Resolver. A nil parser selects GoqueryMarkerParser,
// maxDepth <= 0 selects DefaultMaxDepth.
func NewResolver(fetcher PageFetcher, parser MarkerParser, maxDepth int, logger *log.Logger) *Resolver {
	if parser == nil {
		parser = GoqueryMarkerParser{}
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{
		fetcher:  fetcher,
		parser:   parser,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Resolve follows the chain starting at startURL. A self-loop, a revisit of
// any URL already in the chain, or reaching the depth limit stops resolution
// with Recursive set and FinalURL pointing back at startURL.
func (r *Resolver) Resolve(ctx context.Context, startURL string) (models.Resolution, error) {
	current := startURL
	visited := map[string]bool{startURL: true}
	chain := []string{startURL}

	for depth := 1; ; depth++ {
		body, err := r.fetcher.FetchPage(ctx, current)
		if err != nil {
			return models.Resolution{}, fmt.Errorf("failed to fetch %s: %w", current, err)
		}

		href, found, err := r.parser.RedirectTarget(body)
		if err != nil {
			return models.Resolution{}, fmt.Errorf("failed to inspect %s: %w", current, err)
		}
		if !found {
			return models.Resolution{
				FinalURL:   current,
				Redirected: current != startURL,
				Chain:      chain,
			}, nil
		}

		target, err := absoluteArchiveURL(current, href)
		if err != nil {
			return models.Resolution{}, err
		}
		chain = append(chain, target)

		if target == current || visited[target] || depth >= r.maxDepth {
			if r.logger != nil {
				r.logger.Debug("Recursive redirect", "url", startURL, "target", target, "depth", depth)
			}
			return models.Resolution{
				FinalURL:   startURL,
				Redirected: true,
				Recursive:  true,
				Chain:      chain,
			}, nil
		}

		if r.logger != nil {
			r.logger.Debug("Following redirect", "depth", depth, "from", current, "to", target)
		}
		visited[target] = true
		current = target
	}
}

// absoluteArchiveURL resolves an interstitial href (usually "/web/<ts>/<url>")
// against the page it was found on
func absoluteArchiveURL(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid redirect href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
