package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/thesavant42/wayback-scraper/internal/api"
)

// NormalizeDomain reduces a hostname or URL to a lowercase host
// Examples:
//   - "Example.com" -> "example.com"
//   - "https://www.example.com/path" -> "www.example.com"
//   - "example.com:8080/x" -> "example.com"
func NormalizeDomain(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty domain")
	}

	if !strings.Contains(input, "://") {
		input = "http://" + input
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", input, err)
	}

	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("no host in %q", input)
	}
	return host, nil
}

// ExtractArchivedHost returns the live-web host embedded in a replay URL,
// i.e. the part after the timestamp segment of /web/<timestamp>/<url>
func ExtractArchivedHost(archiveURL string) (string, error) {
	idx := strings.Index(archiveURL, "/web/")
	if idx < 0 {
		return "", fmt.Errorf("not an archive replay URL: %s", archiveURL)
	}

	rest := archiveURL[idx+len("/web/"):]
	_, embedded, ok := strings.Cut(rest, "/")
	if !ok || embedded == "" {
		return "", fmt.Errorf("no archived URL in %s", archiveURL)
	}

	// Some proxies collapse "http://" to "http:/" inside paths
	for _, scheme := range []string{"http:/", "https:/"} {
		if strings.HasPrefix(embedded, scheme) && !strings.HasPrefix(embedded, scheme+"/") {
			embedded = scheme + "/" + strings.TrimPrefix(embedded, scheme)
			break
		}
	}

	return NormalizeDomain(embedded)
}

// Classification describes how a resolved snapshot relates to its origin
type Classification struct {
	SameDomain     bool
	DiscoveredHost string // set only for cross-domain, non-blacklisted targets
}

// Classifier compares archived hosts and filters discoveries through a blacklist
type Classifier struct {
	blacklist map[string]struct{}
	matchRoot bool
}

// NewClassifier creates a Classifier. Blacklist entries may be hosts or URLs;
// entries that cannot be parsed are ignored. With matchRoot, hosts sharing a
// registrable domain (www.example.com, example.com) count as the same domain.
func NewClassifier(blacklist []string, matchRoot bool) *Classifier {
	c := &Classifier{
		blacklist: make(map[string]struct{}, len(blacklist)),
		matchRoot: matchRoot,
	}
	for _, entry := range blacklist {
		if host, err := NormalizeDomain(entry); err == nil {
			c.blacklist[host] = struct{}{}
		}
	}
	return c
}

// Blacklisted reports whether host is excluded from discovery
func (c *Classifier) Blacklisted(host string) bool {
	_, ok := c.blacklist[strings.ToLower(host)]
	return ok
}

// BlacklistedHosts returns the normalized blacklist
func (c *Classifier) BlacklistedHosts() []string {
	hosts := make([]string, 0, len(c.blacklist))
	for h := range c.blacklist {
		hosts = append(hosts, h)
	}
	return hosts
}

// Classify compares the hosts embedded in two replay URLs
func (c *Classifier) Classify(originalURL, finalURL string) (Classification, error) {
	origHost, err := ExtractArchivedHost(originalURL)
	if err != nil {
		return Classification{}, err
	}
	finalHost, err := ExtractArchivedHost(finalURL)
	if err != nil {
		return Classification{}, err
	}

	if c.sameDomain(origHost, finalHost) {
		return Classification{SameDomain: true}, nil
	}

	result := Classification{SameDomain: false}
	if !c.Blacklisted(finalHost) {
		result.DiscoveredHost = finalHost
	}
	return result, nil
}

func (c *Classifier) sameDomain(a, b string) bool {
	if a == b {
		return true
	}
	if !c.matchRoot {
		return false
	}
	rootA, errA := api.ExtractRootDomain(a)
	rootB, errB := api.ExtractRootDomain(b)
	if errA != nil || errB != nil {
		return false
	}
	return rootA == rootB
}
