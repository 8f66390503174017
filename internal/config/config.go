package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thesavant42/wayback-scraper/internal/api"
)

// DateLayout is the MM-DD-YYYY format target dates are given in
const DateLayout = "01-02-2006"

// Config holds the scraper configuration
type Config struct {
	IndexURL       string        // CDX index endpoint
	ReplayURL      string        // replay base snapshot URLs are built from
	CollapseDigits int           // timestamp prefix length used to collapse captures
	IndexTimeout   time.Duration // per CDX request
	PageTimeout    time.Duration // per replay page request
	MaxRetries     int           // retries for throttled or timed out index queries
	RetryBackoff   time.Duration // first retry delay, doubled each attempt
	RateLimit      float64       // archive requests per second, 0 = unlimited
	UserAgent      string
	Workers        int           // domains processed concurrently per generation
	MaxDepth       int           // interstitial hops before a chain counts as recursive
	MaxGenerations int           // discovery generations before the run is truncated
	MaxRunDuration time.Duration // wall clock ceiling, 0 = none
	DBPath         string        // sqlite cache, empty = disabled
	LogLevel       string
}

// Load reads configuration from WAYBACK_* environment variables with defaults
func Load() (*Config, error) {
	defaults := api.DefaultClientOptions()
	config := &Config{
		IndexURL:  getEnv("WAYBACK_INDEX_URL", defaults.IndexURL),
		ReplayURL: getEnv("WAYBACK_REPLAY_URL", defaults.ReplayURL),
		UserAgent: getEnv("WAYBACK_USER_AGENT", defaults.UserAgent),
		DBPath:    getEnv("WAYBACK_DB", ""),
		LogLevel:  getEnv("WAYBACK_LOG_LEVEL", "info"),
	}

	var err error
	if config.CollapseDigits, err = getEnvInt("WAYBACK_COLLAPSE_DIGITS", defaults.CollapseDigits); err != nil {
		return nil, err
	}
	if config.MaxRetries, err = getEnvInt("WAYBACK_MAX_RETRIES", defaults.MaxRetries); err != nil {
		return nil, err
	}
	if config.Workers, err = getEnvInt("WAYBACK_WORKERS", 1); err != nil {
		return nil, err
	}
	if config.MaxDepth, err = getEnvInt("WAYBACK_MAX_DEPTH", 3); err != nil {
		return nil, err
	}
	if config.MaxGenerations, err = getEnvInt("WAYBACK_MAX_GENERATIONS", 10); err != nil {
		return nil, err
	}
	if config.IndexTimeout, err = getEnvDuration("WAYBACK_INDEX_TIMEOUT", defaults.IndexTimeout); err != nil {
		return nil, err
	}
	if config.PageTimeout, err = getEnvDuration("WAYBACK_PAGE_TIMEOUT", defaults.PageTimeout); err != nil {
		return nil, err
	}
	if config.RetryBackoff, err = getEnvDuration("WAYBACK_RETRY_BACKOFF", defaults.RetryBackoff); err != nil {
		return nil, err
	}
	if config.MaxRunDuration, err = getEnvDuration("WAYBACK_MAX_RUN_DURATION", 0); err != nil {
		return nil, err
	}

	config.RateLimit = defaults.RateLimit
	if v := os.Getenv("WAYBACK_RATE_LIMIT"); v != "" {
		rl, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WAYBACK_RATE_LIMIT format: %w", err)
		}
		config.RateLimit = rl
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.IndexURL == "" {
		return fmt.Errorf("WAYBACK_INDEX_URL cannot be empty")
	}
	if c.ReplayURL == "" {
		return fmt.Errorf("WAYBACK_REPLAY_URL cannot be empty")
	}
	if c.CollapseDigits < 1 || c.CollapseDigits > 14 {
		return fmt.Errorf("WAYBACK_COLLAPSE_DIGITS must be between 1 and 14")
	}
	if c.IndexTimeout <= 0 || c.PageTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("WAYBACK_MAX_RETRIES cannot be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("WAYBACK_RATE_LIMIT cannot be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WAYBACK_WORKERS must be at least 1")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("WAYBACK_MAX_DEPTH must be at least 1")
	}
	if c.MaxGenerations < 1 {
		return fmt.Errorf("WAYBACK_MAX_GENERATIONS must be at least 1")
	}
	if c.MaxRunDuration < 0 {
		return fmt.Errorf("WAYBACK_MAX_RUN_DURATION cannot be negative")
	}
	return nil
}

// ClientOptions returns the archive client settings
func (c *Config) ClientOptions() api.ClientOptions {
	return api.ClientOptions{
		IndexURL:       c.IndexURL,
		ReplayURL:      c.ReplayURL,
		CollapseDigits: c.CollapseDigits,
		IndexTimeout:   c.IndexTimeout,
		PageTimeout:    c.PageTimeout,
		MaxRetries:     c.MaxRetries,
		RetryBackoff:   c.RetryBackoff,
		RateLimit:      c.RateLimit,
		UserAgent:      c.UserAgent,
	}
}

// ParseDates parses a comma separated list of MM-DD-YYYY dates as UTC midnights
func ParseDates(s string) ([]time.Time, error) {
	var dates []time.Time
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.Parse(DateLayout, part)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected MM-DD-YYYY: %w", part, err)
		}
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no target dates given")
	}
	return dates, nil
}

// ReadList reads a newline separated list file, skipping blank lines and # comments
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var items []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return items, nil
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}
