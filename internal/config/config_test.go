package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		check       func(t *testing.T, c *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "defaults when no env vars set",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "https://web.archive.org/cdx/search/cdx", c.IndexURL)
				assert.Equal(t, "https://web.archive.org/web/", c.ReplayURL)
				assert.Equal(t, 6, c.CollapseDigits)
				assert.Equal(t, 180*time.Second, c.IndexTimeout)
				assert.Equal(t, 60*time.Second, c.PageTimeout)
				assert.Equal(t, 3, c.MaxRetries)
				assert.Equal(t, 10*time.Second, c.RetryBackoff)
				assert.Equal(t, 1.0, c.RateLimit)
				assert.Equal(t, 1, c.Workers)
				assert.Equal(t, 3, c.MaxDepth)
				assert.Equal(t, 10, c.MaxGenerations)
				assert.Zero(t, c.MaxRunDuration)
				assert.Empty(t, c.DBPath)
				assert.Equal(t, "info", c.LogLevel)
			},
		},
		{
			name: "custom configuration from environment variables",
			env: map[string]string{
				"WAYBACK_WORKERS":          "4",
				"WAYBACK_RATE_LIMIT":       "0.5",
				"WAYBACK_MAX_RUN_DURATION": "30m",
				"WAYBACK_DB":               "cache/wayback.db",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 4, c.Workers)
				assert.Equal(t, 0.5, c.RateLimit)
				assert.Equal(t, 30*time.Minute, c.MaxRunDuration)
				assert.Equal(t, "cache/wayback.db", c.DBPath)
			},
		},
		{
			name:        "invalid duration format returns error",
			env:         map[string]string{"WAYBACK_PAGE_TIMEOUT": "soon"},
			wantErr:     true,
			errContains: "invalid WAYBACK_PAGE_TIMEOUT",
		},
		{
			name:        "invalid integer format returns error",
			env:         map[string]string{"WAYBACK_WORKERS": "many"},
			wantErr:     true,
			errContains: "invalid WAYBACK_WORKERS",
		},
		{
			name:        "validation rejects zero workers",
			env:         map[string]string{"WAYBACK_WORKERS": "0"},
			wantErr:     true,
			errContains: "WAYBACK_WORKERS must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := Load()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, config)
				return
			}

			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestGetEnv_FileSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent")
	require.NoError(t, os.WriteFile(path, []byte("custom-agent/1.0\n"), 0644))
	t.Setenv("WAYBACK_USER_AGENT_FILE", path)

	assert.Equal(t, "custom-agent/1.0", getEnv("WAYBACK_USER_AGENT", "fallback"))
}

func TestClientOptions(t *testing.T) {
	config, err := Load()
	require.NoError(t, err)

	opts := config.ClientOptions()
	assert.Equal(t, config.IndexURL, opts.IndexURL)
	assert.Equal(t, config.MaxRetries, opts.MaxRetries)
	assert.Equal(t, config.RateLimit, opts.RateLimit)
}

func TestParseDates(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []time.Time
		wantErr bool
	}{
		{
			name:  "single date",
			input: "01-01-2020",
			want:  []time.Time{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:  "list with spaces and trailing comma",
			input: "01-01-2020, 06-01-2020,",
			want: []time.Time{
				time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{name: "wrong layout", input: "2020-01-01", wantErr: true},
		{name: "empty", input: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDates(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.txt")
	content := "example.com\n\n# comment\n  other.org  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	items, err := ReadList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "other.org"}, items)

	_, err = ReadList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
