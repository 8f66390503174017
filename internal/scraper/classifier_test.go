package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"example.com", "example.com", false},
		{"  Example.COM ", "example.com", false},
		{"https://www.example.com/path?q=1", "www.example.com", false},
		{"http://example.com:8080/", "example.com", false},
		{"example.com/some/page", "example.com", false},
		{"example.com.", "example.com", false},
		{"", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeDomain(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractArchivedHost(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://web.archive.org/web/20200101000000/example.com", "example.com", false},
		{"https://web.archive.org/web/20200101000000/http://www.example.com/", "www.example.com", false},
		{"https://web.archive.org/web/20200101000000id_/https://shop.example.com/cart", "shop.example.com", false},
		{"https://web.archive.org/web/20200101000000/http:/collapsed.com/", "collapsed.com", false},
		{"http://127.0.0.1:4000/web/20200101000000/b.com", "b.com", false},
		{"https://example.com/not/archive", "", true},
		{"https://web.archive.org/web/20200101000000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ExtractArchivedHost(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	orig := archive + "20200101000000/example.com"

	tests := []struct {
		name           string
		final          string
		blacklist      []string
		matchRoot      bool
		wantSame       bool
		wantDiscovered string
	}{
		{
			name:     "same host",
			final:    archive + "20200101000000/http://example.com/home",
			wantSame: true,
		},
		{
			name:           "different host",
			final:          archive + "20200101000000/http://other.com/",
			wantSame:       false,
			wantDiscovered: "other.com",
		},
		{
			name:      "blacklisted host",
			final:     archive + "20200101000000/http://other.com/",
			blacklist: []string{"https://other.com/"},
			wantSame:  false,
		},
		{
			name:           "www is a different host by default",
			final:          archive + "20200101000000/http://www.example.com/",
			wantSame:       false,
			wantDiscovered: "www.example.com",
		},
		{
			name:      "www shares the registrable domain",
			final:     archive + "20200101000000/http://www.example.com/",
			matchRoot: true,
			wantSame:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.blacklist, tt.matchRoot)
			got, err := c.Classify(orig, tt.final)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSame, got.SameDomain)
			assert.Equal(t, tt.wantDiscovered, got.DiscoveredHost)
		})
	}
}

func TestClassify_InvalidURL(t *testing.T) {
	_, err := NewClassifier(nil, false).Classify("https://example.com/", archive+"2020/x.com")
	assert.Error(t, err)
}

func TestClassifierBlacklistNormalization(t *testing.T) {
	c := NewClassifier([]string{"Facebook.com", "https://twitter.com/share", "", "  "}, false)
	assert.True(t, c.Blacklisted("facebook.com"))
	assert.True(t, c.Blacklisted("twitter.com"))
	assert.False(t, c.Blacklisted("example.com"))
	assert.ElementsMatch(t, []string{"facebook.com", "twitter.com"}, c.BlacklistedHosts())
}
