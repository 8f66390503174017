package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(srv *httptest.Server) ClientOptions {
	opts := DefaultClientOptions()
	opts.IndexURL = srv.URL + "/cdx/search/cdx"
	opts.ReplayURL = srv.URL + "/web/"
	opts.RateLimit = 0
	opts.RetryBackoff = time.Millisecond
	return opts
}

// TestBuildCDXQuery verifies the query string carries the collapse, output and filter directives
func TestBuildCDXQuery(t *testing.T) {
	tests := []struct {
		name         string
		domain       string
		statusFilter string
		want         url.Values
	}{
		{
			name:   "no filter",
			domain: "example.com",
			want: url.Values{
				"url":      {"example.com"},
				"collapse": {"timestamp:6"},
				"output":   {"json"},
			},
		},
		{
			name:         "status class filter",
			domain:       " example.com ",
			statusFilter: "3..",
			want: url.Values{
				"url":      {"example.com"},
				"collapse": {"timestamp:6"},
				"output":   {"json"},
				"filter":   {"statuscode:3.."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := url.ParseQuery(BuildCDXQuery(tt.domain, tt.statusFilter, 6))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestExtractRootDomain tests domain extraction
func TestExtractRootDomain(t *testing.T) {
	tests := []struct {
		input    string
		wantRoot string
		wantErr  bool
	}{
		{"bfl.ai", "bfl.ai", false},
		{"playground.bfl.ai", "bfl.ai", false},
		{"https://playground.bfl.ai/", "bfl.ai", false},
		{"https://www.example.com/path?query=1", "example.com", false},
		{"test.dev.pci.westcoast.acme.com", "acme.com", false},
		{"news.bbc.co.uk", "bbc.co.uk", false},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ExtractRootDomain(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoot, got)
		})
	}
}

func TestParseCDXTimestamp(t *testing.T) {
	ts, err := ParseCDXTimestamp("20191230120000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 12, 30, 12, 0, 0, 0, time.UTC), ts)

	_, err = ParseCDXTimestamp("2019")
	assert.Error(t, err)

	_, err = ParseCDXTimestamp("2019123012000x")
	assert.Error(t, err)
}

func TestFetchSnapshots(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `[["urlkey","timestamp","original","mimetype","statuscode","digest","length"],
["com,example)/","20191230000000","http://example.com/","text/html","200","AAA","100"],
["com,example)/","bogus","http://example.com/","text/html","200","BBB","100"],
["com,example)/","20200615000000","http://example.com/","text/html","301","CCC","100"]]`)
	}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	candidates, err := client.FetchSnapshots(context.Background(), "example.com", "")
	require.NoError(t, err)

	assert.Equal(t, "example.com", gotQuery.Get("url"))
	assert.Equal(t, "timestamp:6", gotQuery.Get("collapse"))
	assert.Empty(t, gotQuery.Get("filter"))

	require.Len(t, candidates, 2, "malformed row should be dropped")
	assert.Equal(t, "20191230000000", candidates[0].RawPath)
	assert.Equal(t, "200", candidates[0].StatusCode)
	assert.Equal(t, "301", candidates[1].StatusCode)
	assert.True(t, candidates[0].Timestamp.Before(candidates[1].Timestamp))
}

func TestFetchSnapshots_HeaderDrivenColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[["statuscode","timestamp"],["302","20200101000000"],["-","20200201000000"]]`)
	}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	candidates, err := client.FetchSnapshots(context.Background(), "example.com", "")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "302", candidates[0].StatusCode)
	assert.Equal(t, "-", candidates[1].StatusCode)
}

func TestFetchSnapshots_MalformedRowsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[["urlkey","timestamp","original","mimetype","statuscode"],
["com,example)/"],
["com,example)/","2020","http://example.com/","text/html","200"],
["com,example)/","20200101000000","http://example.com/","text/html","200"]]`)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.WarnLevel})

	client := NewWaybackClient(testOptions(srv), logger)
	candidates, err := client.FetchSnapshots(context.Background(), "example.com", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Dropping snapshot"), out)
	assert.Contains(t, out, "row has 1 columns")
}

func TestFetchSnapshots_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	candidates, err := client.FetchSnapshots(context.Background(), "example.com", "200")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFetchSnapshots_Gzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, `[["urlkey","timestamp","original","mimetype","statuscode","digest","length"],["k","20200101000000","o","m","200","d","1"]]`)
		gz.Close()
	}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	candidates, err := client.FetchSnapshots(context.Background(), "example.com", "")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestFetchSnapshots_IndexQueryError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	_, err := client.FetchSnapshots(context.Background(), "example.com", "")
	require.Error(t, err)

	var qe *IndexQueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, http.StatusBadRequest, qe.StatusCode)
	assert.Equal(t, "example.com", qe.Domain)
	assert.Contains(t, qe.Body, "bad request")
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")
}

func TestFetchSnapshots_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[["urlkey","timestamp","original","mimetype","statuscode","digest","length"],["k","20200101000000","o","m","200","d","1"]]`)
	}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	candidates, err := client.FetchSnapshots(context.Background(), "example.com", "")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchSnapshots_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	opts := testOptions(srv)
	opts.MaxRetries = 2
	client := NewWaybackClient(opts, nil)
	_, err := client.FetchSnapshots(context.Background(), "example.com", "")
	require.Error(t, err)

	var qe *IndexQueryError
	assert.True(t, errors.As(err, &qe))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPage_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/elsewhere" {
			fmt.Fprint(w, "followed")
			return
		}
		w.Header().Set("Location", "/elsewhere")
		w.WriteHeader(http.StatusFound)
		fmt.Fprint(w, `<p class="impatient"><a href="/web/20200101000000/http://other.com/">Impatient?</a></p>`)
	}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	body, err := client.FetchPage(context.Background(), srv.URL+"/web/20200101000000/example.com")
	require.NoError(t, err)
	assert.Contains(t, string(body), "impatient")
	assert.NotContains(t, string(body), "followed")
}

func TestFetchPage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewWaybackClient(testOptions(srv), nil)
	_, err := client.FetchPage(context.Background(), srv.URL+"/web/x")

	var pe *PageFetchError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
}

func TestFetchPage_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	opts := testOptions(srv)
	opts.PageTimeout = 20 * time.Millisecond
	client := NewWaybackClient(opts, nil)
	_, err := client.FetchPage(context.Background(), srv.URL+"/web/x")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestStatusCodeInt(t *testing.T) {
	assert.Equal(t, 301, StatusCodeInt("301"))
	assert.Equal(t, 0, StatusCodeInt("-"))
	assert.Equal(t, 0, StatusCodeInt(""))
}

// TestFetchSnapshotsIntegration is an integration test that actually calls the API
// Run with: go test -v -run TestFetchSnapshotsIntegration ./internal/api/
func TestFetchSnapshotsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := NewWaybackClient(DefaultClientOptions(), nil)
	candidates, err := client.FetchSnapshots(context.Background(), "example.com", "200")
	if err != nil {
		t.Skipf("archive unavailable: %v", err)
	}

	assert.NotEmpty(t, candidates, "expected at least some captures for example.com")
	for i, c := range candidates {
		if i >= 3 {
			break
		}
		t.Logf("  %d: %s (status: %s)", i, c.RawPath, c.StatusCode)
	}
}
