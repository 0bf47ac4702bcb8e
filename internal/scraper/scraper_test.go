package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/venue-scraper/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/venue-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/venue-scraper/internal/hash/sha256"
	"github.com/JakeFAU/venue-scraper/internal/headless/detector"
	"github.com/JakeFAU/venue-scraper/internal/metrics"
	"github.com/JakeFAU/venue-scraper/internal/storage/memory"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

const hallPage = `<html><head>
<title>Grand Hall | Weddings</title>
<meta property="og:image" content="/og-cover.jpg">
</head><body>
<h1>Grand Hall</h1>
<img src="/logo.png" alt="logo">
<img src="/gallery/lawn.jpg">
<script>var tracking = true;</script>
</body></html>`

type fakeFetcher struct {
	mu       sync.Mutex
	resp     venue.FetchResponse
	err      error
	requests []venue.FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req venue.FetchRequest) (venue.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeDetector struct{ promote bool }

func (d fakeDetector) ShouldPromote(venue.FetchResponse) bool { return d.promote }

type recordingLimiter struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (l *recordingLimiter) Wait(_ context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	return l.err
}

func TestScrape_ProbeOnly(t *testing.T) {
	t.Parallel()
	metrics.Init()

	probe := &fakeFetcher{resp: venue.FetchResponse{URL: "https://hall.example/", StatusCode: 200, Body: []byte(hallPage)}}
	headless := &fakeFetcher{}
	limiter := &recordingLimiter{}
	blobs := memory.NewBlobStore()

	s := New(limiter, probe, headless, fakeDetector{}, blobs, sha256.New(), Config{SnapshotPrefix: "raw"}, nil)
	content, err := s.Scrape(context.Background(), "https://hall.example")
	require.NoError(t, err)

	require.Equal(t, "https://hall.example", content.URL)
	require.Equal(t, "Grand Hall | Weddings", content.Metadata.Title)
	require.Equal(t, []string{"https://hall.example/og-cover.jpg", "https://hall.example/gallery/lawn.jpg"}, content.Images)
	require.NotContains(t, content.Text, "tracking")
	require.Zero(t, headless.calls())
	require.Equal(t, []string{"https://hall.example"}, limiter.urls)

	paths := blobs.Paths()
	require.Len(t, paths, 1)
	require.Regexp(t, `^raw/hall\.example/[0-9a-f]{64}\.html$`, paths[0])
}

func TestScrape_HeadlessPromotion(t *testing.T) {
	t.Parallel()
	metrics.Init()

	probe := &fakeFetcher{resp: venue.FetchResponse{StatusCode: 200, Body: []byte(`<div id="__next"></div>`)}}
	headless := &fakeFetcher{resp: venue.FetchResponse{StatusCode: 200, Body: []byte(hallPage)}}

	s := New(nil, probe, headless, fakeDetector{promote: true}, nil, nil, Config{RespectRobots: true}, nil)
	content, err := s.Scrape(context.Background(), "https://hall.example")
	require.NoError(t, err)
	require.Contains(t, content.Text, "Grand Hall")
	require.Equal(t, 1, headless.calls())
	require.True(t, headless.requests[0].UseHeadless)
	require.True(t, headless.requests[0].RespectRobots)
}

func TestScrape_HeadlessFailureKeepsProbe(t *testing.T) {
	t.Parallel()
	metrics.Init()

	probe := &fakeFetcher{resp: venue.FetchResponse{StatusCode: 200, Body: []byte(hallPage)}}
	headless := &fakeFetcher{err: errors.New("chrome crashed")}

	s := New(nil, probe, headless, fakeDetector{promote: true}, nil, nil, Config{}, nil)
	content, err := s.Scrape(context.Background(), "https://hall.example")
	require.NoError(t, err)
	require.Contains(t, content.Text, "Grand Hall")
}

func TestScrape_DisabledHeadlessKeepsProbe(t *testing.T) {
	t.Parallel()
	metrics.Init()

	probe := &fakeFetcher{resp: venue.FetchResponse{StatusCode: 200, Body: []byte(hallPage)}}

	s := New(nil, probe, headlessfetcher.NewNoop(), fakeDetector{promote: true}, nil, nil, Config{}, nil)
	content, err := s.Scrape(context.Background(), "https://hall.example")
	require.NoError(t, err)
	require.Contains(t, content.Text, "Grand Hall")
}

func TestScrape_Errors(t *testing.T) {
	t.Parallel()
	metrics.Init()

	probe := &fakeFetcher{err: errors.New("dial tcp: connection refused")}
	s := New(nil, probe, nil, nil, nil, nil, Config{}, nil)
	_, err := s.Scrape(context.Background(), "https://down.example")
	require.ErrorContains(t, err, "connection refused")

	limited := New(&recordingLimiter{err: context.Canceled}, &fakeFetcher{}, nil, nil, nil, nil, Config{}, nil)
	_, err = limited.Scrape(context.Background(), "https://hall.example")
	require.ErrorIs(t, err, context.Canceled)

	gone := New(nil, &fakeFetcher{resp: venue.FetchResponse{StatusCode: 410}}, nil, nil, nil, nil, Config{}, nil)
	_, err = gone.Scrape(context.Background(), "https://hall.example")
	require.ErrorContains(t, err, "status 410")

	_, err = New(nil, nil, nil, nil, nil, nil, Config{}, nil).Scrape(context.Background(), "https://hall.example")
	require.Error(t, err)
}

func TestScrape_WithCollyAgainstFixtureServer(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(hallPage))
	}))
	defer srv.Close()

	s := New(
		nil,
		collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second}),
		nil,
		detector.NewHeuristic(0),
		nil,
		nil,
		Config{FetchTimeout: 5 * time.Second},
		nil,
	)
	content, err := s.Scrape(context.Background(), srv.URL+"/venue")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/og-cover.jpg", content.Images[0])
	require.Contains(t, content.Text, "Grand Hall")
}

func TestSnapshotPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hall.example/abc.html", SnapshotPath("", "https://Hall.example/x", "abc"))
	require.Equal(t, "raw/hall.example/abc.html", SnapshotPath("/raw/", "https://hall.example", "abc"))
	require.Equal(t, "unknown/abc.html", SnapshotPath("", "::bad", "abc"))
}
