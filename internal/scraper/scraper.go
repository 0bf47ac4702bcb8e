// Package scraper fetches a venue page, promotes it to a headless render when
// the static response looks empty, snapshots the markup, and parses it.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/venue-scraper/internal/extract"
	"github.com/JakeFAU/venue-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/venue-scraper/internal/metrics"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// DefaultFetchTimeout bounds one page fetch including any headless render.
const DefaultFetchTimeout = 30 * time.Second

// Config controls Scraper behavior.
type Config struct {
	FetchTimeout   time.Duration
	RespectRobots  bool
	SnapshotPrefix string
	ContentType    string
}

// Scraper implements venue.PageScraper.
type Scraper struct {
	limiter         venue.Limiter
	probeFetcher    venue.Fetcher
	headlessFetcher venue.Fetcher
	detector        venue.HeadlessDetector
	blobStore       venue.BlobStore
	hasher          venue.Hasher
	cfg             Config
	logger          *zap.Logger
}

// New constructs a Scraper. limiter, headless, detector, and blobStore may be
// nil to disable pacing, promotion, and snapshots respectively.
func New(
	limiter venue.Limiter,
	probe venue.Fetcher,
	headlessFetcher venue.Fetcher,
	detector venue.HeadlessDetector,
	blobStore venue.BlobStore,
	hasher venue.Hasher,
	cfg Config,
	logger *zap.Logger,
) *Scraper {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		limiter:         limiter,
		probeFetcher:    probe,
		headlessFetcher: headlessFetcher,
		detector:        detector,
		blobStore:       blobStore,
		hasher:          hasher,
		cfg:             cfg,
		logger:          logger.Named("scraper"),
	}
}

// Scrape fetches pageURL and returns its text, ranked images, and metadata.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (venue.ScrapedContent, error) {
	if s.probeFetcher == nil {
		return venue.ScrapedContent{}, fmt.Errorf("no probe fetcher configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, pageURL); err != nil {
			return venue.ScrapedContent{}, err
		}
	}

	resp, err := s.probeFetcher.Fetch(ctx, venue.FetchRequest{
		URL:           pageURL,
		RespectRobots: s.cfg.RespectRobots,
	})
	if err != nil {
		metrics.ObservePage(pageURL, "error", 0)
		return venue.ScrapedContent{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	s.logger.Debug("probe fetch succeeded",
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
	)

	if promoted, ok := s.maybePromote(ctx, pageURL, resp); ok {
		resp = promoted
		s.logger.Info("headless promotion applied", zap.String("url", pageURL))
	}
	metrics.ObservePage(pageURL, strconv.Itoa(resp.StatusCode), len(resp.Body))

	if resp.StatusCode >= 400 {
		return venue.ScrapedContent{}, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	s.snapshot(ctx, pageURL, resp.Body)

	base := resp.URL
	if base == "" {
		base = pageURL
	}
	content, err := extract.Parse(base, resp.Body)
	if err != nil {
		return venue.ScrapedContent{}, fmt.Errorf("extract %s: %w", pageURL, err)
	}
	content.URL = pageURL
	return content, nil
}

func (s *Scraper) maybePromote(ctx context.Context, pageURL string, resp venue.FetchResponse) (venue.FetchResponse, bool) {
	if s.detector == nil || s.headlessFetcher == nil || !s.detector.ShouldPromote(resp) {
		return resp, false
	}
	headlessResp, err := s.headlessFetcher.Fetch(ctx, venue.FetchRequest{
		URL:           pageURL,
		UseHeadless:   true,
		RespectRobots: s.cfg.RespectRobots,
	})
	if errors.Is(err, headless.ErrDisabled) {
		s.logger.Debug("page looks script-rendered but headless is disabled", zap.String("url", pageURL))
		return resp, false
	}
	if err != nil {
		s.logger.Warn("headless promotion failed", zap.String("url", pageURL), zap.Error(err))
		return resp, false
	}
	headlessResp.UsedHeadless = true
	return headlessResp, true
}

// snapshot stores the raw markup; failures are logged and never fail the scrape.
func (s *Scraper) snapshot(ctx context.Context, pageURL string, body []byte) {
	if s.blobStore == nil || s.hasher == nil || len(body) == 0 {
		return
	}
	digest, err := s.hasher.Hash(body)
	if err != nil {
		s.logger.Warn("hash snapshot failed", zap.String("url", pageURL), zap.Error(err))
		return
	}
	path := SnapshotPath(s.cfg.SnapshotPrefix, pageURL, digest)
	uri, err := s.blobStore.PutObject(ctx, path, s.cfg.ContentType, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("store snapshot failed", zap.String("url", pageURL), zap.Error(err))
		return
	}
	s.logger.Debug("snapshot stored", zap.String("url", pageURL), zap.String("blob_uri", uri))
}

// SnapshotPath builds "<prefix>/<host>/<digest>.html"; the prefix is optional.
func SnapshotPath(prefix, pageURL, digest string) string {
	host := "unknown"
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", host, digest)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, host, digest)
}
