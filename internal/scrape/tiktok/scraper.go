// Package tiktok implements the scraping collaborator via TikTok's
// server-rendered profile pages. It is pure HTTP: the rehydration JSON
// embedded in the profile HTML carries the latest videos with their
// engagement counters, no browser required.
package tiktok

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/scrape"
)

const (
	defaultBaseURL = "https://www.tiktok.com"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes   = 8 << 20
)

// Scraper fetches profile pages and extracts video records.
type Scraper struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewScraper constructs a Scraper with a plain HTTP client. The caller
// controls per-attempt deadlines through the context.
func NewScraper(logger *zap.Logger) *Scraper {
	return &Scraper{
		baseURL: defaultBaseURL,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Fetch implements monitor.Scraper. It returns the latest videos for the
// handle in source order, or a classified failure.
func (s *Scraper) Fetch(ctx context.Context, handle string) ([]monitor.RawVideo, error) {
	url := s.baseURL + "/@" + handle
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile @%s: %w", handle, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, scrape.ErrAccountNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, scrape.ErrBlocked
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, scrape.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch profile @%s: unexpected status %d", handle, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read profile @%s: %w", handle, err)
	}

	if isCaptchaChallenge(resp, body) {
		return nil, scrape.ErrCaptcha
	}

	videos, err := extractVideos(body, handle)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Profile scraped",
		zap.String("handle", handle),
		zap.Int("videos", len(videos)),
	)
	return videos, nil
}

// isCaptchaChallenge detects TikTok's verification interstitial, which is
// served with a 200 status.
func isCaptchaChallenge(resp *http.Response, body []byte) bool {
	if strings.Contains(resp.Request.URL.Path, "verify") {
		return true
	}
	return strings.Contains(string(body), "tiktok-verify-page")
}
