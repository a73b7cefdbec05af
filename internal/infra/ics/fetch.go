package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const maxFeedBytes = 10 << 20

// ErrFeedTooLarge is returned when a feed exceeds the size cap.
var ErrFeedTooLarge = errors.New("ics feed exceeds size limit")

// Fetcher downloads a feed, honoring ETag and Last-Modified so unchanged
// feeds are served from memory.
type Fetcher struct {
	client *http.Client
	url    string
	logger *slog.Logger

	mu           sync.Mutex
	etag         string
	lastModified string
	body         []byte
}

// NewFetcher creates a fetcher for feedURL.
func NewFetcher(feedURL string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		url:    feedURL,
		logger: logger.With("component", "ics.fetcher", "url", redactURL(feedURL)),
	}
}

// Fetch returns the feed body. Network failures fall back to the last good
// body when there is one.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.url == "" {
		return nil, errors.New("ics feed url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}
	cached := f.body
	f.mu.Unlock()

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 && ctx.Err() == nil {
			f.logger.Warn("ics fetch failed, using cached feed", "error", err)
			return cached, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
		if err != nil {
			return nil, err
		}
		if len(body) > maxFeedBytes {
			return nil, ErrFeedTooLarge
		}
		f.mu.Lock()
		f.etag = resp.Header.Get("ETag")
		f.lastModified = resp.Header.Get("Last-Modified")
		f.body = body
		f.mu.Unlock()
		f.logger.Debug("ics feed fetched", "bytes", len(body))
		return body, nil
	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, errors.New("ics feed not modified but nothing cached")
		}
		return cached, nil
	default:
		return nil, fmt.Errorf("ics feed returned status %d", resp.StatusCode)
	}
}

// redactURL drops query strings, which often carry private feed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
