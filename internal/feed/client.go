package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTimeout is the default timeout for feed requests
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent string for feed requests
	UserAgent = "playlist-syncd/1.0"

	// maxFetchAttempts bounds retries of a single logical fetch
	maxFetchAttempts = 3
)

// Client is the interface for upstream feed operations
type Client interface {
	// FetchPlaylist retrieves the full item list of a playlist. When
	// conditional markers are supplied and the upstream reports no
	// change, the returned page has NotModified set and no items.
	FetchPlaylist(ctx context.Context, playlistID string, cond Conditional) (*Page, error)

	// VideoExists checks whether a single video is still present
	// upstream. Used to confirm removals before they are finalized.
	VideoExists(ctx context.Context, videoID string) (bool, error)
}

// HTTPClient is the HTTP implementation of Client
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a feed client against the given base URL.
// If timeout is 0, uses DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: trimTrailingSlash(baseURL),
	}
}

// FetchPlaylist retrieves the playlist feed, retrying transient failures
// with exponential backoff.
func (c *HTTPClient) FetchPlaylist(ctx context.Context, playlistID string, cond Conditional) (*Page, error) {
	url := fmt.Sprintf("%s/playlists/%s/items", c.baseURL, playlistID)

	operation := func() (*Page, error) {
		page, err := c.fetchOnce(ctx, url, cond)
		if err != nil {
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return page, nil
	}

	page, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxFetchAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist '%s': %w", playlistID, err)
	}

	return page, nil
}

func (c *HTTPClient) fetchOnce(ctx context.Context, url string, cond Conditional) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if cond.ETag != "" {
		req.Header.Set("If-None-Match", cond.ETag)
	}
	if cond.LastModified != "" {
		req.Header.Set("If-Modified-Since", cond.LastModified)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		return &Page{
			ETag:         firstNonEmpty(resp.Header.Get("ETag"), cond.ETag),
			LastModified: firstNonEmpty(resp.Header.Get("Last-Modified"), cond.LastModified),
			NotModified:  true,
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	body, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse feed response: %w", err)
	}

	page.ETag = resp.Header.Get("ETag")
	page.LastModified = resp.Header.Get("Last-Modified")
	return &page, nil
}

// VideoExists issues a HEAD request for the video resource.
func (c *HTTPClient) VideoExists(ctx context.Context, videoID string) (bool, error) {
	url := fmt.Sprintf("%s/videos/%s", c.baseURL, videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, NewHTTPError(resp.StatusCode, url, resp.Status)
	}
}

// readLimited reads the response body with a size limit to prevent
// unbounded memory use on a misbehaving upstream.
func readLimited(r io.Reader) ([]byte, error) {
	limitedReader := io.LimitReader(r, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return body, nil
}

func trimTrailingSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
