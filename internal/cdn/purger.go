// Package cdn dispatches cache invalidation requests to the CDN purge API.
package cdn

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chapterline/playlist-sync-server/internal/logger"
)

// DefaultTimeout is the default timeout for purge requests
const DefaultTimeout = 15 * time.Second

// purgeRequest is the purge API request body
type purgeRequest struct {
	Tags []string `json:"tags"`
}

// purgeResponse is the purge API response body. Success is the API's own
// flag, not just the HTTP status.
type purgeResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

// Purger calls the CDN purge API for tag sets. Purge is a best-effort
// side channel: missing credentials and API failures are logged, never
// escalated, and there is no retry.
type Purger struct {
	client   *resty.Client
	endpoint string
	token    string
}

// Config carries the purge API settings.
type Config struct {
	// Endpoint is the purge API URL
	Endpoint string

	// TokenFile is the path to a file holding the bearer token; empty or
	// unreadable means purging is disabled
	TokenFile string

	// Timeout is the per-request timeout; 0 means DefaultTimeout
	Timeout time.Duration
}

// NewPurger creates a purge dispatcher. A missing token is a
// configuration condition, not an error: the returned dispatcher turns
// every purge into a logged no-op.
func NewPurger(cfg Config) *Purger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	token := loadToken(cfg.TokenFile)
	if token == "" {
		logger.Warn("CDN purge token not configured, purge requests will be skipped")
	}

	return &Purger{
		client:   resty.New().SetTimeout(cfg.Timeout),
		endpoint: cfg.Endpoint,
		token:    token,
	}
}

// Purge asks the CDN to invalidate the given tags. It returns nil when
// credentials are missing and logs non-success responses with their
// detail; a returned error only reflects transport or decode failures
// and is informational for the caller's log line.
func (p *Purger) Purge(ctx context.Context, tags []string) error {
	if p.token == "" {
		logger.Debugf("CDN purge skipped (no credentials), %d tags", len(tags))
		return nil
	}
	if len(tags) == 0 {
		return nil
	}

	var result purgeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.token).
		SetHeader("Content-Type", "application/json").
		SetBody(purgeRequest{Tags: tags}).
		SetResult(&result).
		Post(p.endpoint)
	if err != nil {
		return fmt.Errorf("purge request: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		logger.Warnf("CDN purge returned %s for %d tags", resp.Status(), len(tags))
		return nil
	}

	if !result.Success {
		logger.Warnf("CDN purge unsuccessful for %d tags: %s", len(tags), strings.Join(result.Errors, "; "))
		return nil
	}

	logger.Infof("CDN purge completed for %d tags", len(tags))
	return nil
}

func loadToken(tokenFile string) string {
	if tokenFile == "" {
		return ""
	}

	data, err := os.ReadFile(filepath.Clean(tokenFile))
	if err != nil {
		logger.Warnf("Failed to read CDN purge token from %s: %v", tokenFile, err)
		return ""
	}

	return strings.TrimSpace(string(data))
}
