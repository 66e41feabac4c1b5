// Package notify announces changed videos to a WebSub hub.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chapterline/playlist-sync-server/internal/logger"
)

const (
	// DefaultTimeout is the default timeout for hub requests
	DefaultTimeout = 15 * time.Second

	// DefaultMaxConcurrent bounds parallel notification posts
	DefaultMaxConcurrent = 4
)

// Outcome is the per-item result of one fan-out batch entry.
type Outcome struct {
	VideoID string
	Err     error
}

// WebSubNotifier publishes per-video change notifications to a WebSub
// hub. Delivery is at-most-once and best effort: one item's failure is
// logged and never aborts or retries the rest of the batch.
type WebSubNotifier struct {
	client        *resty.Client
	hubURL        string
	topicTemplate string
	maxConcurrent int
}

// Config carries the WebSub hub settings.
type Config struct {
	// HubURL is the hub's publish endpoint
	HubURL string

	// TopicTemplate builds the per-video topic URL, e.g.
	// "https://example.com/videos/%s/feed.xml"
	TopicTemplate string

	// MaxConcurrent bounds parallel posts; 0 means DefaultMaxConcurrent
	MaxConcurrent int

	// Timeout is the per-request timeout; 0 means DefaultTimeout
	Timeout time.Duration
}

// NewWebSubNotifier creates a notifier against the given hub.
func NewWebSubNotifier(cfg Config) *WebSubNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	cli := resty.New().
		SetTimeout(cfg.Timeout)

	return &WebSubNotifier{
		client:        cli,
		hubURL:        strings.TrimRight(cfg.HubURL, "/"),
		topicTemplate: cfg.TopicTemplate,
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// NotifyChanged pings the hub once per changed video. Outcomes are
// isolated per item; failures are logged and swallowed here, never
// surfaced to the caller.
func (n *WebSubNotifier) NotifyChanged(ctx context.Context, videoIDs []string) {
	outcomes := n.publishBatch(ctx, videoIDs)

	failed := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			logger.Warnf("WebSub publish for video '%s' failed: %v", outcome.VideoID, outcome.Err)
		}
	}

	if failed > 0 {
		logger.Warnf("WebSub fan-out: %d/%d notifications failed", failed, len(videoIDs))
	} else if len(videoIDs) > 0 {
		logger.Infof("WebSub fan-out: notified hub for %d videos", len(videoIDs))
	}
}

// publishBatch runs the bounded fan-out and collects per-item outcomes.
func (n *WebSubNotifier) publishBatch(ctx context.Context, videoIDs []string) []Outcome {
	outcomes := make([]Outcome, len(videoIDs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(n.maxConcurrent)

	for i, videoID := range videoIDs {
		group.Go(func() error {
			outcomes[i] = Outcome{
				VideoID: videoID,
				Err:     n.publishOne(groupCtx, videoID),
			}
			// Always nil: a failed item must not cancel its siblings
			return nil
		})
	}

	_ = group.Wait()
	return outcomes
}

// publishOne posts a single publish notification to the hub. Success is
// any 2xx response.
func (n *WebSubNotifier) publishOne(ctx context.Context, videoID string) error {
	topic := fmt.Sprintf(n.topicTemplate, videoID)

	resp, err := n.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"hub.mode":  "publish",
			"hub.url":   topic,
			"hub.topic": topic,
		}).
		Post(n.hubURL)
	if err != nil {
		return fmt.Errorf("publish request: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("hub returned %s", resp.Status())
	}

	return nil
}
