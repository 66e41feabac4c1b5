// Package telemetry provides OpenTelemetry instrumentation for the playlist sync server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// PlaylistMetricsMeterName is the name used for the playlist metrics meter
	PlaylistMetricsMeterName = "github.com/chapterline/playlist-sync-server/playlist"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/chapterline/playlist-sync-server/sync"
)

// PlaylistMetrics holds the OpenTelemetry instruments for playlist metrics
type PlaylistMetrics struct {
	videosTotal metric.Int64Gauge
}

// NewPlaylistMetrics creates a new PlaylistMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewPlaylistMetrics(provider metric.MeterProvider) (*PlaylistMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PlaylistMetricsMeterName)

	videosTotal, err := meter.Int64Gauge(
		"psync_videos_total",
		metric.WithDescription("Number of videos in each playlist"),
		metric.WithUnit("{video}"),
	)
	if err != nil {
		return nil, err
	}

	return &PlaylistMetrics{
		videosTotal: videosTotal,
	}, nil
}

// RecordVideosTotal records the current number of videos in a playlist
func (m *PlaylistMetrics) RecordVideosTotal(ctx context.Context, playlistID string, count int64) {
	if m == nil || m.videosTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("playlist", playlistID),
	}

	m.videosTotal.Record(ctx, count, metric.WithAttributes(attrs...))
}

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"psync_sync_duration_seconds",
		metric.WithDescription("Duration of sync operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
	}, nil
}

// RecordSyncDuration records the duration of a sync operation for a playlist
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, playlistID string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("playlist", playlistID),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
