package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/logger"
	"github.com/chapterline/playlist-sync-server/internal/status"
	pkgsync "github.com/chapterline/playlist-sync-server/internal/sync"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
	"github.com/chapterline/playlist-sync-server/internal/telemetry"
)

// SyncRunner executes sync attempts and idle re-checks. Satisfied by the
// sync engine.
type SyncRunner interface {
	Run(ctx context.Context, playlistID string) (*status.LastSyncResult, error)
	RecheckIdle(ctx context.Context, playlistID string, batchSize int)
}

// Coordinator manages background synchronization scheduling and execution
// for all configured playlists
type Coordinator interface {
	// Start begins background sync coordination.
	// Blocks until the context is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	runner SyncRunner
	states state.PlaylistStateService
	config *config.Config

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}

	// Metrics
	syncMetrics     *telemetry.SyncMetrics
	playlistMetrics *telemetry.PlaylistMetrics

	mu      sync.Mutex
	lastRun map[string]time.Time

	// now is swappable for tests
	now func() time.Time
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithPlaylistMetrics sets the playlist metrics for the coordinator
func WithPlaylistMetrics(metrics *telemetry.PlaylistMetrics) Option {
	return func(c *defaultCoordinator) {
		c.playlistMetrics = metrics
	}
}

// New creates a new coordinator with injected dependencies
func New(
	runner SyncRunner,
	states state.PlaylistStateService,
	cfg *config.Config,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		runner:  runner,
		states:  states,
		config:  cfg,
		done:    make(chan struct{}),
		lastRun: make(map[string]time.Time),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// tickInterval returns the coordinator's wake-up interval with a random
// jitter applied, so multiple instances do not poll in lockstep.
func (c *defaultCoordinator) tickInterval() time.Duration {
	base := c.config.HotInterval()
	jitter := base / 10
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}

// Start begins background sync coordination for all playlists
func (c *defaultCoordinator) Start(ctx context.Context) error {
	logger.Infof("Starting background sync coordinator, %d playlists", len(c.config.Playlists))

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		logger.Info("Background sync coordinator shutting down")
	}()

	if err := c.states.Initialize(ctx, c.config.Playlists); err != nil {
		return fmt.Errorf("failed to initialize playlist sync state: %w", err)
	}

	interval := c.tickInterval()
	logger.Infof("Configured coordinator tick interval: base=%v actual=%v",
		c.config.HotInterval(), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial pass before the first tick
	c.processDuePlaylists(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.processDuePlaylists(coordCtx)

			// Recalculate with fresh jitter for the next iteration
			ticker.Reset(c.tickInterval())
		case <-coordCtx.Done():
			logger.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		logger.Info("Stopping sync coordinator")
		c.cancelFunc()
		// Wait for the coordinator loop to finish
		<-c.done
	}
	return nil
}

// processDuePlaylists syncs every playlist whose cadence has elapsed and
// drives a batch of idle re-checks for each.
func (c *defaultCoordinator) processDuePlaylists(ctx context.Context) {
	for _, pl := range c.config.Playlists {
		if ctx.Err() != nil {
			return
		}
		if c.isDue(ctx, pl.ID) {
			c.syncPlaylist(ctx, pl.ID)
		}
		c.runner.RecheckIdle(ctx, pl.ID, c.config.IdleBatchSize())
	}
}

// isDue reports whether a playlist's polling cadence has elapsed. A
// playlist inside its active window polls at the hot interval, all
// others at the slow interval: activeWindowUntil is a scheduler input,
// not a decay function.
func (c *defaultCoordinator) isDue(ctx context.Context, playlistID string) bool {
	now := c.now()

	interval := c.config.SlowInterval()
	st, err := c.states.GetState(ctx, playlistID)
	if err != nil {
		logger.Warnf("Playlist '%s': failed to load state for scheduling: %v", playlistID, err)
	} else if st.ActiveWindowUntil != nil && now.Before(*st.ActiveWindowUntil) {
		interval = c.config.HotInterval()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.lastRun[playlistID]
	if ok && now.Sub(last) < interval {
		return false
	}
	c.lastRun[playlistID] = now
	return true
}

// syncPlaylist executes one sync attempt and records metrics
func (c *defaultCoordinator) syncPlaylist(ctx context.Context, playlistID string) {
	logger.Infof("Playlist '%s': starting scheduled sync", playlistID)
	startTime := c.now()

	result, err := c.runner.Run(ctx, playlistID)
	syncDuration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, pkgsync.ErrLeaseHeld) {
			logger.Debugf("Playlist '%s': sync lease held elsewhere, skipping", playlistID)
			return
		}
		logger.Errorf("Playlist '%s': sync failed: %v", playlistID, err)
		c.syncMetrics.RecordSyncDuration(ctx, playlistID, syncDuration, false)
		return
	}

	c.syncMetrics.RecordSyncDuration(ctx, playlistID, syncDuration, result.Succeeded())

	if result.Succeeded() {
		logger.Infof("Playlist '%s': sync completed, added=%d updated=%d removed=%d",
			playlistID, result.VideosAdded, result.VideosUpdated, result.VideosRemoved)

		if st, err := c.states.GetState(ctx, playlistID); err == nil {
			c.playlistMetrics.RecordVideosTotal(ctx, playlistID, int64(st.ItemCount))
		}
	} else {
		logger.Errorf("Playlist '%s': sync completed with error: %s", playlistID, result.Error)
	}
}
