package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chapterline/playlist-sync-server/internal/feed"
	"github.com/chapterline/playlist-sync-server/internal/logger"
	"github.com/chapterline/playlist-sync-server/internal/status"
	"github.com/chapterline/playlist-sync-server/internal/store"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
)

// ErrLeaseHeld is returned by Run when another owner holds the sync lease
// for the playlist. It signals a normal skip, not a failure.
var ErrLeaseHeld = errors.New("sync lease held by another owner")

// Notifier announces changed videos to downstream subscribers. Failures
// are isolated inside the implementation and never surface here.
type Notifier interface {
	NotifyChanged(ctx context.Context, videoIDs []string)
}

// Purger invalidates CDN cache entries for the given tags. Best effort;
// a returned error is logged and never affects the sync result.
type Purger interface {
	Purge(ctx context.Context, tags []string) error
}

// Options carries the engine tunables.
type Options struct {
	// LeaseTTL bounds how long one run may hold the sync lease
	LeaseTTL time.Duration

	// GraceWindow is how long an item must be absent before removal may
	// be finalized
	GraceWindow time.Duration

	// ActiveWindow is how long a playlist stays hot after a sync that
	// observed changes
	ActiveWindow time.Duration
}

// Engine orchestrates one sync attempt per call: lease, fetch, change
// detection, diff, apply, result bookkeeping, downstream fan-out.
type Engine struct {
	states   state.PlaylistStateService
	feed     feed.Client
	store    store.VideoStore
	notifier Notifier
	purger   Purger
	leases   *LeaseManager
	detector *ChangeDetector
	opts     Options

	// Per-playlist idle bookkeeping; transient, rebuilt after restart
	idleMu   sync.Mutex
	trackers map[string]*IdleTracker

	// now is swappable for tests
	now func() time.Time
}

// NewEngine creates a sync engine. notifier and purger may be nil, in
// which case the corresponding fan-out step is skipped.
func NewEngine(
	states state.PlaylistStateService,
	feedClient feed.Client,
	videoStore store.VideoStore,
	notifier Notifier,
	purger Purger,
	opts Options,
) *Engine {
	return &Engine{
		states:   states,
		feed:     feedClient,
		store:    videoStore,
		notifier: notifier,
		purger:   purger,
		leases:   NewLeaseManager(states),
		detector: NewChangeDetector(),
		opts:     opts,
		trackers: make(map[string]*IdleTracker),
		now:      time.Now,
	}
}

// Run executes one sync attempt for a playlist.
//
// A denied lease returns ErrLeaseHeld with no state change. Fetch, diff
// and apply failures are recorded in the playlist's LastSyncResult and
// returned as the result, not as an error: the error return is reserved
// for state-service failures where not even a result could be recorded.
// The lease is released on every exit path out of a granted acquire.
func (e *Engine) Run(ctx context.Context, playlistID string) (*status.LastSyncResult, error) {
	ownerID := uuid.NewString()

	granted, err := e.leases.TryAcquire(ctx, playlistID, ownerID, e.opts.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lease for playlist '%s': %w", playlistID, err)
	}
	if !granted {
		logger.Infof("Playlist '%s': sync lease held by another owner, skipping run", playlistID)
		return nil, ErrLeaseHeld
	}

	defer func() {
		if _, err := e.leases.Release(ctx, playlistID, ownerID); err != nil {
			logger.Errorf("Playlist '%s': failed to release sync lease: %v", playlistID, err)
		}
	}()

	result, changed := e.runLeased(ctx, playlistID)

	if err := e.recordResult(ctx, playlistID, result); err != nil {
		return nil, fmt.Errorf("failed to record sync result for playlist '%s': %w", playlistID, err)
	}

	// Downstream fan-out runs after the result is recorded so its
	// failures cannot flip the sync outcome.
	if result.Error == "" && len(changed) > 0 {
		e.fanOut(ctx, playlistID, changed)
	}

	return result, nil
}

// runLeased performs fetch, change detection, diff and apply. It returns
// the run's result and the set of changed video ids.
func (e *Engine) runLeased(ctx context.Context, playlistID string) (*status.LastSyncResult, []string) {
	st, err := e.states.GetState(ctx, playlistID)
	if err != nil {
		return e.failedResult("failed to load sync state: %v", err), nil
	}

	page, err := e.feed.FetchPlaylist(ctx, playlistID, feed.Conditional{
		ETag:         st.ETag,
		LastModified: st.LastModified,
	})
	if err != nil {
		return e.failedResult("feed fetch failed: %v", err), nil
	}

	shouldSync, reason := e.detector.ShouldSync(st, page)
	logger.Infof("Playlist '%s': change detection: shouldSync=%t reason=%s", playlistID, shouldSync, reason)
	if !shouldSync {
		// Fast path: one fetch, one comparison, no diffing. Still a
		// successful run, recorded with zero counts.
		e.updateMarkers(ctx, playlistID, page, nil)
		return &status.LastSyncResult{At: e.now()}, nil
	}

	outcome := e.applyDiff(ctx, playlistID, page)

	itemCount, err := e.store.Count(ctx, playlistID)
	if err != nil {
		logger.Warnf("Playlist '%s': failed to count stored videos: %v", playlistID, err)
		itemCount = -1
	}
	e.updateMarkers(ctx, playlistID, page, func(s *status.PlaylistSyncState) {
		if itemCount >= 0 {
			s.ItemCount = itemCount
		}
		if outcome.changedCount() > 0 {
			until := e.now().Add(e.opts.ActiveWindow)
			s.ActiveWindowUntil = &until
		}
	})

	result := &status.LastSyncResult{
		VideosAdded:   outcome.added,
		VideosUpdated: outcome.updated,
		VideosRemoved: outcome.removed,
		At:            e.now(),
	}
	if len(outcome.failures) > 0 {
		// Partial success stays representable: successful counts are
		// kept and the failure detail rides along in Error.
		result.Error = strings.Join(outcome.failures, "; ")
	}

	return result, outcome.changedIDs
}

// applyOutcome accumulates the per-item bookkeeping of one diff/apply pass.
type applyOutcome struct {
	added      int
	updated    int
	removed    int
	failures   []string
	changedIDs []string
}

func (o *applyOutcome) changedCount() int {
	return o.added + o.updated + o.removed
}

// applyDiff diffs the fetched page against the stored items and applies
// additions, updates and confirmed removals. Individual item failures are
// collected, never fatal to the rest of the batch.
func (e *Engine) applyDiff(ctx context.Context, playlistID string, page *feed.Page) *applyOutcome {
	outcome := &applyOutcome{}
	now := e.now()
	tracker := e.trackerFor(playlistID)

	known, err := e.store.List(ctx, playlistID)
	if err != nil {
		outcome.failures = append(outcome.failures, fmt.Sprintf("failed to list stored videos: %v", err))
		return outcome
	}

	knownByID := make(map[string]*store.Video, len(known))
	for i := range known {
		knownByID[known[i].VideoID] = &known[i]
	}

	seen := make(map[string]struct{}, len(page.Items))
	for _, item := range page.Items {
		seen[item.VideoID] = struct{}{}

		incoming := store.Video{
			PlaylistID:   playlistID,
			VideoID:      item.VideoID,
			Title:        item.Title,
			Description:  item.Description,
			Position:     item.Position,
			PublishedAt:  item.PublishedAt,
			ThumbnailURL: item.ThumbnailURL,
			LastSeenAt:   now,
		}

		existing, exists := knownByID[item.VideoID]
		switch {
		case !exists:
			incoming.FirstSeenAt = now
			if err := e.store.Upsert(ctx, incoming); err != nil {
				outcome.failures = append(outcome.failures, fmt.Sprintf("add %s: %v", item.VideoID, err))
				continue
			}
			outcome.added++
			outcome.changedIDs = append(outcome.changedIDs, item.VideoID)

		case !existing.ContentEquals(&incoming):
			incoming.FirstSeenAt = existing.FirstSeenAt
			if err := e.store.Upsert(ctx, incoming); err != nil {
				outcome.failures = append(outcome.failures, fmt.Sprintf("update %s: %v", item.VideoID, err))
				continue
			}
			outcome.updated++
			outcome.changedIDs = append(outcome.changedIDs, item.VideoID)
		}

		tracker.MarkChecked(item.VideoID, now)
	}

	// Items known but absent from this fetch are candidates for removal,
	// never removed on a single absence: upstream feeds may paginate or
	// transiently omit items.
	for id := range knownByID {
		if _, ok := seen[id]; ok {
			continue
		}
		e.handleAbsent(ctx, playlistID, id, tracker, outcome, now)
	}

	return outcome
}

// handleAbsent runs the two-phase removal confirmation for one item that
// was missing from the latest fetch.
func (e *Engine) handleAbsent(
	ctx context.Context,
	playlistID, videoID string,
	tracker *IdleTracker,
	outcome *applyOutcome,
	now time.Time,
) {
	firstAbsence := false
	if _, ok := tracker.LastChecked(videoID); !ok {
		// Start the grace clock at the first observed absence
		tracker.MarkChecked(videoID, now)
		firstAbsence = true
	}
	tracker.Enqueue(videoID)

	if firstAbsence {
		return
	}

	lastChecked, _ := tracker.LastChecked(videoID)
	if now.Sub(lastChecked) < e.opts.GraceWindow {
		return
	}

	// Grace window passed; a dedicated re-check must confirm the absence
	exists, err := e.feed.VideoExists(ctx, videoID)
	if err != nil {
		logger.Warnf("Playlist '%s': existence re-check for video '%s' failed: %v", playlistID, videoID, err)
		return
	}
	if exists {
		tracker.MarkChecked(videoID, now)
		return
	}

	if err := e.store.Remove(ctx, playlistID, videoID); err != nil {
		outcome.failures = append(outcome.failures, fmt.Sprintf("remove %s: %v", videoID, err))
		return
	}
	tracker.Forget(videoID)
	outcome.removed++
	outcome.changedIDs = append(outcome.changedIDs, videoID)
}

// RecheckIdle pops up to batchSize queued items for a playlist and
// re-verifies their upstream existence out of band. Confirmed-absent
// items past the grace window are removed from the store.
func (e *Engine) RecheckIdle(ctx context.Context, playlistID string, batchSize int) {
	tracker := e.trackerFor(playlistID)
	now := e.now()

	for _, videoID := range tracker.DequeueBatch(batchSize) {
		exists, err := e.feed.VideoExists(ctx, videoID)
		if err != nil {
			logger.Warnf("Playlist '%s': idle re-check for video '%s' failed: %v", playlistID, videoID, err)
			tracker.Enqueue(videoID)
			continue
		}

		if exists {
			tracker.MarkChecked(videoID, now)
			continue
		}

		lastChecked, ok := tracker.LastChecked(videoID)
		if ok && now.Sub(lastChecked) < e.opts.GraceWindow {
			// Absent but still inside the grace window; keep waiting
			tracker.Enqueue(videoID)
			continue
		}

		if err := e.store.Remove(ctx, playlistID, videoID); err != nil {
			logger.Errorf("Playlist '%s': failed to remove video '%s': %v", playlistID, videoID, err)
			tracker.Enqueue(videoID)
			continue
		}
		tracker.Forget(videoID)
		logger.Infof("Playlist '%s': removed video '%s' after confirmed absence", playlistID, videoID)
	}
}

// updateMarkers persists the conditional-fetch markers and fingerprint
// from a fetched page, plus any extra mutation supplied by the caller.
func (e *Engine) updateMarkers(
	ctx context.Context,
	playlistID string,
	page *feed.Page,
	extra func(*status.PlaylistSyncState),
) {
	now := e.now()
	_, err := e.states.UpdateStateAtomically(ctx, playlistID, func(s *status.PlaylistSyncState) bool {
		if page.ETag != "" {
			s.ETag = page.ETag
		}
		if page.LastModified != "" {
			s.LastModified = page.LastModified
		}
		if !page.NotModified {
			ids := make([]string, 0, len(page.Items))
			for _, item := range page.Items {
				ids = append(ids, item.VideoID)
			}
			s.Fingerprint = Fingerprint(ids)
			s.LastFingerprintAt = &now
		}
		if extra != nil {
			extra(s)
		}
		return true
	})
	if err != nil {
		logger.Errorf("Playlist '%s': failed to update sync markers: %v", playlistID, err)
	}
}

// recordResult stores the run's outcome as the playlist's LastSyncResult.
func (e *Engine) recordResult(ctx context.Context, playlistID string, result *status.LastSyncResult) error {
	_, err := e.states.UpdateStateAtomically(ctx, playlistID, func(s *status.PlaylistSyncState) bool {
		s.LastSyncResult = result
		return true
	})
	return err
}

// fanOut triggers downstream notifications and CDN purges for the changed
// set. Both are best effort relative to the sync result.
func (e *Engine) fanOut(ctx context.Context, playlistID string, changedIDs []string) {
	if e.notifier != nil {
		e.notifier.NotifyChanged(ctx, changedIDs)
	}

	if e.purger != nil {
		tags := make([]string, 0, len(changedIDs)+1)
		tags = append(tags, "playlist-"+playlistID)
		for _, id := range changedIDs {
			tags = append(tags, "video-"+id)
		}
		if err := e.purger.Purge(ctx, tags); err != nil {
			logger.Warnf("Playlist '%s': CDN purge failed: %v", playlistID, err)
		}
	}
}

func (e *Engine) failedResult(format string, args ...any) *status.LastSyncResult {
	return &status.LastSyncResult{
		Error: fmt.Sprintf(format, args...),
		At:    e.now(),
	}
}

func (e *Engine) trackerFor(playlistID string) *IdleTracker {
	e.idleMu.Lock()
	defer e.idleMu.Unlock()

	tracker, ok := e.trackers[playlistID]
	if !ok {
		tracker = NewIdleTracker()
		e.trackers[playlistID] = tracker
	}
	return tracker
}
