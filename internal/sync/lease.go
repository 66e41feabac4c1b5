package sync

import (
	"context"
	"time"

	"github.com/chapterline/playlist-sync-server/internal/status"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
)

// LeaseManager grants mutually-exclusive, time-bounded ownership of the
// sync operation for a playlist. It is a check-and-set over the shared
// state store, not an in-process lock: callers may be separate server
// instances. An expired lease is treated as absent, so a crashed owner
// cannot wedge a playlist past the TTL.
type LeaseManager struct {
	states state.PlaylistStateService

	// now is swappable for tests
	now func() time.Time
}

// NewLeaseManager creates a lease manager over the given state service.
func NewLeaseManager(states state.PlaylistStateService) *LeaseManager {
	return &LeaseManager{
		states: states,
		now:    time.Now,
	}
}

// TryAcquire attempts to take the sync lease for a playlist. The lease is
// granted iff no live lease is held; a held lease whose expiry has passed
// counts as absent. There is no queueing: a denied acquire means the
// caller skips this cycle.
func (m *LeaseManager) TryAcquire(ctx context.Context, playlistID, ownerID string, ttl time.Duration) (bool, error) {
	now := m.now()
	return m.states.UpdateStateAtomically(ctx, playlistID, func(s *status.PlaylistSyncState) bool {
		if s.LeaseHeld(now) {
			return false
		}

		until := now.Add(ttl)
		s.SyncInProgress = true
		s.SyncLeaseOwner = ownerID
		s.SyncLeaseUntil = &until
		return true
	})
}

// Release clears the lease fields only if ownerID matches the current
// holder. A late release from an expired owner must not stomp a newer
// owner's lease; it is a no-op reported as false.
func (m *LeaseManager) Release(ctx context.Context, playlistID, ownerID string) (bool, error) {
	return m.states.UpdateStateAtomically(ctx, playlistID, func(s *status.PlaylistSyncState) bool {
		if s.SyncLeaseOwner != ownerID {
			return false
		}

		s.SyncInProgress = false
		s.SyncLeaseOwner = ""
		s.SyncLeaseUntil = nil
		return true
	})
}
