// Package status provides playlist sync state tracking and persistence.
package status

import "time"

// PlaylistSyncState represents the persisted synchronization state of a
// single tracked playlist. It is created lazily on first encounter of a
// playlist identifier and survives across runs.
type PlaylistSyncState struct {
	// PlaylistID is the upstream identifier of the tracked playlist
	PlaylistID string `json:"playlistId"`

	// ETag is the opaque conditional-fetch marker from the last
	// successful feed response, empty until first successful fetch
	ETag string `json:"etag,omitempty"`

	// LastModified is the Last-Modified header value from the last
	// successful feed response
	LastModified string `json:"lastModified,omitempty"`

	// Fingerprint is the digest of the feed's item-id set, used when
	// conditional-fetch markers are absent or untrustworthy
	Fingerprint string `json:"fingerprint,omitempty"`

	// LastFingerprintAt is the timestamp of the last fingerprint
	// computation; monotonically non-decreasing
	LastFingerprintAt *time.Time `json:"lastFingerprintAt,omitempty"`

	// SyncInProgress is true only while a lease is held for this
	// playlist. True implies SyncLeaseOwner and SyncLeaseUntil are set.
	SyncInProgress bool `json:"syncInProgress"`

	// SyncLeaseOwner identifies the process/run holding the lease.
	// Only the owner may release its own lease.
	SyncLeaseOwner string `json:"syncLeaseOwner,omitempty"`

	// SyncLeaseUntil is the absolute lease expiry instant. Once passed,
	// the lease is void regardless of SyncInProgress.
	SyncLeaseUntil *time.Time `json:"syncLeaseUntil,omitempty"`

	// LastSyncResult is the outcome of the most recently completed run,
	// never the in-progress one
	LastSyncResult *LastSyncResult `json:"lastSyncResult,omitempty"`

	// ItemCount is the number of items known for this playlist after the
	// last successful sync, used for drift/verification checks
	ItemCount int `json:"itemCount"`

	// ActiveWindowUntil marks the instant until which the playlist is
	// considered hot and eligible for more frequent polling
	ActiveWindowUntil *time.Time `json:"activeWindowUntil,omitempty"`
}

// LeaseExpired reports whether the stored lease, if any, has passed its
// expiry at the given instant. A missing expiry counts as expired.
func (s *PlaylistSyncState) LeaseExpired(now time.Time) bool {
	return s.SyncLeaseUntil == nil || !now.Before(*s.SyncLeaseUntil)
}

// LeaseHeld reports whether a live lease is held at the given instant.
func (s *PlaylistSyncState) LeaseHeld(now time.Time) bool {
	return s.SyncInProgress && !s.LeaseExpired(now)
}

// LastSyncResult is an immutable snapshot of one completed sync run. It
// replaces the previous snapshot on each completed run.
type LastSyncResult struct {
	VideosAdded   int `json:"videosAdded"`
	VideosUpdated int `json:"videosUpdated"`
	VideosRemoved int `json:"videosRemoved"`

	// Error is set only when the run failed. An empty Error means
	// success regardless of counts; a run with zero changes is a
	// successful no-op.
	Error string `json:"error,omitempty"`

	// At is the completion timestamp
	At time.Time `json:"at"`
}

// Succeeded reports whether the run completed without error.
func (r *LastSyncResult) Succeeded() bool {
	return r != nil && r.Error == ""
}

// DisplayedPlaylist is a read-only projection of a playlist for UI
// selection. It carries no sync state.
type DisplayedPlaylist struct {
	PlaylistID string `json:"playlistId"`
	Title      string `json:"title"`
}
