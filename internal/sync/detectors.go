package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/chapterline/playlist-sync-server/internal/feed"
	"github.com/chapterline/playlist-sync-server/internal/status"
)

// Sync reason constants
const (
	// ReasonNoPriorState means the playlist has never been synced
	ReasonNoPriorState = "no-prior-state"

	// ReasonNotModified means the upstream answered 304 to a conditional fetch
	ReasonNotModified = "upstream-not-modified"

	// ReasonMarkersChanged means a conditional-fetch marker differs
	ReasonMarkersChanged = "conditional-markers-changed"

	// ReasonFingerprintChanged means the item-set fingerprint differs
	ReasonFingerprintChanged = "fingerprint-changed"

	// ReasonUpToDate means no change was detected
	ReasonUpToDate = "up-to-date"
)

// Fingerprint computes a stable digest over a set of item identifiers.
// The digest is order-insensitive (a reordering of an unchanged set
// yields the same value) but sensitive to membership changes.
func Fingerprint(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// ChangeDetector decides whether a fetched feed page represents a change
// relative to the stored sync state.
type ChangeDetector struct{}

// NewChangeDetector creates a ChangeDetector.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// ShouldSync reports whether a full diff/apply pass is needed, with a
// reason for logging. Priority order: conditional-fetch markers are
// authoritative when present on both sides; the item-set fingerprint is
// the fallback; a playlist with no prior state always syncs.
func (*ChangeDetector) ShouldSync(state *status.PlaylistSyncState, page *feed.Page) (bool, string) {
	if page.NotModified {
		return false, ReasonNotModified
	}

	if state.ETag == "" && state.LastModified == "" && state.Fingerprint == "" {
		return true, ReasonNoPriorState
	}

	etagUsable := state.ETag != "" && page.ETag != ""
	lastModUsable := state.LastModified != "" && page.LastModified != ""

	if etagUsable && state.ETag != page.ETag {
		return true, ReasonMarkersChanged
	}
	if lastModUsable && state.LastModified != page.LastModified {
		return true, ReasonMarkersChanged
	}
	if etagUsable || lastModUsable {
		// Markers present and equal
		return false, ReasonUpToDate
	}

	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.VideoID)
	}
	if Fingerprint(ids) != state.Fingerprint {
		return true, ReasonFingerprintChanged
	}

	return false, ReasonUpToDate
}
