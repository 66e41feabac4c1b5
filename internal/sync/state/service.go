// Package state contains logic for managing playlist sync state which the server persists.
package state

import (
	"context"
	"errors"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/status"
)

// ErrPlaylistNotFound is returned when a playlist can't be found.
var ErrPlaylistNotFound = errors.New("playlist not found")

// PlaylistStateService provides methods for inspecting and mutating the
// sync state of tracked playlists.
//
//go:generate mockgen -destination=mocks/mock_playlist_state_service.go -package=mocks github.com/chapterline/playlist-sync-server/internal/sync/state PlaylistStateService
type PlaylistStateService interface {
	// Initialize populates the state store with the configured playlists.
	// It is intended to be called at application startup. Existing state
	// is loaded, not overwritten; unknown playlists get fresh state.
	Initialize(ctx context.Context, playlists []config.PlaylistConfig) error
	// ListStates lists the sync state of all tracked playlists.
	ListStates(ctx context.Context) (map[string]*status.PlaylistSyncState, error)
	// GetState returns the sync state of the named playlist.
	GetState(ctx context.Context, playlistID string) (*status.PlaylistSyncState, error)
	// UpdateState overwrites the state of the named playlist.
	UpdateState(ctx context.Context, playlistID string, state *status.PlaylistSyncState) error
	// UpdateStateAtomically carries out an atomic update on a playlist's
	// state. Implementations fetch the current state, apply testAndUpdateFn
	// to it, and persist the state if the function reports a mutation - all
	// as a single atomic action. The function's boolean is returned to the
	// caller. This is the check-and-set primitive the lease manager relies
	// on: under concurrent callers at most one mutation wins per state read.
	UpdateStateAtomically(
		ctx context.Context,
		playlistID string,
		testAndUpdateFn func(state *status.PlaylistSyncState) bool,
	) (bool, error)
}
