package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/logger"
	"github.com/chapterline/playlist-sync-server/internal/status"
)

type fileStateService struct {
	persistence status.StatePersistence

	// Thread-safe state management (per-playlist)
	mu           sync.RWMutex
	cachedStates map[string]*status.PlaylistSyncState
}

// NewFileStateService creates a new file-based playlist state service.
//
// Atomicity of UpdateStateAtomically is provided by an in-process mutex
// only. When several server processes share the same data directory the
// lease degrades to at-most-one-in-practice rather than a guarantee; the
// database backend is the one with cross-process check-and-set.
func NewFileStateService(persistence status.StatePersistence) PlaylistStateService {
	return &fileStateService{
		persistence:  persistence,
		cachedStates: make(map[string]*status.PlaylistSyncState),
	}
}

func (f *fileStateService) Initialize(ctx context.Context, playlists []config.PlaylistConfig) error {
	for _, pl := range playlists {
		f.loadOrInitializeState(ctx, pl.ID)
	}
	return nil
}

func (f *fileStateService) ListStates(_ context.Context) (map[string]*status.PlaylistSyncState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	// Return deep copies to prevent external modification
	result := make(map[string]*status.PlaylistSyncState)
	for id, state := range f.cachedStates {
		if state != nil {
			stateCopy := *state
			result[id] = &stateCopy
		}
	}
	return result, nil
}

func (f *fileStateService) GetState(_ context.Context, playlistID string) (*status.PlaylistSyncState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	state, exists := f.cachedStates[playlistID]
	if !exists || state == nil {
		return nil, ErrPlaylistNotFound
	}
	stateCopy := *state
	return &stateCopy, nil
}

func (f *fileStateService) UpdateState(ctx context.Context, playlistID string, state *status.PlaylistSyncState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.persistence.SaveState(ctx, playlistID, state); err != nil {
		return err
	}
	f.cachedStates[playlistID] = state
	return nil
}

func (f *fileStateService) UpdateStateAtomically(
	ctx context.Context,
	playlistID string,
	testAndUpdateFn func(state *status.PlaylistSyncState) bool,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, exists := f.cachedStates[playlistID]
	if !exists || state == nil {
		return false, fmt.Errorf("%w: %s", ErrPlaylistNotFound, playlistID)
	}

	shouldUpdate := testAndUpdateFn(state)
	if shouldUpdate {
		if err := f.persistence.SaveState(ctx, playlistID, state); err != nil {
			return false, err
		}
		f.cachedStates[playlistID] = state
	}
	return shouldUpdate, nil
}

func (f *fileStateService) loadOrInitializeState(ctx context.Context, playlistID string) {
	state, err := f.persistence.LoadState(ctx, playlistID)
	if err != nil {
		logger.Warnf("Playlist '%s': failed to load sync state, initializing with defaults: %v", playlistID, err)
		state = &status.PlaylistSyncState{PlaylistID: playlistID}
	}

	// A state left with syncInProgress set means the previous run was
	// interrupted. The lease expiry makes it acquirable again, so no
	// reset is needed here.
	if state.SyncInProgress {
		logger.Warnf("Playlist '%s': previous sync was interrupted, lease expires at %v",
			playlistID, state.SyncLeaseUntil)
	}

	if state.LastSyncResult != nil {
		logger.Infof("Playlist '%s': loaded sync state, last sync at %s, %d items",
			playlistID, state.LastSyncResult.At.Format(time.RFC3339), state.ItemCount)
	} else {
		logger.Infof("Playlist '%s': no previous sync", playlistID)
	}

	f.mu.Lock()
	f.cachedStates[playlistID] = state
	f.mu.Unlock()
}
