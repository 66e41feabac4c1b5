package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_state_persistence.go -package=mocks -source=persistence.go StatePersistence

const (
	// StateFileName is the name of the per-playlist state file
	StateFileName = "state.json"
)

// StatePersistence defines the interface for playlist sync state persistence
type StatePersistence interface {
	// SaveState saves the sync state to persistent storage for a specific playlist
	SaveState(ctx context.Context, playlistID string, state *PlaylistSyncState) error

	// LoadState loads the sync state from persistent storage for a specific playlist.
	// Returns an empty PlaylistSyncState if no state exists yet (first run).
	LoadState(ctx context.Context, playlistID string) (*PlaylistSyncState, error)

	// LoadAllStates loads sync state for all playlists
	LoadAllStates(ctx context.Context) (map[string]*PlaylistSyncState, error)
}

// fileStatePersistence implements StatePersistence using the local filesystem
type fileStatePersistence struct {
	basePath string
}

// NewFileStatePersistence creates a new file-based state persistence.
// basePath is the base directory where per-playlist state files are stored.
func NewFileStatePersistence(basePath string) StatePersistence {
	return &fileStatePersistence{
		basePath: basePath,
	}
}

// SaveState saves the sync state to a JSON file in a playlist-specific directory
func (f *fileStatePersistence) SaveState(_ context.Context, playlistID string, state *PlaylistSyncState) error {
	playlistDir := filepath.Join(f.basePath, playlistID)
	if err := os.MkdirAll(playlistDir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory for playlist '%s': %w", playlistID, err)
	}

	filePath := filepath.Join(playlistDir, StateFileName)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state for playlist '%s': %w", playlistID, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary state file for playlist '%s': %w", playlistID, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file for playlist '%s': %w", playlistID, err)
	}

	return nil
}

// LoadState loads the sync state from a JSON file for a specific playlist.
// Returns an empty PlaylistSyncState if the file doesn't exist.
func (f *fileStatePersistence) LoadState(_ context.Context, playlistID string) (*PlaylistSyncState, error) {
	filePath := filepath.Join(f.basePath, playlistID, StateFileName)

	// #nosec G304 -- filePath is constructed from trusted internal sources (basePath + playlistID)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No state yet - this is OK for first run
			return &PlaylistSyncState{PlaylistID: playlistID}, nil
		}
		return nil, fmt.Errorf("failed to read state file for playlist '%s': %w", playlistID, err)
	}

	var state PlaylistSyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state for playlist '%s': %w", playlistID, err)
	}

	return &state, nil
}

// LoadAllStates loads sync state for all playlists found under the base path
func (f *fileStatePersistence) LoadAllStates(ctx context.Context) (map[string]*PlaylistSyncState, error) {
	result := make(map[string]*PlaylistSyncState)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		playlistID := entry.Name()
		state, err := f.LoadState(ctx, playlistID)
		if err != nil {
			// Skip unreadable entries so one corrupt file does not hide
			// the rest of the playlists
			continue
		}

		result[playlistID] = state
	}

	return result, nil
}
