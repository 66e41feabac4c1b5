package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory VideoStore. It backs file-mode deployments
// and tests; contents do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	videos map[string]map[string]Video
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos: make(map[string]map[string]Video),
	}
}

// Upsert inserts or updates one video
func (m *MemoryStore) Upsert(_ context.Context, video Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	playlist, ok := m.videos[video.PlaylistID]
	if !ok {
		playlist = make(map[string]Video)
		m.videos[video.PlaylistID] = playlist
	}

	if existing, ok := playlist[video.VideoID]; ok && video.FirstSeenAt.IsZero() {
		video.FirstSeenAt = existing.FirstSeenAt
	}
	playlist[video.VideoID] = video

	return nil
}

// Remove deletes one video. Removing an absent video is not an error.
func (m *MemoryStore) Remove(_ context.Context, playlistID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if playlist, ok := m.videos[playlistID]; ok {
		delete(playlist, videoID)
	}

	return nil
}

// List returns all videos of a playlist ordered by position
func (m *MemoryStore) List(_ context.Context, playlistID string) ([]Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	playlist := m.videos[playlistID]
	result := make([]Video, 0, len(playlist))
	for _, v := range playlist {
		result = append(result, v)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].VideoID < result[j].VideoID
	})

	return result, nil
}

// Count returns the number of stored videos for a playlist
func (m *MemoryStore) Count(_ context.Context, playlistID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.videos[playlistID]), nil
}
