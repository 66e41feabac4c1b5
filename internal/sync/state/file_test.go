package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/status"
)

func newTestService(t *testing.T, playlists ...string) PlaylistStateService {
	t.Helper()

	persistence := status.NewFileStatePersistence(t.TempDir())
	svc := NewFileStateService(persistence)

	configs := make([]config.PlaylistConfig, 0, len(playlists))
	for _, id := range playlists {
		configs = append(configs, config.PlaylistConfig{ID: id})
	}
	require.NoError(t, svc.Initialize(context.Background(), configs))

	return svc
}

func TestFileStateServiceGetState(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "PL1")
	ctx := context.Background()

	state, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "PL1", state.PlaylistID)
	assert.False(t, state.SyncInProgress)

	_, err = svc.GetState(ctx, "PL-unknown")
	require.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestFileStateServiceGetStateReturnsCopy(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "PL1")
	ctx := context.Background()

	state, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	state.ETag = "mutated"

	fresh, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Empty(t, fresh.ETag, "mutating a returned state must not affect the stored one")
}

func TestFileStateServiceUpdateState(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "PL1")
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, svc.UpdateState(ctx, "PL1", &status.PlaylistSyncState{
		PlaylistID: "PL1",
		ETag:       `"v3"`,
		ItemCount:  7,
		LastSyncResult: &status.LastSyncResult{
			VideosAdded: 7,
			At:          now,
		},
	}))

	state, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, `"v3"`, state.ETag)
	assert.Equal(t, 7, state.ItemCount)
	require.NotNil(t, state.LastSyncResult)
	assert.Equal(t, 7, state.LastSyncResult.VideosAdded)
}

func TestFileStateServiceStateSurvivesRestart(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	persistence := status.NewFileStatePersistence(dataDir)
	ctx := context.Background()
	playlists := []config.PlaylistConfig{{ID: "PL1"}}

	svc := NewFileStateService(persistence)
	require.NoError(t, svc.Initialize(ctx, playlists))
	require.NoError(t, svc.UpdateState(ctx, "PL1", &status.PlaylistSyncState{
		PlaylistID:  "PL1",
		Fingerprint: "abc123",
		ItemCount:   3,
	}))

	// A new service over the same directory sees the persisted state.
	restarted := NewFileStateService(status.NewFileStatePersistence(dataDir))
	require.NoError(t, restarted.Initialize(ctx, playlists))

	state, err := restarted.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", state.Fingerprint)
	assert.Equal(t, 3, state.ItemCount)
}

func TestFileStateServiceUpdateStateAtomically(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "PL1")
	ctx := context.Background()

	updated, err := svc.UpdateStateAtomically(ctx, "PL1", func(state *status.PlaylistSyncState) bool {
		state.ItemCount = 5
		return true
	})
	require.NoError(t, err)
	assert.True(t, updated)

	state, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.ItemCount)

	// A declined update leaves the state untouched.
	updated, err = svc.UpdateStateAtomically(ctx, "PL1", func(state *status.PlaylistSyncState) bool {
		state.ItemCount = 99
		return false
	})
	require.NoError(t, err)
	assert.False(t, updated)

	state, err = svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.ItemCount)

	_, err = svc.UpdateStateAtomically(ctx, "PL-unknown", func(*status.PlaylistSyncState) bool {
		return true
	})
	require.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestFileStateServiceAtomicUpdatesSerialize(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "PL1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateStateAtomically(ctx, "PL1", func(state *status.PlaylistSyncState) bool {
				state.ItemCount++
				return true
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, 20, state.ItemCount, "every increment must be observed")
}

func TestFileStateServiceListStates(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "PL1", "PL2")

	states, err := svc.ListStates(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, 2)
	assert.Contains(t, states, "PL1")
	assert.Contains(t, states, "PL2")
}
