package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/status"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
)

func newStateService(t *testing.T, playlistIDs ...string) state.PlaylistStateService {
	t.Helper()

	svc := state.NewFileStateService(status.NewFileStatePersistence(t.TempDir()))
	configs := make([]config.PlaylistConfig, 0, len(playlistIDs))
	for _, id := range playlistIDs {
		configs = append(configs, config.PlaylistConfig{ID: id})
	}
	require.NoError(t, svc.Initialize(context.Background(), configs))
	return svc
}

func TestLeaseManagerTryAcquire(t *testing.T) {
	t.Parallel()

	svc := newStateService(t, "PL1")
	leases := NewLeaseManager(svc)
	ctx := context.Background()

	granted, err := leases.TryAcquire(ctx, "PL1", "owner-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, granted)

	st, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.True(t, st.SyncInProgress)
	assert.Equal(t, "owner-1", st.SyncLeaseOwner)
	require.NotNil(t, st.SyncLeaseUntil)

	// A second acquire within the TTL window is denied.
	granted, err = leases.TryAcquire(ctx, "PL1", "owner-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, granted)

	// The denied acquire must not disturb the holder.
	st, err = svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", st.SyncLeaseOwner)
}

func TestLeaseManagerExpiredLeaseIsAcquirable(t *testing.T) {
	t.Parallel()

	svc := newStateService(t, "PL1")
	leases := NewLeaseManager(svc)
	ctx := context.Background()

	current := time.Now()
	leases.now = func() time.Time { return current }

	granted, err := leases.TryAcquire(ctx, "PL1", "owner-1", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	// Past the expiry, the lease is void regardless of syncInProgress.
	current = current.Add(2 * time.Minute)
	granted, err = leases.TryAcquire(ctx, "PL1", "owner-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, granted, "an expired lease must always be acquirable")

	st, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "owner-2", st.SyncLeaseOwner)
}

func TestLeaseManagerRelease(t *testing.T) {
	t.Parallel()

	svc := newStateService(t, "PL1")
	leases := NewLeaseManager(svc)
	ctx := context.Background()

	granted, err := leases.TryAcquire(ctx, "PL1", "owner-1", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	released, err := leases.Release(ctx, "PL1", "owner-1")
	require.NoError(t, err)
	assert.True(t, released)

	st, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.False(t, st.SyncInProgress)
	assert.Empty(t, st.SyncLeaseOwner)
	assert.Nil(t, st.SyncLeaseUntil)
}

func TestLeaseManagerStaleReleaseIsNoOp(t *testing.T) {
	t.Parallel()

	svc := newStateService(t, "PL1")
	leases := NewLeaseManager(svc)
	ctx := context.Background()

	current := time.Now()
	leases.now = func() time.Time { return current }

	granted, err := leases.TryAcquire(ctx, "PL1", "owner-1", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	// owner-1's lease expires and owner-2 takes over.
	current = current.Add(2 * time.Minute)
	granted, err = leases.TryAcquire(ctx, "PL1", "owner-2", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	// owner-1's late release must not clear owner-2's lease.
	released, err := leases.Release(ctx, "PL1", "owner-1")
	require.NoError(t, err)
	assert.False(t, released)

	st, err := svc.GetState(ctx, "PL1")
	require.NoError(t, err)
	assert.True(t, st.SyncInProgress)
	assert.Equal(t, "owner-2", st.SyncLeaseOwner)
}

func TestLeaseManagerSequentialAcquires(t *testing.T) {
	t.Parallel()

	svc := newStateService(t, "PL1")
	leases := NewLeaseManager(svc)
	ctx := context.Background()

	grantedCount := 0
	for i := 0; i < 5; i++ {
		granted, err := leases.TryAcquire(ctx, "PL1", "owner", time.Minute)
		require.NoError(t, err)
		if granted {
			grantedCount++
		}
	}

	assert.Equal(t, 1, grantedCount, "at most one grant per lease window")
}
