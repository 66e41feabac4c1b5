package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/status"
	pkgsync "github.com/chapterline/playlist-sync-server/internal/sync"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
)

type fakeRunner struct {
	mu       sync.Mutex
	runs     []string
	rechecks []string
	result   *status.LastSyncResult
	err      error
}

func (f *fakeRunner) Run(_ context.Context, playlistID string) (*status.LastSyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, playlistID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &status.LastSyncResult{At: time.Now()}, nil
}

func (f *fakeRunner) RecheckIdle(_ context.Context, playlistID string, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rechecks = append(f.rechecks, playlistID)
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func (f *fakeRunner) recheckCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rechecks)
}

func newTestConfig(playlistIDs ...string) *config.Config {
	cfg := &config.Config{
		Sync: config.SyncConfig{
			HotInterval:  "2m",
			SlowInterval: "30m",
		},
	}
	for _, id := range playlistIDs {
		cfg.Playlists = append(cfg.Playlists, config.PlaylistConfig{ID: id})
	}
	return cfg
}

func newTestStates(t *testing.T, cfg *config.Config) state.PlaylistStateService {
	t.Helper()

	svc := state.NewFileStateService(status.NewFileStatePersistence(t.TempDir()))
	require.NoError(t, svc.Initialize(context.Background(), cfg.Playlists))
	return svc
}

func TestCoordinatorCadence(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("PL1")
	states := newTestStates(t, cfg)
	runner := &fakeRunner{}

	c := New(runner, states, cfg).(*defaultCoordinator)

	current := time.Now()
	c.now = func() time.Time { return current }
	ctx := context.Background()

	// First check always fires; an immediate second one does not.
	assert.True(t, c.isDue(ctx, "PL1"))
	assert.False(t, c.isDue(ctx, "PL1"))

	// Outside the active window the slow cadence applies.
	current = current.Add(5 * time.Minute)
	assert.False(t, c.isDue(ctx, "PL1"), "hot cadence must not apply without an active window")

	current = current.Add(30 * time.Minute)
	assert.True(t, c.isDue(ctx, "PL1"))
}

func TestCoordinatorActiveWindowUsesHotCadence(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("PL1")
	states := newTestStates(t, cfg)
	runner := &fakeRunner{}

	c := New(runner, states, cfg).(*defaultCoordinator)

	current := time.Now()
	c.now = func() time.Time { return current }
	ctx := context.Background()

	until := current.Add(time.Hour)
	_, err := states.UpdateStateAtomically(ctx, "PL1", func(s *status.PlaylistSyncState) bool {
		s.ActiveWindowUntil = &until
		return true
	})
	require.NoError(t, err)

	require.True(t, c.isDue(ctx, "PL1"))

	// Hot cadence: due again after just over the hot interval.
	current = current.Add(3 * time.Minute)
	assert.True(t, c.isDue(ctx, "PL1"))

	// Past the window the playlist reverts to the slow cadence.
	current = current.Add(2 * time.Hour)
	require.True(t, c.isDue(ctx, "PL1"))
	current = current.Add(3 * time.Minute)
	assert.False(t, c.isDue(ctx, "PL1"))
}

func TestCoordinatorProcessDuePlaylists(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("PL1", "PL2")
	states := newTestStates(t, cfg)
	runner := &fakeRunner{}

	c := New(runner, states, cfg).(*defaultCoordinator)
	ctx := context.Background()

	c.processDuePlaylists(ctx)

	assert.ElementsMatch(t, []string{"PL1", "PL2"}, runner.runs)
	assert.ElementsMatch(t, []string{"PL1", "PL2"}, runner.rechecks,
		"idle re-checks run for every playlist, due or not")

	// An immediate second pass syncs nothing but still drives re-checks.
	c.processDuePlaylists(ctx)
	assert.Equal(t, 2, runner.runCount())
	assert.Equal(t, 4, runner.recheckCount())
}

func TestCoordinatorLeaseHeldIsSilentSkip(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("PL1")
	states := newTestStates(t, cfg)
	runner := &fakeRunner{err: pkgsync.ErrLeaseHeld}

	c := New(runner, states, cfg).(*defaultCoordinator)

	// A denied lease is routine contention; must not panic or escalate.
	c.syncPlaylist(context.Background(), "PL1")
	assert.Equal(t, 1, runner.runCount())
}

func TestCoordinatorTickIntervalJitterBounds(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("PL1")
	states := newTestStates(t, cfg)

	c := New(&fakeRunner{}, states, cfg).(*defaultCoordinator)

	base := cfg.HotInterval()
	for i := 0; i < 50; i++ {
		interval := c.tickInterval()
		assert.GreaterOrEqual(t, interval, base-base/10)
		assert.LessOrEqual(t, interval, base+base/10)
	}
}

func TestCoordinatorStartStop(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("PL1")
	cfg.Sync.HotInterval = "10ms"
	cfg.Sync.SlowInterval = "10ms"
	states := newTestStates(t, cfg)
	runner := &fakeRunner{}

	c := New(runner, states, cfg)

	started := make(chan error, 1)
	go func() {
		started <- c.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		return runner.runCount() >= 1
	}, 2*time.Second, 5*time.Millisecond, "coordinator should run an initial pass")

	require.NoError(t, c.Stop())

	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop in time")
	}
}
