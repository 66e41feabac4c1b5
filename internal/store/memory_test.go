package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsertAndList(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Upsert(ctx, Video{
		PlaylistID: "PL1", VideoID: "vid-2", Title: "Second", Position: 1,
		FirstSeenAt: now, LastSeenAt: now,
	}))
	require.NoError(t, s.Upsert(ctx, Video{
		PlaylistID: "PL1", VideoID: "vid-1", Title: "First", Position: 0,
		FirstSeenAt: now, LastSeenAt: now,
	}))

	videos, err := s.List(ctx, "PL1")
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "vid-1", videos[0].VideoID, "listing is ordered by position")
	assert.Equal(t, "vid-2", videos[1].VideoID)

	count, err := s.Count(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStoreUpsertUpdatesExisting(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	firstSeen := time.Now().Add(-time.Hour)

	require.NoError(t, s.Upsert(ctx, Video{
		PlaylistID: "PL1", VideoID: "vid-1", Title: "Old Title",
		FirstSeenAt: firstSeen, LastSeenAt: firstSeen,
	}))
	require.NoError(t, s.Upsert(ctx, Video{
		PlaylistID: "PL1", VideoID: "vid-1", Title: "New Title",
		LastSeenAt: time.Now(),
	}))

	videos, err := s.List(ctx, "PL1")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "New Title", videos[0].Title)
	assert.True(t, videos[0].FirstSeenAt.Equal(firstSeen),
		"FirstSeenAt is preserved when the update does not set it")
}

func TestMemoryStoreRemove(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Video{PlaylistID: "PL1", VideoID: "vid-1"}))
	require.NoError(t, s.Remove(ctx, "PL1", "vid-1"))

	count, err := s.Count(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Removing an absent video is not an error.
	require.NoError(t, s.Remove(ctx, "PL1", "vid-1"))
	require.NoError(t, s.Remove(ctx, "PL-unknown", "vid-1"))
}

func TestMemoryStorePlaylistsAreIsolated(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Video{PlaylistID: "PL1", VideoID: "vid-1"}))
	require.NoError(t, s.Upsert(ctx, Video{PlaylistID: "PL2", VideoID: "vid-1"}))

	require.NoError(t, s.Remove(ctx, "PL1", "vid-1"))

	count, err := s.Count(ctx, "PL2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVideoContentEquals(t *testing.T) {
	t.Parallel()

	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	base := Video{
		PlaylistID: "PL1", VideoID: "vid-1", Title: "Episode 1",
		Description: "desc", Position: 3, PublishedAt: published,
	}

	same := base
	same.LastSeenAt = time.Now()
	assert.True(t, base.ContentEquals(&same), "bookkeeping timestamps are not content")

	retitled := base
	retitled.Title = "Episode 1 (remastered)"
	assert.False(t, base.ContentEquals(&retitled))

	moved := base
	moved.Position = 0
	assert.False(t, base.ContentEquals(&moved))
}
