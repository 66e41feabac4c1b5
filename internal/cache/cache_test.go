package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	t.Parallel()

	c := New(4, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "value-a")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "value-a", got)
}

func TestCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	c := New(4, time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("a", "value-a")

	current = current.Add(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok, "entry should still be live just before the TTL")

	current = current.Add(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should expire once the TTL has passed")
	assert.Equal(t, 0, c.Len(), "expired entry is removed on access")
}

func TestCacheReadsDoNotExtendLifetime(t *testing.T) {
	t.Parallel()

	c := New(4, time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("a", "value-a")

	// Repeated reads must not reset the entry's age.
	for i := 0; i < 10; i++ {
		current = current.Add(10 * time.Second)
		c.Get("a")
	}

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheEvictsOldestByInsertion(t *testing.T) {
	t.Parallel()

	c := New(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	// Reading "a" must not save it from eviction.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("a")
	assert.False(t, ok, "oldest inserted entry is evicted regardless of reads")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheOverwriteRefreshesPosition(t *testing.T) {
	t.Parallel()

	c := New(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b became the oldest after a was rewritten")

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, got)
}

func TestCacheDeleteAndClear(t *testing.T) {
	t.Parallel()

	c := New(4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCacheGetOrLoad(t *testing.T) {
	t.Parallel()

	c := New(4, time.Minute)

	loads := 0
	load := func() (any, error) {
		loads++
		return "loaded", nil
	}

	got, err := c.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", got)

	got, err = c.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", got)
	assert.Equal(t, 1, loads, "second read should be served from cache")
}

func TestCacheGetOrLoadError(t *testing.T) {
	t.Parallel()

	c := New(4, time.Minute)

	wantErr := errors.New("backend down")
	_, err := c.GetOrLoad("a", func() (any, error) { return nil, wantErr })
	require.ErrorIs(t, err, wantErr)

	// A failed load must not be cached.
	assert.Equal(t, 0, c.Len())
}
