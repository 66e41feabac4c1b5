package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleTrackerEnqueueDequeue(t *testing.T) {
	t.Parallel()

	tracker := NewIdleTracker()

	tracker.Enqueue("a")
	tracker.Enqueue("b")
	tracker.Enqueue("c")
	assert.Equal(t, 3, tracker.QueueLen())

	batch := tracker.DequeueBatch(2)
	assert.Equal(t, []string{"a", "b"}, batch, "oldest first")
	assert.Equal(t, 1, tracker.QueueLen())

	batch = tracker.DequeueBatch(10)
	assert.Equal(t, []string{"c"}, batch)
	assert.Nil(t, tracker.DequeueBatch(5))
}

func TestIdleTrackerEnqueueIsNoOpWhenQueued(t *testing.T) {
	t.Parallel()

	tracker := NewIdleTracker()

	tracker.Enqueue("a")
	tracker.Enqueue("b")
	tracker.Enqueue("a")

	assert.Equal(t, 2, tracker.QueueLen())
	assert.Equal(t, []string{"a", "b"}, tracker.DequeueBatch(10),
		"re-enqueueing a queued item must not move it to the back")
}

func TestIdleTrackerDequeuedItemCanBeRequeued(t *testing.T) {
	t.Parallel()

	tracker := NewIdleTracker()

	tracker.Enqueue("a")
	tracker.DequeueBatch(1)
	tracker.Enqueue("a")

	assert.Equal(t, 1, tracker.QueueLen())
}

func TestIdleTrackerMarkChecked(t *testing.T) {
	t.Parallel()

	tracker := NewIdleTracker()
	ts := time.Now()

	tracker.Enqueue("a")
	tracker.Enqueue("b")
	tracker.MarkChecked("a", ts)

	got, ok := tracker.LastChecked("a")
	assert.True(t, ok)
	assert.True(t, got.Equal(ts))
	assert.Equal(t, []string{"b"}, tracker.DequeueBatch(10),
		"a checked item leaves the re-check queue")

	_, ok = tracker.LastChecked("unknown")
	assert.False(t, ok)
}

func TestIdleTrackerForget(t *testing.T) {
	t.Parallel()

	tracker := NewIdleTracker()

	tracker.MarkChecked("a", time.Now())
	tracker.Enqueue("a")
	tracker.Forget("a")

	_, ok := tracker.LastChecked("a")
	assert.False(t, ok)
	assert.Equal(t, 0, tracker.QueueLen())
}
