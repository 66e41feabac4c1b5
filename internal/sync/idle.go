package sync

import (
	"sync"
	"time"
)

// IdleTracker maintains per-item last-checked bookkeeping so items absent
// from the latest feed page can be confirmed removed rather than merely
// unseen. The queue is ordered by insertion with an O(1) membership test
// (slice paired with a companion set).
type IdleTracker struct {
	mu          sync.Mutex
	lastChecked map[string]time.Time
	order       []string
	queued      map[string]struct{}
}

// NewIdleTracker creates an empty tracker.
func NewIdleTracker() *IdleTracker {
	return &IdleTracker{
		lastChecked: make(map[string]time.Time),
		queued:      make(map[string]struct{}),
	}
}

// Enqueue appends itemID to the back of the re-check queue. Enqueueing an
// already-queued item is a no-op: the item keeps its original position so
// repeated absences cannot starve it of its re-check.
func (t *IdleTracker) Enqueue(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.queued[itemID]; ok {
		return
	}
	t.order = append(t.order, itemID)
	t.queued[itemID] = struct{}{}
}

// DequeueBatch pops up to n oldest queued ids for an out-of-band
// existence re-check.
func (t *IdleTracker) DequeueBatch(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n > len(t.order) {
		n = len(t.order)
	}
	if n <= 0 {
		return nil
	}

	batch := make([]string, n)
	copy(batch, t.order[:n])
	t.order = t.order[n:]
	for _, id := range batch {
		delete(t.queued, id)
	}

	return batch
}

// MarkChecked records that itemID was confirmed present at ts and removes
// it from the re-check queue if queued.
func (t *IdleTracker) MarkChecked(itemID string, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastChecked[itemID] = ts
	t.removeLocked(itemID)
}

// LastChecked returns the last instant itemID was confirmed present.
func (t *IdleTracker) LastChecked(itemID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts, ok := t.lastChecked[itemID]
	return ts, ok
}

// Forget drops all bookkeeping for itemID, used after the item has been
// finalized as removed.
func (t *IdleTracker) Forget(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.lastChecked, itemID)
	t.removeLocked(itemID)
}

// QueueLen returns the number of items awaiting a re-check.
func (t *IdleTracker) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

func (t *IdleTracker) removeLocked(itemID string) {
	if _, ok := t.queued[itemID]; !ok {
		return
	}
	delete(t.queued, itemID)
	for i, id := range t.order {
		if id == itemID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}
