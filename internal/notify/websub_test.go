package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyChangedPublishesEachVideo(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	topics := make(map[string]int)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "publish", r.PostForm.Get("hub.mode"))
		assert.Equal(t, r.PostForm.Get("hub.url"), r.PostForm.Get("hub.topic"))

		mu.Lock()
		topics[r.PostForm.Get("hub.topic")]++
		mu.Unlock()

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewWebSubNotifier(Config{
		HubURL:        server.URL,
		TopicTemplate: "https://example.com/articles/%s/feed.xml",
	})

	notifier.NotifyChanged(context.Background(), []string{"vid-1", "vid-2", "vid-3"})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, topics, 3)
	assert.Equal(t, 1, topics["https://example.com/articles/vid-1/feed.xml"])
	assert.Equal(t, 1, topics["https://example.com/articles/vid-2/feed.xml"])
	assert.Equal(t, 1, topics["https://example.com/articles/vid-3/feed.xml"])
}

func TestNotifyChangedIsolatesFailures(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var received []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		topic := r.PostForm.Get("hub.topic")

		mu.Lock()
		received = append(received, topic)
		mu.Unlock()

		// One topic fails; the rest must still be delivered.
		if topic == "https://example.com/articles/vid-2/feed.xml" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebSubNotifier(Config{
		HubURL:        server.URL,
		TopicTemplate: "https://example.com/articles/%s/feed.xml",
		MaxConcurrent: 1,
	})

	// Must not panic, return, or abort: failures are logged only.
	notifier.NotifyChanged(context.Background(), []string{"vid-1", "vid-2", "vid-3"})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 3, "a failed item must not abort the batch")
}

func TestNotifyChangedNoRetry(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	notifier := NewWebSubNotifier(Config{
		HubURL:        server.URL,
		TopicTemplate: "https://example.com/articles/%s/feed.xml",
	})

	notifier.NotifyChanged(context.Background(), []string{"vid-1"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "delivery is at-most-once, no retry")
}

func TestPublishBatchCollectsOutcomes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("hub.topic") == "https://example.com/articles/bad/feed.xml" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebSubNotifier(Config{
		HubURL:        server.URL,
		TopicTemplate: "https://example.com/articles/%s/feed.xml",
	})

	outcomes := notifier.publishBatch(context.Background(), []string{"good", "bad"})
	require.Len(t, outcomes, 2)

	byID := make(map[string]error)
	for _, o := range outcomes {
		byID[o.VideoID] = o.Err
	}
	assert.NoError(t, byID["good"])
	assert.Error(t, byID["bad"])
}
