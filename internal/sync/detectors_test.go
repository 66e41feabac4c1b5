package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chapterline/playlist-sync-server/internal/feed"
	"github.com/chapterline/playlist-sync-server/internal/status"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	abc := Fingerprint([]string{"a", "b", "c"})
	cab := Fingerprint([]string{"c", "a", "b"})
	ab := Fingerprint([]string{"a", "b"})

	assert.Equal(t, abc, cab, "fingerprint must be order-insensitive")
	assert.NotEqual(t, abc, ab, "fingerprint must be membership-sensitive")
	assert.NotEmpty(t, Fingerprint(nil))
}

func TestFingerprintDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	ids := []string{"c", "a", "b"}
	Fingerprint(ids)
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func pageWithItems(ids ...string) *feed.Page {
	page := &feed.Page{}
	for _, id := range ids {
		page.Items = append(page.Items, feed.VideoItem{VideoID: id})
	}
	return page
}

func TestShouldSync(t *testing.T) {
	t.Parallel()

	detector := NewChangeDetector()

	tests := []struct {
		name       string
		state      *status.PlaylistSyncState
		page       *feed.Page
		wantSync   bool
		wantReason string
	}{
		{
			name:       "no prior state always syncs",
			state:      &status.PlaylistSyncState{PlaylistID: "PL1"},
			page:       pageWithItems("a"),
			wantSync:   true,
			wantReason: ReasonNoPriorState,
		},
		{
			name:       "not modified response short-circuits",
			state:      &status.PlaylistSyncState{PlaylistID: "PL1", ETag: `"E1"`},
			page:       &feed.Page{NotModified: true, ETag: `"E1"`},
			wantSync:   false,
			wantReason: ReasonNotModified,
		},
		{
			name:  "matching etag means no sync",
			state: &status.PlaylistSyncState{PlaylistID: "PL1", ETag: `"E1"`},
			page: func() *feed.Page {
				p := pageWithItems("a", "b")
				p.ETag = `"E1"`
				return p
			}(),
			wantSync:   false,
			wantReason: ReasonUpToDate,
		},
		{
			name:  "changed etag requires sync",
			state: &status.PlaylistSyncState{PlaylistID: "PL1", ETag: `"E1"`},
			page: func() *feed.Page {
				p := pageWithItems("a", "b")
				p.ETag = `"E2"`
				return p
			}(),
			wantSync:   true,
			wantReason: ReasonMarkersChanged,
		},
		{
			name: "changed last-modified requires sync even with matching etag",
			state: &status.PlaylistSyncState{
				PlaylistID: "PL1", ETag: `"E1"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT",
			},
			page: func() *feed.Page {
				p := pageWithItems("a")
				p.ETag = `"E1"`
				p.LastModified = "Tue, 02 Jan 2024 00:00:00 GMT"
				return p
			}(),
			wantSync:   true,
			wantReason: ReasonMarkersChanged,
		},
		{
			name: "fingerprint fallback when no markers usable",
			state: &status.PlaylistSyncState{
				PlaylistID:  "PL1",
				Fingerprint: Fingerprint([]string{"a", "b"}),
			},
			page:       pageWithItems("a", "b", "c"),
			wantSync:   true,
			wantReason: ReasonFingerprintChanged,
		},
		{
			name: "reordered unchanged set does not trigger sync",
			state: &status.PlaylistSyncState{
				PlaylistID:  "PL1",
				Fingerprint: Fingerprint([]string{"a", "b", "c"}),
			},
			page:       pageWithItems("c", "a", "b"),
			wantSync:   false,
			wantReason: ReasonUpToDate,
		},
		{
			name: "stored marker ignored when fresh response lacks one",
			state: &status.PlaylistSyncState{
				PlaylistID:  "PL1",
				ETag:        `"E1"`,
				Fingerprint: Fingerprint([]string{"a"}),
			},
			page:       pageWithItems("a", "b"),
			wantSync:   true,
			wantReason: ReasonFingerprintChanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotSync, gotReason := detector.ShouldSync(tt.state, tt.page)
			assert.Equal(t, tt.wantSync, gotSync)
			assert.Equal(t, tt.wantReason, gotReason)
		})
	}
}
