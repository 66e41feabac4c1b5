// Package store provides persistence for playlist video items.
package store

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go VideoStore

// ErrVideoNotFound is returned when a video does not exist in the store
var ErrVideoNotFound = errors.New("video not found")

// Video is one persisted playlist item.
type Video struct {
	// PlaylistID is the playlist this item belongs to
	PlaylistID string `json:"playlistId"`

	// VideoID is the upstream video identifier
	VideoID string `json:"videoId"`

	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Position     int       `json:"position"`
	PublishedAt  time.Time `json:"publishedAt"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`

	// FirstSeenAt is when the item was first stored
	FirstSeenAt time.Time `json:"firstSeenAt"`

	// LastSeenAt is when the item was last observed in the feed
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// ContentEquals reports whether the content-relevant fields of two items
// match. Bookkeeping timestamps are excluded.
func (v *Video) ContentEquals(other *Video) bool {
	return v.Title == other.Title &&
		v.Description == other.Description &&
		v.Position == other.Position &&
		v.PublishedAt.Equal(other.PublishedAt) &&
		v.ThumbnailURL == other.ThumbnailURL
}

// VideoStore is the interface for the persisted item store. A single
// item's failure must be independent of other items in the same batch.
type VideoStore interface {
	// Upsert inserts or updates one video
	Upsert(ctx context.Context, video Video) error

	// Remove deletes one video. Removing an absent video is not an error.
	Remove(ctx context.Context, playlistID, videoID string) error

	// List returns all videos of a playlist ordered by position
	List(ctx context.Context, playlistID string) ([]Video, error)

	// Count returns the number of stored videos for a playlist
	Count(ctx context.Context, playlistID string) (int, error)
}
