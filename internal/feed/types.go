// Package feed provides the client for the upstream video hosting feed.
package feed

import "time"

// VideoItem is one entry of a playlist feed page.
type VideoItem struct {
	// VideoID is the upstream video identifier
	VideoID string `json:"videoId"`

	// Title is the current video title
	Title string `json:"title"`

	// Description is the current video description
	Description string `json:"description,omitempty"`

	// Position is the item's position within the playlist
	Position int `json:"position"`

	// PublishedAt is the upstream publication timestamp
	PublishedAt time.Time `json:"publishedAt"`

	// ThumbnailURL points at the current thumbnail rendition
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Page is the result of one playlist fetch.
type Page struct {
	// Items is the full item list, empty when NotModified is set
	Items []VideoItem `json:"items"`

	// ETag is the conditional-fetch marker from the response, if any
	ETag string `json:"-"`

	// LastModified is the Last-Modified header value, if any
	LastModified string `json:"-"`

	// NotModified is true when the upstream answered 304 to a
	// conditional request. Items carries no meaning in that case.
	NotModified bool `json:"-"`
}

// Conditional carries the markers for a conditional fetch. Zero values
// mean an unconditional fetch.
type Conditional struct {
	ETag         string
	LastModified string
}
