// Package v0 provides the public read API handlers.
package v0

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chapterline/playlist-sync-server/internal/api/common"
	"github.com/chapterline/playlist-sync-server/internal/cache"
	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/logger"
	"github.com/chapterline/playlist-sync-server/internal/status"
	"github.com/chapterline/playlist-sync-server/internal/store"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
	"github.com/chapterline/playlist-sync-server/internal/versions"
)

// Cache keys for the read-through cache. Admin cache-clear drops them all.
const (
	cacheKeyPlaylists = "v0:playlists"
	cacheKeySitemap   = "v0:sitemap"
	cacheKeyVideos    = "v0:videos:"
)

// PlaylistsResponse lists the tracked playlists for display
type PlaylistsResponse struct {
	Playlists []status.DisplayedPlaylist `json:"playlists"`
}

// VideosResponse lists the stored videos of one playlist
type VideosResponse struct {
	PlaylistID string        `json:"playlistId"`
	Videos     []store.Video `json:"videos"`
}

// SitemapEntry is one playlist's last-modification record
type SitemapEntry struct {
	PlaylistID   string     `json:"playlistId"`
	ItemCount    int        `json:"itemCount"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// SitemapResponse carries per-playlist modification timestamps for crawlers
type SitemapResponse struct {
	Entries []SitemapEntry `json:"entries"`
}

// Routes defines the public read routes with dependency injection
type Routes struct {
	config *config.Config
	states state.PlaylistStateService
	videos store.VideoStore
	cache  *cache.Cache
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(
	cfg *config.Config,
	states state.PlaylistStateService,
	videos store.VideoStore,
	readCache *cache.Cache,
) *Routes {
	return &Routes{
		config: cfg,
		states: states,
		videos: videos,
		cache:  readCache,
	}
}

// Router creates a new router for the public read API
func Router(
	cfg *config.Config,
	states state.PlaylistStateService,
	videos store.VideoStore,
	readCache *cache.Cache,
) http.Handler {
	routes := NewRoutes(cfg, states, videos, readCache)

	r := chi.NewRouter()
	r.Get("/playlists", routes.listPlaylists)
	r.Get("/playlists/{playlistID}/videos", routes.listVideos)
	r.Get("/sitemap", routes.getSitemap)

	return r
}

// listPlaylists handles GET /v0/playlists
func (rr *Routes) listPlaylists(w http.ResponseWriter, _ *http.Request) {
	v, err := rr.cache.GetOrLoad(cacheKeyPlaylists, func() (any, error) {
		playlists := make([]status.DisplayedPlaylist, 0, len(rr.config.Playlists))
		for _, pl := range rr.config.Playlists {
			playlists = append(playlists, status.DisplayedPlaylist{
				PlaylistID: pl.ID,
				Title:      pl.Title,
			})
		}
		return PlaylistsResponse{Playlists: playlists}, nil
	})
	if err != nil {
		logger.Errorf("Failed to load playlists: %v", err)
		common.WriteErrorResponse(w, "Failed to load playlists", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, v, http.StatusOK)
}

// listVideos handles GET /v0/playlists/{playlistID}/videos
func (rr *Routes) listVideos(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")
	if !rr.isConfigured(playlistID) {
		common.WriteErrorResponse(w, "Playlist not found", http.StatusNotFound)
		return
	}

	v, err := rr.cache.GetOrLoad(cacheKeyVideos+playlistID, func() (any, error) {
		videos, err := rr.videos.List(r.Context(), playlistID)
		if err != nil {
			return nil, err
		}
		return VideosResponse{PlaylistID: playlistID, Videos: videos}, nil
	})
	if err != nil {
		logger.Errorf("Failed to list videos for playlist '%s': %v", playlistID, err)
		common.WriteErrorResponse(w, "Failed to list videos", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, v, http.StatusOK)
}

// getSitemap handles GET /v0/sitemap
func (rr *Routes) getSitemap(w http.ResponseWriter, r *http.Request) {
	v, err := rr.cache.GetOrLoad(cacheKeySitemap, func() (any, error) {
		states, err := rr.states.ListStates(r.Context())
		if err != nil {
			return nil, err
		}

		entries := make([]SitemapEntry, 0, len(states))
		for id, st := range states {
			entry := SitemapEntry{
				PlaylistID: id,
				ItemCount:  st.ItemCount,
			}
			if st.LastSyncResult.Succeeded() {
				at := st.LastSyncResult.At
				entry.LastModified = &at
			}
			entries = append(entries, entry)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].PlaylistID < entries[j].PlaylistID
		})
		return SitemapResponse{Entries: entries}, nil
	})
	if err != nil {
		logger.Errorf("Failed to build sitemap: %v", err)
		common.WriteErrorResponse(w, "Failed to build sitemap", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, v, http.StatusOK)
}

func (rr *Routes) isConfigured(playlistID string) bool {
	for _, pl := range rr.config.Playlists {
		if pl.ID == playlistID {
			return true
		}
	}
	return false
}

// HealthRouter creates a router for health check endpoints
func HealthRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
