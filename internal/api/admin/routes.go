// Package admin provides the token-protected operational API handlers.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chapterline/playlist-sync-server/internal/api/common"
	"github.com/chapterline/playlist-sync-server/internal/cache"
	"github.com/chapterline/playlist-sync-server/internal/logger"
	"github.com/chapterline/playlist-sync-server/internal/status"
	"github.com/chapterline/playlist-sync-server/internal/store"
	pkgsync "github.com/chapterline/playlist-sync-server/internal/sync"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
)

// SyncRunner executes one manual sync attempt. Satisfied by the sync engine.
type SyncRunner interface {
	Run(ctx context.Context, playlistID string) (*status.LastSyncResult, error)
}

// Sync trigger outcome statuses
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusLeaseHeld = "lease_held"
)

// SyncTriggerResponse is the structured outcome of a manual sync request.
// Status is never "success" while Result carries an error.
type SyncTriggerResponse struct {
	PlaylistID string                 `json:"playlistId"`
	Status     string                 `json:"status"`
	Result     *status.LastSyncResult `json:"result,omitempty"`
}

// VerifyResponse reports drift between the recorded item count and the
// store's actual count for one playlist
type VerifyResponse struct {
	PlaylistID     string `json:"playlistId"`
	StateItemCount int    `json:"stateItemCount"`
	StoreItemCount int    `json:"storeItemCount"`
	InSync         bool   `json:"inSync"`
}

// PurgeRequest is the body of a targeted purge request
type PurgeRequest struct {
	Tags []string `json:"tags"`
}

// Routes defines the admin routes with dependency injection
type Routes struct {
	runner SyncRunner
	states state.PlaylistStateService
	videos store.VideoStore
	cache  *cache.Cache
	purger pkgsync.Purger
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(
	runner SyncRunner,
	states state.PlaylistStateService,
	videos store.VideoStore,
	readCache *cache.Cache,
	purger pkgsync.Purger,
) *Routes {
	return &Routes{
		runner: runner,
		states: states,
		videos: videos,
		cache:  readCache,
		purger: purger,
	}
}

// Router creates a new router for the admin API, guarded by the given
// bearer token
func Router(
	token string,
	runner SyncRunner,
	states state.PlaylistStateService,
	videos store.VideoStore,
	readCache *cache.Cache,
	purger pkgsync.Purger,
) http.Handler {
	routes := NewRoutes(runner, states, videos, readCache, purger)

	r := chi.NewRouter()
	r.Use(RequireBearerToken(token))

	r.Post("/sync/{playlistID}", routes.triggerSync)
	r.Get("/sync/{playlistID}", routes.getSyncState)
	r.Post("/cache/clear", routes.clearCache)
	r.Get("/verify/{playlistID}", routes.verifyPlaylist)
	r.Post("/purge", routes.purgeTags)

	return r
}

// RequireBearerToken rejects requests whose Authorization header does not
// carry the expected bearer token. Comparison is constant time.
func RequireBearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				common.WriteErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// triggerSync handles POST /admin/v0/sync/{playlistID}
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	result, err := rr.runner.Run(r.Context(), playlistID)
	if err != nil {
		if errors.Is(err, pkgsync.ErrLeaseHeld) {
			common.WriteJSONResponse(w, SyncTriggerResponse{
				PlaylistID: playlistID,
				Status:     StatusLeaseHeld,
			}, http.StatusConflict)
			return
		}
		if errors.Is(err, state.ErrPlaylistNotFound) {
			common.WriteErrorResponse(w, "Playlist not found", http.StatusNotFound)
			return
		}
		logger.Errorf("Manual sync for playlist '%s' failed: %v", playlistID, err)
		common.WriteErrorResponse(w, "Sync failed", http.StatusInternalServerError)
		return
	}

	resp := SyncTriggerResponse{
		PlaylistID: playlistID,
		Status:     StatusFailed,
		Result:     result,
	}
	if result.Succeeded() {
		resp.Status = StatusSuccess
	}

	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// getSyncState handles GET /admin/v0/sync/{playlistID}
func (rr *Routes) getSyncState(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	st, err := rr.states.GetState(r.Context(), playlistID)
	if err != nil {
		if errors.Is(err, state.ErrPlaylistNotFound) {
			common.WriteErrorResponse(w, "Playlist not found", http.StatusNotFound)
			return
		}
		logger.Errorf("Failed to get sync state for playlist '%s': %v", playlistID, err)
		common.WriteErrorResponse(w, "Failed to get sync state", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, st, http.StatusOK)
}

// clearCache handles POST /admin/v0/cache/clear
func (rr *Routes) clearCache(w http.ResponseWriter, _ *http.Request) {
	rr.cache.Clear()
	logger.Info("Read cache cleared by admin request")
	common.WriteJSONResponse(w, map[string]string{"status": "cleared"}, http.StatusOK)
}

// verifyPlaylist handles GET /admin/v0/verify/{playlistID}
func (rr *Routes) verifyPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	st, err := rr.states.GetState(r.Context(), playlistID)
	if err != nil {
		if errors.Is(err, state.ErrPlaylistNotFound) {
			common.WriteErrorResponse(w, "Playlist not found", http.StatusNotFound)
			return
		}
		logger.Errorf("Failed to get sync state for playlist '%s': %v", playlistID, err)
		common.WriteErrorResponse(w, "Failed to get sync state", http.StatusInternalServerError)
		return
	}

	count, err := rr.videos.Count(r.Context(), playlistID)
	if err != nil {
		logger.Errorf("Failed to count stored videos for playlist '%s': %v", playlistID, err)
		common.WriteErrorResponse(w, "Failed to count stored videos", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, VerifyResponse{
		PlaylistID:     playlistID,
		StateItemCount: st.ItemCount,
		StoreItemCount: count,
		InSync:         st.ItemCount == count,
	}, http.StatusOK)
}

// purgeTags handles POST /admin/v0/purge
func (rr *Routes) purgeTags(w http.ResponseWriter, r *http.Request) {
	if rr.purger == nil {
		common.WriteErrorResponse(w, "CDN purge not configured", http.StatusServiceUnavailable)
		return
	}

	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Tags) == 0 {
		common.WriteErrorResponse(w, "At least one tag is required", http.StatusBadRequest)
		return
	}

	if err := rr.purger.Purge(r.Context(), req.Tags); err != nil {
		logger.Errorf("Admin purge failed: %v", err)
		common.WriteErrorResponse(w, "Purge failed", http.StatusBadGateway)
		return
	}

	common.WriteJSONResponse(w, map[string]string{"status": "accepted"}, http.StatusAccepted)
}
