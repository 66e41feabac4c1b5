package state

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/status"
)

// NewStateService creates a PlaylistStateService based on the configured
// storage type.
//
// For file-based storage, it returns a service that uses the provided
// StatePersistence for persisting sync state to disk.
//
// For database storage, it returns a service that stores sync state
// directly in PostgreSQL. The pool parameter must not be nil when database
// storage is configured.
func NewStateService(
	cfg *config.Config,
	persistence status.StatePersistence,
	pool *pgxpool.Pool,
) (PlaylistStateService, error) {
	switch cfg.Storage.Type {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when storage type is database")
		}
		return NewDBStateService(pool), nil
	case config.StorageTypeFile:
		return NewFileStateService(persistence), nil
	default:
		// Default to file-based storage for unknown types
		return NewFileStateService(persistence), nil
	}
}
