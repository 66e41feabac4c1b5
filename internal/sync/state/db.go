package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/status"
)

// psql builds queries with PostgreSQL-style $N placeholders
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const stateColumns = `playlist_id, etag, last_modified, fingerprint, last_fingerprint_at,
	sync_in_progress, sync_lease_owner, sync_lease_until, last_sync_result,
	item_count, active_window_until`

type dbStateService struct {
	pool *pgxpool.Pool
}

// NewDBStateService creates a new database-backed playlist state service.
// UpdateStateAtomically runs inside a transaction with a row lock, so the
// check-and-set holds across server processes sharing the database.
func NewDBStateService(pool *pgxpool.Pool) PlaylistStateService {
	return &dbStateService{
		pool: pool,
	}
}

func (d *dbStateService) Initialize(ctx context.Context, playlists []config.PlaylistConfig) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	for _, pl := range playlists {
		query, args, err := psql.Insert("playlist_sync").
			Columns("playlist_id", "sync_in_progress", "item_count", "updated_at").
			Values(pl.ID, false, 0, now).
			Suffix("ON CONFLICT (playlist_id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build initialize query: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to initialize state for playlist '%s': %w", pl.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (d *dbStateService) ListStates(ctx context.Context) (map[string]*status.PlaylistSyncState, error) {
	query, args, err := psql.Select(stateColumns).From("playlist_sync").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*status.PlaylistSyncState)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		result[state.PlaylistID] = state
	}

	return result, rows.Err()
}

func (d *dbStateService) GetState(ctx context.Context, playlistID string) (*status.PlaylistSyncState, error) {
	return d.getState(ctx, d.pool, playlistID, false)
}

func (d *dbStateService) UpdateState(ctx context.Context, playlistID string, state *status.PlaylistSyncState) error {
	return upsertState(ctx, d.pool, playlistID, state)
}

func (d *dbStateService) UpdateStateAtomically(
	ctx context.Context,
	playlistID string,
	testAndUpdateFn func(state *status.PlaylistSyncState) bool,
) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent updaters of the same playlist
	state, err := d.getState(ctx, tx, playlistID, true)
	if err != nil {
		return false, err
	}

	shouldUpdate := testAndUpdateFn(state)
	if shouldUpdate {
		if err := upsertState(ctx, tx, playlistID, state); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return shouldUpdate, nil
}

// querier is the subset of pgx used by the state queries, satisfied by
// both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (d *dbStateService) getState(
	ctx context.Context,
	q querier,
	playlistID string,
	forUpdate bool,
) (*status.PlaylistSyncState, error) {
	builder := psql.Select(stateColumns).
		From("playlist_sync").
		Where(sq.Eq{"playlist_id": playlistID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get query: %w", err)
	}

	state, err := scanState(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}

	return state, nil
}

func upsertState(
	ctx context.Context,
	q querier,
	playlistID string,
	state *status.PlaylistSyncState,
) error {
	var lastResult []byte
	if state.LastSyncResult != nil {
		var err error
		lastResult, err = json.Marshal(state.LastSyncResult)
		if err != nil {
			return fmt.Errorf("failed to marshal last sync result: %w", err)
		}
	}

	query, args, err := psql.Insert("playlist_sync").
		Columns(
			"playlist_id", "etag", "last_modified", "fingerprint", "last_fingerprint_at",
			"sync_in_progress", "sync_lease_owner", "sync_lease_until", "last_sync_result",
			"item_count", "active_window_until", "updated_at",
		).
		Values(
			playlistID, nullable(state.ETag), nullable(state.LastModified),
			nullable(state.Fingerprint), state.LastFingerprintAt,
			state.SyncInProgress, nullable(state.SyncLeaseOwner), state.SyncLeaseUntil,
			lastResult, state.ItemCount, state.ActiveWindowUntil, time.Now(),
		).
		Suffix(`ON CONFLICT (playlist_id) DO UPDATE SET
			etag = EXCLUDED.etag,
			last_modified = EXCLUDED.last_modified,
			fingerprint = EXCLUDED.fingerprint,
			last_fingerprint_at = EXCLUDED.last_fingerprint_at,
			sync_in_progress = EXCLUDED.sync_in_progress,
			sync_lease_owner = EXCLUDED.sync_lease_owner,
			sync_lease_until = EXCLUDED.sync_lease_until,
			last_sync_result = EXCLUDED.last_sync_result,
			item_count = EXCLUDED.item_count,
			active_window_until = EXCLUDED.active_window_until,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert state for playlist '%s': %w", playlistID, err)
	}

	return nil
}

func scanState(row pgx.Row) (*status.PlaylistSyncState, error) {
	var (
		state      status.PlaylistSyncState
		etag       *string
		lastMod    *string
		fp         *string
		owner      *string
		lastResult []byte
	)

	err := row.Scan(
		&state.PlaylistID, &etag, &lastMod, &fp, &state.LastFingerprintAt,
		&state.SyncInProgress, &owner, &state.SyncLeaseUntil, &lastResult,
		&state.ItemCount, &state.ActiveWindowUntil,
	)
	if err != nil {
		return nil, err
	}

	state.ETag = deref(etag)
	state.LastModified = deref(lastMod)
	state.Fingerprint = deref(fp)
	state.SyncLeaseOwner = deref(owner)

	if len(lastResult) > 0 {
		var result status.LastSyncResult
		if err := json.Unmarshal(lastResult, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal last sync result: %w", err)
		}
		state.LastSyncResult = &result
	}

	return &state, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
