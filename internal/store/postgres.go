package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// psql builds queries with PostgreSQL-style $N placeholders
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore is the Postgres-backed VideoStore
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a VideoStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Upsert inserts or updates one video
func (s *PostgresStore) Upsert(ctx context.Context, video Video) error {
	query, args, err := psql.Insert("videos").
		Columns(
			"playlist_id", "video_id", "title", "description",
			"position", "published_at", "thumbnail_url",
			"first_seen_at", "last_seen_at",
		).
		Values(
			video.PlaylistID, video.VideoID, video.Title, video.Description,
			video.Position, video.PublishedAt, video.ThumbnailURL,
			video.FirstSeenAt, video.LastSeenAt,
		).
		Suffix(`ON CONFLICT (playlist_id, video_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			position = EXCLUDED.position,
			published_at = EXCLUDED.published_at,
			thumbnail_url = EXCLUDED.thumbnail_url,
			last_seen_at = EXCLUDED.last_seen_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert video '%s': %w", video.VideoID, err)
	}

	return nil
}

// Remove deletes one video. Removing an absent video is not an error.
func (s *PostgresStore) Remove(ctx context.Context, playlistID, videoID string) error {
	query, args, err := psql.Delete("videos").
		Where(sq.Eq{"playlist_id": playlistID, "video_id": videoID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove video '%s': %w", videoID, err)
	}

	return nil
}

// List returns all videos of a playlist ordered by position
func (s *PostgresStore) List(ctx context.Context, playlistID string) ([]Video, error) {
	query, args, err := psql.Select(
		"playlist_id", "video_id", "title", "description",
		"position", "published_at", "thumbnail_url",
		"first_seen_at", "last_seen_at",
	).
		From("videos").
		Where(sq.Eq{"playlist_id": playlistID}).
		OrderBy("position ASC", "video_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos for playlist '%s': %w", playlistID, err)
	}
	defer rows.Close()

	videos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Video, error) {
		var v Video
		err := row.Scan(
			&v.PlaylistID, &v.VideoID, &v.Title, &v.Description,
			&v.Position, &v.PublishedAt, &v.ThumbnailURL,
			&v.FirstSeenAt, &v.LastSeenAt,
		)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan videos for playlist '%s': %w", playlistID, err)
	}

	return videos, nil
}

// Count returns the number of stored videos for a playlist
func (s *PostgresStore) Count(ctx context.Context, playlistID string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("videos").
		Where(sq.Eq{"playlist_id": playlistID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count videos for playlist '%s': %w", playlistID, err)
	}

	return count, nil
}
