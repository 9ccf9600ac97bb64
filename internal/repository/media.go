package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
)

const mediaColumns = `m.id, m.user_id, m.group_id, m.storage_key, m.thumbnail_key, m.media_type, m.size_bytes, m.uploaded_at`

func scanMediaRows(rows pgx.Rows) ([]models.Media, error) {
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.UserID, &m.GroupID, &m.StorageKey, &m.ThumbnailKey, &m.MediaType, &m.SizeBytes, &m.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media: %w", err)
	}
	return media, nil
}

// InsertMedia inserts a media row
func (q *Queries) InsertMedia(ctx context.Context, media *models.Media) error {
	query := `
		INSERT INTO media (id, user_id, group_id, storage_key, thumbnail_key, media_type, size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.Exec(ctx, query,
		media.ID, media.UserID, media.GroupID, media.StorageKey, media.ThumbnailKey,
		media.MediaType, media.SizeBytes, media.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert media: %w", err)
	}
	return nil
}

// GetMediaByIDs retrieves the media rows that exist among ids
func (q *Queries) GetMediaByIDs(ctx context.Context, ids []string) ([]models.Media, error) {
	rows, err := q.db.Query(ctx, `SELECT `+mediaColumns+` FROM media m WHERE m.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return scanMediaRows(rows)
}

// GetMedia retrieves a media row by ID
func (q *Queries) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	media, err := q.GetMediaByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, apperrors.ErrMediaNotFound
	}
	return &media[0], nil
}

// ListGroupMedia lists every media row of a group
func (q *Queries) ListGroupMedia(ctx context.Context, groupID string) ([]models.Media, error) {
	rows, err := q.db.Query(ctx, `SELECT `+mediaColumns+` FROM media m WHERE m.group_id = $1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group media: %w", err)
	}
	return scanMediaRows(rows)
}

// ListUserMedia lists every media row uploaded by a user
func (q *Queries) ListUserMedia(ctx context.Context, userID string) ([]models.Media, error) {
	rows, err := q.db.Query(ctx, `SELECT `+mediaColumns+` FROM media m WHERE m.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user media: %w", err)
	}
	return scanMediaRows(rows)
}

// DeleteMedia deletes media rows and reports how many were removed
func (q *Queries) DeleteMedia(ctx context.Context, ids []string) (int64, error) {
	result, err := q.db.Exec(ctx, `DELETE FROM media WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete media: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListVisibleMedia lists the media of a group the viewer may see, newest first.
// Media the viewer hid and media across a block edge in either direction are excluded.
func (q *Queries) ListVisibleMedia(ctx context.Context, viewerID, groupID string) ([]models.MediaItem, error) {
	query := `
		SELECT ` + mediaColumns + `, u.username, u.profile_image
		FROM media m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $2
			AND NOT EXISTS (
				SELECT 1 FROM hidden_media h WHERE h.user_id = $1 AND h.media_id = m.id
			)
			AND NOT EXISTS (
				SELECT 1 FROM blocks b
				WHERE (b.blocker_id = $1 AND b.blocked_id = m.user_id)
					OR (b.blocker_id = m.user_id AND b.blocked_id = $1)
			)
		ORDER BY m.uploaded_at DESC, m.id DESC
	`
	rows, err := q.db.Query(ctx, query, viewerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible media: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		var it models.MediaItem
		m := &it.Media
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.GroupID, &m.StorageKey, &m.ThumbnailKey, &m.MediaType, &m.SizeBytes, &m.UploadedAt,
			&it.Username, &it.ProfileImage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media items: %w", err)
	}
	return items, nil
}

// InsertPendingUpload records blobs about to be written
func (q *Queries) InsertPendingUpload(ctx context.Context, p *models.PendingUpload) error {
	query := `
		INSERT INTO pending_uploads (id, user_id, group_id, storage_key, thumbnail_key, quota_counter, quota_cost, quota_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9)
	`
	_, err := q.db.Exec(ctx, query,
		p.ID, p.UserID, p.GroupID, p.StorageKey, p.ThumbnailKey,
		p.QuotaCounter, p.QuotaCost, p.QuotaDay, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending upload: %w", err)
	}
	return nil
}

// DeletePendingUpload removes a marker. It reports false when the marker was already gone.
func (q *Queries) DeletePendingUpload(ctx context.Context, id string) (bool, error) {
	result, err := q.db.Exec(ctx, `DELETE FROM pending_uploads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending upload: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListStalePendingUploads lists markers created before the cutoff, oldest first
func (q *Queries) ListStalePendingUploads(ctx context.Context, before time.Time, limit int) ([]models.PendingUpload, error) {
	query := `
		SELECT id, user_id, group_id, storage_key, thumbnail_key, quota_counter, quota_cost, quota_day, created_at
		FROM pending_uploads
		WHERE created_at < $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := q.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending uploads: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingUpload
	for rows.Next() {
		var p models.PendingUpload
		if err := rows.Scan(&p.ID, &p.UserID, &p.GroupID, &p.StorageKey, &p.ThumbnailKey,
			&p.QuotaCounter, &p.QuotaCost, &p.QuotaDay, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending upload: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending uploads: %w", err)
	}
	return pending, nil
}
