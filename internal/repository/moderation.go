package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
)

// InsertBlock creates a block edge. It reports false when the edge already existed.
func (q *Queries) InsertBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	result, err := q.db.Exec(ctx, `
		INSERT INTO blocks (blocker_id, blocked_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("failed to insert block: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteBlock removes a block edge. It reports false when there was none.
func (q *Queries) DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	result, err := q.db.Exec(ctx, `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("failed to delete block: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListBlocks lists the users a blocker has blocked, newest first
func (q *Queries) ListBlocks(ctx context.Context, blockerID string) ([]models.Block, error) {
	rows, err := q.db.Query(ctx, `
		SELECT b.blocker_id, b.blocked_id, u.username, u.profile_image, b.created_at
		FROM blocks b
		JOIN users u ON u.id = b.blocked_id
		WHERE b.blocker_id = $1
		ORDER BY b.created_at DESC
	`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.Block
	for rows.Next() {
		var b models.Block
		if err := rows.Scan(&b.BlockerID, &b.BlockedID, &b.Username, &b.ProfileImage, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blocks: %w", err)
	}
	return blocks, nil
}

// ListBlockersOf lists the users who blocked userID
func (q *Queries) ListBlockersOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.Query(ctx, `SELECT blocker_id FROM blocks WHERE blocked_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blockers: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect blockers: %w", err)
	}
	return ids, nil
}

// HideBlockedMedia hides, in both directions, every existing media of one party from the other.
// Rows are attributed to the blocker/blocked pair so they can be withdrawn on unblock.
// Existing hidden rows are left untouched.
func (q *Queries) HideBlockedMedia(ctx context.Context, blockerID, blockedID string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO hidden_media (user_id, media_id, reason, blocker_id, blocked_id, created_at)
		SELECT $1::text, m.id, 'block', $1::text, $2::text, NOW() FROM media m WHERE m.user_id = $2
		UNION ALL
		SELECT $2::text, m.id, 'block', $1::text, $2::text, NOW() FROM media m WHERE m.user_id = $1
		ON CONFLICT (user_id, media_id) DO NOTHING
	`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("failed to hide blocked media: %w", err)
	}
	return nil
}

// UnhideBlockedMedia removes only the rows that HideBlockedMedia wrote for this pair
func (q *Queries) UnhideBlockedMedia(ctx context.Context, blockerID, blockedID string) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM hidden_media
		WHERE reason = 'block' AND blocker_id = $1 AND blocked_id = $2
	`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("failed to unhide blocked media: %w", err)
	}
	return nil
}

// HideMedia hides media for a user. A manual hide supersedes a block hide.
func (q *Queries) HideMedia(ctx context.Context, userID string, mediaIDs []string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO hidden_media (user_id, media_id, reason, created_at)
		SELECT $1::text, id, 'manual', NOW() FROM media WHERE id = ANY($2)
		ON CONFLICT (user_id, media_id) DO UPDATE
		SET reason = 'manual', blocker_id = NULL, blocked_id = NULL
	`, userID, mediaIDs)
	if err != nil {
		return fmt.Errorf("failed to hide media: %w", err)
	}
	return nil
}

const reportColumns = `r.id, r.reporter_id, r.media_id, r.uploader_id, r.reason, r.status, r.created_at,
	COALESCE(ru.username, ''), COALESCE(uu.username, '')`

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	err := row.Scan(&r.ID, &r.ReporterID, &r.MediaID, &r.UploaderID, &r.Reason, &r.Status, &r.CreatedAt,
		&r.ReporterUsername, &r.UploaderUsername)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReport inserts a pending report
func (q *Queries) CreateReport(ctx context.Context, r *models.Report) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO reports (id, reporter_id, media_id, uploader_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.ReporterID, r.MediaID, r.UploaderID, r.Reason, r.Status, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by ID
func (q *Queries) GetReport(ctx context.Context, id string) (*models.Report, error) {
	report, err := scanReport(q.db.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports r
		LEFT JOIN users ru ON ru.id = r.reporter_id
		LEFT JOIN users uu ON uu.id = r.uploader_id
		WHERE r.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListPendingReports lists pending reports, newest first
func (q *Queries) ListPendingReports(ctx context.Context) ([]models.Report, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports r
		LEFT JOIN users ru ON ru.id = r.reporter_id
		LEFT JOIN users uu ON uu.id = r.uploader_id
		WHERE r.status = $1
		ORDER BY r.created_at DESC
	`, models.ReportPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes a report
func (q *Queries) DeleteReport(ctx context.Context, id string) error {
	result, err := q.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrReportNotFound
	}
	return nil
}

// CreateBan inserts a ban record
func (q *Queries) CreateBan(ctx context.Context, b *models.BanRecord) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO banned_users (id, phone_number, username, reason, banned_at)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, b.PhoneNumber, b.Username, b.Reason, b.BannedAt)
	if err != nil {
		return fmt.Errorf("failed to create ban: %w", err)
	}
	return nil
}

// IsBanned reports whether a ban record matches the phone number or the username
func (q *Queries) IsBanned(ctx context.Context, username string, phone *string) (bool, error) {
	var banned bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM banned_users
			WHERE LOWER(username) = LOWER($1) OR ($2::text IS NOT NULL AND phone_number = $2)
		)
	`, username, phone).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("failed to check ban: %w", err)
	}
	return banned, nil
}

// ListBans lists ban records, newest first
func (q *Queries) ListBans(ctx context.Context) ([]models.BanRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, phone_number, username, reason, banned_at
		FROM banned_users
		ORDER BY banned_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	var bans []models.BanRecord
	for rows.Next() {
		var b models.BanRecord
		if err := rows.Scan(&b.ID, &b.PhoneNumber, &b.Username, &b.Reason, &b.BannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bans: %w", err)
	}
	return bans, nil
}

// DeleteBan removes a ban record
func (q *Queries) DeleteBan(ctx context.Context, id string) error {
	result, err := q.db.Exec(ctx, `DELETE FROM banned_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ban: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrBanNotFound
	}
	return nil
}

// InsertAudit appends an audit entry
func (q *Queries) InsertAudit(ctx context.Context, e *models.AuditEntry) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, target_id, metadata, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, e.ActorID, e.Action, e.TargetID, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
