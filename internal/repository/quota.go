package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"group-media-backend/internal/models"
)

func counterColumn(counter string) (string, error) {
	switch counter {
	case models.CounterBytes, models.CounterImages, models.CounterVideos:
		return counter, nil
	default:
		return "", fmt.Errorf("unknown quota counter %q", counter)
	}
}

// ResetQuotaIfStale zeroes every counter when the stored date is before today
func (q *Queries) ResetQuotaIfStale(ctx context.Context, userID string, today time.Time) error {
	query := `
		UPDATE users
		SET usage_bytes = 0, image_count = 0, video_count = 0, last_reset_date = $2::date
		WHERE id = $1 AND (last_reset_date IS NULL OR last_reset_date < $2::date)
	`
	if _, err := q.db.Exec(ctx, query, userID, today); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}

// ReserveQuota adds cost to a counter only if the result stays within limit.
// It reports false when the reservation would exceed the limit.
func (q *Queries) ReserveQuota(ctx context.Context, userID string, day time.Time, counter string, cost, limit int64) (bool, error) {
	col, err := counterColumn(counter)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %[1]s = %[1]s + $3
		WHERE id = $1 AND last_reset_date = $2::date AND %[1]s + $3 <= $4
		RETURNING %[1]s
	`, col)

	var used int64
	err = q.db.QueryRow(ctx, query, userID, day, cost, limit).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to reserve quota: %w", err)
	}
	return true, nil
}

// ReleaseQuota gives back a reservation made on day. Reservations from an earlier day are already gone.
func (q *Queries) ReleaseQuota(ctx context.Context, userID string, day time.Time, counter string, cost int64) error {
	col, err := counterColumn(counter)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %[1]s = GREATEST(%[1]s - $3, 0)
		WHERE id = $1 AND last_reset_date = $2::date
	`, col)

	if _, err := q.db.Exec(ctx, query, userID, day, cost); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}
