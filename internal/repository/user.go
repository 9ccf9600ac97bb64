package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
)

const userColumns = `id, username, email, phone_number, profile_image, push_token, plan, is_super_admin,
	usage_bytes, image_count, video_count, last_reset_date, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PhoneNumber, &u.ProfileImage, &u.PushToken, &u.Plan, &u.IsSuperAdmin,
		&u.Quota.UsageBytes, &u.Quota.ImageCount, &u.Quota.VideoCount, &u.Quota.LastResetDate, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user
func (q *Queries) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, phone_number, profile_image, push_token, plan, is_super_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.db.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.PhoneNumber, user.ProfileImage,
		user.PushToken, user.Plan, user.IsSuperAdmin, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (q *Queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// IdentityTaken reports whether another user already has the username, email or phone number
func (q *Queries) IdentityTaken(ctx context.Context, exceptID, username, email string, phone *string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM users
			WHERE id <> $1 AND (username = $2 OR email = $3 OR ($4::text IS NOT NULL AND phone_number = $4))
		)
	`
	var taken bool
	if err := q.db.QueryRow(ctx, query, exceptID, username, email, phone).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check user identity: %w", err)
	}
	return taken, nil
}

// FindUsersByIdentity lists users whose username (case-insensitive) or phone number matches.
// An empty username or a nil phone matches nothing.
func (q *Queries) FindUsersByIdentity(ctx context.Context, username string, phone *string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE ($1 <> '' AND LOWER(username) = LOWER($1)) OR ($2::text IS NOT NULL AND phone_number = $2)
		ORDER BY created_at, id`
	rows, err := q.db.Query(ctx, query, username, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to find users by identity: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find users by identity: %w", err)
	}
	return users, nil
}

// UpdateProfile updates the editable profile fields of a user
func (q *Queries) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, phone_number = $4, profile_image = $5
		WHERE id = $1
	`
	result, err := q.db.Exec(ctx, query, user.ID, user.Username, user.Email, user.PhoneNumber, user.ProfileImage)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrUserExists
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (q *Queries) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	result, err := q.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user. Memberships, join requests, media rows, blocks and reports cascade.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	result, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
