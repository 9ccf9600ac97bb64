package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
)

const groupColumns = `id, name, description, picture, join_code, joining_active, created_by, created_at`

func scanGroup(row pgx.Row) (*models.Group, error) {
	var g models.Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Picture, &g.JoinCode, &g.JoiningActive, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts a new group
func (q *Queries) CreateGroup(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO groups (id, name, description, picture, join_code, joining_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.Exec(ctx, query,
		group.ID, group.Name, group.Description, group.Picture,
		group.JoinCode, group.JoiningActive, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// JoinCodeExists checks if a join code is already in use
func (q *Queries) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE join_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check join code existence: %w", err)
	}
	return exists, nil
}

// GetGroup retrieves a group by ID
func (q *Queries) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	group, err := scanGroup(q.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// GetGroupByCode retrieves a group by its join code
func (q *Queries) GetGroupByCode(ctx context.Context, code string) (*models.Group, error) {
	group, err := scanGroup(q.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE join_code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group by code: %w", err)
	}
	return group, nil
}

// LockGroup takes a row lock on the group for the rest of the transaction.
// Every membership mutation of a group serializes on this lock.
func (q *Queries) LockGroup(ctx context.Context, id string) error {
	var locked string
	err := q.db.QueryRow(ctx, `SELECT id FROM groups WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrGroupNotFound
		}
		return fmt.Errorf("failed to lock group: %w", err)
	}
	return nil
}

// UpdateGroup updates the editable fields of a group
func (q *Queries) UpdateGroup(ctx context.Context, group *models.Group) error {
	query := `
		UPDATE groups
		SET name = $2, description = $3, picture = $4, joining_active = $5
		WHERE id = $1
	`
	result, err := q.db.Exec(ctx, query, group.ID, group.Name, group.Description, group.Picture, group.JoiningActive)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrGroupNotFound
	}
	return nil
}

// DeleteGroup removes a group. Memberships, join requests and media rows cascade.
func (q *Queries) DeleteGroup(ctx context.Context, id string) error {
	result, err := q.db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrGroupNotFound
	}
	return nil
}

// ListUserGroups lists the groups a user belongs to, newest membership first
func (q *Queries) ListUserGroups(ctx context.Context, userID string) ([]models.UserGroup, error) {
	query := `
		SELECT g.id, g.name, g.description, g.picture, g.join_code, g.joining_active, g.created_by, g.created_at,
			m.is_admin,
			(SELECT COUNT(*) FROM memberships c WHERE c.group_id = g.id)
		FROM memberships m
		JOIN groups g ON g.id = m.group_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at DESC, m.seq DESC
	`
	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	defer rows.Close()

	var groups []models.UserGroup
	for rows.Next() {
		var ug models.UserGroup
		g := &ug.Group
		if err := rows.Scan(
			&g.ID, &g.Name, &g.Description, &g.Picture, &g.JoinCode, &g.JoiningActive, &g.CreatedBy, &g.CreatedAt,
			&ug.IsAdmin, &ug.MemberCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user group: %w", err)
		}
		groups = append(groups, ug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user groups: %w", err)
	}
	return groups, nil
}

// AddMember inserts a membership. The join order is assigned by the database.
func (q *Queries) AddMember(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (user_id, group_id, is_admin, notifications_enabled, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`
	err := q.db.QueryRow(ctx, query, m.UserID, m.GroupID, m.IsAdmin, m.NotificationsEnabled, m.JoinedAt).Scan(&m.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyMember
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// GetMembership retrieves a membership
func (q *Queries) GetMembership(ctx context.Context, userID, groupID string) (*models.Membership, error) {
	query := `
		SELECT user_id, group_id, is_admin, notifications_enabled, seq, joined_at
		FROM memberships
		WHERE user_id = $1 AND group_id = $2
	`
	var m models.Membership
	err := q.db.QueryRow(ctx, query, userID, groupID).Scan(
		&m.UserID, &m.GroupID, &m.IsAdmin, &m.NotificationsEnabled, &m.Seq, &m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// ListMembers lists the members of a group in join order
func (q *Queries) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	query := `
		SELECT m.user_id, m.group_id, m.is_admin, m.notifications_enabled, m.seq, m.joined_at,
			u.username, u.profile_image, u.push_token
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.joined_at, m.seq
	`
	rows, err := q.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(
			&m.UserID, &m.GroupID, &m.IsAdmin, &m.NotificationsEnabled, &m.Seq, &m.JoinedAt,
			&m.Username, &m.ProfileImage, &m.PushToken,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// RemoveMember deletes a membership
func (q *Queries) RemoveMember(ctx context.Context, userID, groupID string) error {
	result, err := q.db.Exec(ctx, `DELETE FROM memberships WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrMembershipNotFound
	}
	return nil
}

// SetAdmin sets the admin flag of a membership. Demote before promoting: a group holds one admin row.
func (q *Queries) SetAdmin(ctx context.Context, userID, groupID string, isAdmin bool) error {
	result, err := q.db.Exec(ctx,
		`UPDATE memberships SET is_admin = $3 WHERE user_id = $1 AND group_id = $2`,
		userID, groupID, isAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrMembershipNotFound
	}
	return nil
}

// SetNotifications sets whether a member receives upload notifications
func (q *Queries) SetNotifications(ctx context.Context, userID, groupID string, enabled bool) error {
	result, err := q.db.Exec(ctx,
		`UPDATE memberships SET notifications_enabled = $3 WHERE user_id = $1 AND group_id = $2`,
		userID, groupID, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to set notifications: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrMembershipNotFound
	}
	return nil
}

// CreateJoinRequest inserts a pending join request
func (q *Queries) CreateJoinRequest(ctx context.Context, req *models.JoinRequest) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO join_requests (user_id, group_id, created_at) VALUES ($1, $2, $3)`,
		req.UserID, req.GroupID, req.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyRequested
		}
		return fmt.Errorf("failed to create join request: %w", err)
	}
	return nil
}

// JoinRequestExists checks for a pending request
func (q *Queries) JoinRequestExists(ctx context.Context, userID, groupID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM join_requests WHERE user_id = $1 AND group_id = $2)`,
		userID, groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check join request: %w", err)
	}
	return exists, nil
}

// DeleteJoinRequest removes a pending request
func (q *Queries) DeleteJoinRequest(ctx context.Context, userID, groupID string) error {
	result, err := q.db.Exec(ctx, `DELETE FROM join_requests WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete join request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrJoinRequestNotFound
	}
	return nil
}

// ListJoinRequests lists pending requests of a group, oldest first
func (q *Queries) ListJoinRequests(ctx context.Context, groupID string) ([]models.JoinRequest, error) {
	query := `
		SELECT r.user_id, r.group_id, u.username, r.created_at
		FROM join_requests r
		JOIN users u ON u.id = r.user_id
		WHERE r.group_id = $1
		ORDER BY r.created_at
	`
	rows, err := q.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list join requests: %w", err)
	}
	defer rows.Close()

	var requests []models.JoinRequest
	for rows.Next() {
		var r models.JoinRequest
		if err := rows.Scan(&r.UserID, &r.GroupID, &r.Username, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan join request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate join requests: %w", err)
	}
	return requests, nil
}
