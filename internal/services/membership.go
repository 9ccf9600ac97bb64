package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
	"group-media-backend/internal/notify"
)

const (
	codeLength         = 6
	codeChars          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts    = 10
	maxGroupNameLength = 100
)

// Audit actions
const (
	ActionDeleteGroup   = "DELETE_GROUP"
	ActionKickMember    = "KICK_MEMBER"
	ActionPromoteMember = "PROMOTE_MEMBER"
	ActionResolveReport = "RESOLVE_REPORT"
	ActionBanUser       = "BAN_USER"
	ActionUnbanUser     = "UNBAN_USER"
)

// GroupInput carries the editable fields of a group. Nil fields are left unchanged on edit.
type GroupInput struct {
	Name        *string
	Description *string
	Picture     *Upload
}

// MembershipService owns group membership and the single-admin invariant:
// a group with members has exactly one admin, and a group without members does not exist.
type MembershipService struct {
	store    Store
	blobs    BlobStore
	thumbs   Thumbnailer
	types    MediaTypes
	notifier notify.Sink
	now      func() time.Time
	spawn    func(func())
}

// NewMembershipService creates a new membership service
func NewMembershipService(store Store, blobs BlobStore, thumbs Thumbnailer, types MediaTypes, notifier notify.Sink) *MembershipService {
	return &MembershipService{
		store:    store,
		blobs:    blobs,
		thumbs:   thumbs,
		types:    types,
		notifier: notifier,
		now:      time.Now,
		spawn:    goAsync,
	}
}

// generateCode generates a random 6-character join code
func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

func (s *MembershipService) generateUniqueCode(ctx context.Context, q Queries) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := generateCode()
		exists, err := q.JoinCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check join code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperrors.ErrCodeExhausted
}

func validGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxGroupNameLength {
		return "", apperrors.Validation(fmt.Sprintf("group name must be 1-%d characters", maxGroupNameLength))
	}
	return name, nil
}

// requireMember loads the membership of a user, distinguishing a missing group from a non-member
func requireMember(ctx context.Context, q Queries, userID, groupID string) (*models.Membership, error) {
	if _, err := q.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	m, err := q.GetMembership(ctx, userID, groupID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMembershipNotFound) {
			return nil, apperrors.ErrNotMember
		}
		return nil, err
	}
	return m, nil
}

func requireAdmin(ctx context.Context, q Queries, userID, groupID string) (*models.Membership, error) {
	m, err := requireMember(ctx, q, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin {
		return nil, apperrors.ErrNotAdmin
	}
	return m, nil
}

func audit(ctx context.Context, q Queries, now time.Time, actorID, action, targetID, metadata string) error {
	return q.InsertAudit(ctx, &models.AuditEntry{
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		Metadata:  metadata,
		CreatedAt: now,
	})
}

// removeMembership removes a user from a group whose row lock is held.
// The last member out deletes the group; a departing admin hands over to the earliest-joined member.
// It returns the blob keys orphaned by a group deletion.
func removeMembership(ctx context.Context, q Queries, userID, groupID string) ([]string, error) {
	m, err := q.GetMembership(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if err := q.RemoveMember(ctx, userID, groupID); err != nil {
		return nil, err
	}

	remaining, err := q.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if len(remaining) == 0 {
		return deleteGroupRows(ctx, q, groupID)
	}

	if m.IsAdmin {
		successor := remaining[0]
		if err := q.SetAdmin(ctx, successor.UserID, groupID, true); err != nil {
			return nil, err
		}
		log.Info().Str("group_id", groupID).Str("user_id", successor.UserID).Msg("Admin succeeded")
	}
	return nil, nil
}

// deleteGroupRows deletes a group and everything hanging off it, returning the blob keys to purge
func deleteGroupRows(ctx context.Context, q Queries, groupID string) ([]string, error) {
	group, err := q.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	media, err := q.ListGroupMedia(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := q.DeleteGroup(ctx, groupID); err != nil {
		return nil, err
	}

	keys := mediaKeys(media)
	if group.Picture != nil {
		keys = append(keys, imageKeys(*group.Picture)...)
	}
	log.Info().Str("group_id", groupID).Int("media", len(media)).Msg("Group deleted")
	return keys, nil
}

// CreateGroup creates a group with the owner as its admin
func (s *MembershipService) CreateGroup(ctx context.Context, ownerID string, in GroupInput) (*models.Group, error) {
	if in.Name == nil {
		return nil, apperrors.Validation("group name is required")
	}
	name, err := validGroupName(*in.Name)
	if err != nil {
		return nil, err
	}

	var picture *string
	if in.Picture != nil {
		key, err := storeImage(ctx, s.blobs, s.thumbs, s.types, *in.Picture)
		if err != nil {
			return nil, err
		}
		picture = &key
	}

	now := s.now()
	group := &models.Group{
		ID:            uuid.New().String(),
		Name:          name,
		Description:   in.Description,
		Picture:       picture,
		JoiningActive: true,
		CreatedBy:     ownerID,
		CreatedAt:     now,
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		code, err := s.generateUniqueCode(ctx, q)
		if err != nil {
			return err
		}
		group.JoinCode = code

		if err := q.CreateGroup(ctx, group); err != nil {
			return err
		}
		return q.AddMember(ctx, &models.Membership{
			UserID:               ownerID,
			GroupID:              group.ID,
			IsAdmin:              true,
			NotificationsEnabled: true,
			JoinedAt:             now,
		})
	})
	if err != nil {
		if picture != nil {
			purgeBlobs(ctx, s.blobs, imageKeys(*picture))
		}
		return nil, err
	}

	log.Info().Str("group_id", group.ID).Str("user_id", ownerID).Msg("Group created")
	return group, nil
}

// RequestJoin files a join request that the group admin resolves
func (s *MembershipService) RequestJoin(ctx context.Context, userID, joinCode string) (*models.JoinRequest, error) {
	code := strings.ToUpper(strings.TrimSpace(joinCode))
	if code == "" {
		return nil, apperrors.Validation("join code is required")
	}

	var group *models.Group
	req := &models.JoinRequest{UserID: userID, CreatedAt: s.now()}

	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		g, err := q.GetGroupByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := q.LockGroup(ctx, g.ID); err != nil {
			return err
		}
		if !g.JoiningActive {
			return apperrors.ErrJoiningClosed
		}

		if _, err := q.GetMembership(ctx, userID, g.ID); err == nil {
			return apperrors.ErrAlreadyMember
		} else if !errors.Is(err, apperrors.ErrMembershipNotFound) {
			return err
		}

		exists, err := q.JoinRequestExists(ctx, userID, g.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrAlreadyRequested
		}

		req.GroupID = g.ID
		group = g
		return q.CreateJoinRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	nctx := context.WithoutCancel(ctx)
	s.spawn(func() { s.notifyJoinRequest(nctx, group, userID) })
	return req, nil
}

func (s *MembershipService) notifyJoinRequest(ctx context.Context, group *models.Group, userID string) {
	members, err := s.store.ListMembers(ctx, group.ID)
	if err != nil {
		log.Error().Err(err).Str("group_id", group.ID).Msg("Failed to load admins for notification")
		return
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load requester for notification")
		return
	}

	var recipients []notify.Recipient
	for _, m := range members {
		if m.IsAdmin && m.NotificationsEnabled {
			recipients = append(recipients, recipientOf(m))
		}
	}

	s.send(ctx, notify.Notification{
		Recipients: recipients,
		Title:      group.Name,
		Body:       fmt.Sprintf("%s wants to join the group", user.Username),
		Payload:    map[string]string{"type": "join_request", "group_id": group.ID, "user_id": userID},
	})
}

func recipientOf(m models.Member) notify.Recipient {
	r := notify.Recipient{UserID: m.UserID}
	if m.PushToken != nil {
		r.PushToken = *m.PushToken
	}
	return r
}

func (s *MembershipService) send(ctx context.Context, n notify.Notification) {
	if len(n.Recipients) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		log.Warn().Err(err).Str("title", n.Title).Msg("Failed to deliver notification")
	}
}

// ResolveJoinRequest accepts or rejects a pending request. Only the admin may resolve.
func (s *MembershipService) ResolveJoinRequest(ctx context.Context, adminID, targetID, groupID string, decision models.JoinDecision) error {
	if decision != models.JoinAccept && decision != models.JoinReject {
		return apperrors.ErrInvalidAction
	}

	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, q, adminID, groupID); err != nil {
			return err
		}
		if err := q.DeleteJoinRequest(ctx, targetID, groupID); err != nil {
			return err
		}
		if decision == models.JoinReject {
			return nil
		}
		return q.AddMember(ctx, &models.Membership{
			UserID:               targetID,
			GroupID:              groupID,
			NotificationsEnabled: true,
			JoinedAt:             s.now(),
		})
	})
	if err != nil {
		return err
	}

	log.Info().Str("group_id", groupID).Str("user_id", targetID).Str("decision", string(decision)).Msg("Join request resolved")
	return nil
}

// Leave removes the user from the group
func (s *MembershipService) Leave(ctx context.Context, userID, groupID string) error {
	var orphaned []string
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := requireMember(ctx, q, userID, groupID); err != nil {
			return err
		}
		keys, err := removeMembership(ctx, q, userID, groupID)
		orphaned = keys
		return err
	})
	if err != nil {
		return err
	}

	purgeBlobs(ctx, s.blobs, orphaned)
	log.Info().Str("group_id", groupID).Str("user_id", userID).Msg("Member left")
	return nil
}

// Kick removes another member. The admin cannot kick themselves.
func (s *MembershipService) Kick(ctx context.Context, adminID, targetID, groupID string) error {
	if adminID == targetID {
		return apperrors.ErrSelfActionDenied
	}

	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, q, adminID, groupID); err != nil {
			return err
		}
		if err := q.RemoveMember(ctx, targetID, groupID); err != nil {
			if errors.Is(err, apperrors.ErrMembershipNotFound) {
				return apperrors.ErrTargetNotMember
			}
			return err
		}
		return audit(ctx, q, s.now(), adminID, ActionKickMember, targetID, groupID)
	})
	if err != nil {
		return err
	}

	log.Info().Str("group_id", groupID).Str("user_id", targetID).Msg("Member kicked")
	return nil
}

// Promote hands the admin role to another member
func (s *MembershipService) Promote(ctx context.Context, adminID, targetID, groupID string) error {
	if adminID == targetID {
		return apperrors.ErrSelfActionDenied
	}

	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, q, adminID, groupID); err != nil {
			return err
		}
		if _, err := q.GetMembership(ctx, targetID, groupID); err != nil {
			if errors.Is(err, apperrors.ErrMembershipNotFound) {
				return apperrors.ErrTargetNotMember
			}
			return err
		}
		if err := q.SetAdmin(ctx, adminID, groupID, false); err != nil {
			return err
		}
		if err := q.SetAdmin(ctx, targetID, groupID, true); err != nil {
			return err
		}
		return audit(ctx, q, s.now(), adminID, ActionPromoteMember, targetID, groupID)
	})
	if err != nil {
		return err
	}

	log.Info().Str("group_id", groupID).Str("user_id", targetID).Msg("Member promoted")
	return nil
}

// DeleteGroup deletes the group with its memberships, join requests, media and blobs
func (s *MembershipService) DeleteGroup(ctx context.Context, adminID, groupID string) error {
	var orphaned []string
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, q, adminID, groupID); err != nil {
			return err
		}
		keys, err := deleteGroupRows(ctx, q, groupID)
		if err != nil {
			return err
		}
		orphaned = keys
		return audit(ctx, q, s.now(), adminID, ActionDeleteGroup, groupID, "")
	})
	if err != nil {
		return err
	}

	purgeBlobs(ctx, s.blobs, orphaned)
	return nil
}

// EditGroup updates name, description and picture. The old picture is removed after commit.
func (s *MembershipService) EditGroup(ctx context.Context, adminID, groupID string, in GroupInput) (*models.Group, error) {
	var name string
	if in.Name != nil {
		n, err := validGroupName(*in.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}

	if _, err := requireAdmin(ctx, s.store, adminID, groupID); err != nil {
		return nil, err
	}

	var newPicture *string
	if in.Picture != nil {
		key, err := storeImage(ctx, s.blobs, s.thumbs, s.types, *in.Picture)
		if err != nil {
			return nil, err
		}
		newPicture = &key
	}

	var updated *models.Group
	var oldPicture *string
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, q, adminID, groupID); err != nil {
			return err
		}
		g, err := q.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			g.Name = name
		}
		if in.Description != nil {
			g.Description = in.Description
		}
		if newPicture != nil {
			oldPicture = g.Picture
			g.Picture = newPicture
		}
		updated = g
		return q.UpdateGroup(ctx, g)
	})
	if err != nil {
		if newPicture != nil {
			purgeBlobs(ctx, s.blobs, imageKeys(*newPicture))
		}
		return nil, err
	}

	if oldPicture != nil {
		purgeBlobs(ctx, s.blobs, imageKeys(*oldPicture))
	}
	return updated, nil
}

// SetJoining opens or closes the group for join requests
func (s *MembershipService) SetJoining(ctx context.Context, adminID, groupID string, active bool) error {
	return s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.LockGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, q, adminID, groupID); err != nil {
			return err
		}
		g, err := q.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		g.JoiningActive = active
		return q.UpdateGroup(ctx, g)
	})
}

// ToggleNotifications flips the member's upload notifications and returns the new setting
func (s *MembershipService) ToggleNotifications(ctx context.Context, userID, groupID string) (bool, error) {
	m, err := requireMember(ctx, s.store, userID, groupID)
	if err != nil {
		return false, err
	}
	enabled := !m.NotificationsEnabled
	if err := s.store.SetNotifications(ctx, userID, groupID, enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// ListMyGroups lists the groups of a user
func (s *MembershipService) ListMyGroups(ctx context.Context, userID string) ([]models.UserGroup, error) {
	return s.store.ListUserGroups(ctx, userID)
}

// GetGroup returns a group as seen by one of its members
func (s *MembershipService) GetGroup(ctx context.Context, userID, groupID string) (*models.UserGroup, error) {
	m, err := requireMember(ctx, s.store, userID, groupID)
	if err != nil {
		return nil, err
	}
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &models.UserGroup{Group: *g, IsAdmin: m.IsAdmin, MemberCount: len(members)}, nil
}

// ListMembers lists the members of a group in join order.
// Members who blocked the viewer are left out; members the viewer blocked are flagged.
func (s *MembershipService) ListMembers(ctx context.Context, userID, groupID string) ([]models.Member, error) {
	if _, err := requireMember(ctx, s.store, userID, groupID); err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.ListBlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	blockers, err := s.store.ListBlockersOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	blocked := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		blocked[b.BlockedID] = true
	}
	blockedBy := make(map[string]bool, len(blockers))
	for _, id := range blockers {
		blockedBy[id] = true
	}

	visible := make([]models.Member, 0, len(members))
	for _, m := range members {
		if blockedBy[m.UserID] {
			continue
		}
		m.BlockedByMe = blocked[m.UserID]
		visible = append(visible, m)
	}
	return visible, nil
}

// ListJoinRequests lists pending requests of a group. Admin only.
func (s *MembershipService) ListJoinRequests(ctx context.Context, adminID, groupID string) ([]models.JoinRequest, error) {
	if _, err := requireAdmin(ctx, s.store, adminID, groupID); err != nil {
		return nil, err
	}
	return s.store.ListJoinRequests(ctx, groupID)
}
