package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
)

const (
	defaultReportReason = "Inappropriate content"
	reportedBanReason   = "Reported Content"
	manualBanReason     = "Banned by administrator"
	maxReasonLength     = 500
)

// ModerationService handles blocks, hides, reports and bans
type ModerationService struct {
	store Store
	blobs BlobStore
	now   func() time.Time
}

// NewModerationService creates a new moderation service
func NewModerationService(store Store, blobs BlobStore) *ModerationService {
	return &ModerationService{store: store, blobs: blobs, now: time.Now}
}

// deleteUserCascade removes a user and everything they own inside the caller's transaction.
// Every group the user belonged to goes through the normal leave path, so groups
// the user administered get a successor or are deleted when empty.
// It returns the blob keys to purge after commit.
func deleteUserCascade(ctx context.Context, q Queries, userID string) ([]string, error) {
	user, err := q.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	groups, err := q.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	groupIDs := make([]string, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	// consistent lock order across concurrent cascades
	slices.Sort(groupIDs)

	var keys []string
	for _, id := range groupIDs {
		if err := q.LockGroup(ctx, id); err != nil {
			return nil, err
		}
		orphaned, err := removeMembership(ctx, q, userID, id)
		if err != nil {
			return nil, err
		}
		keys = append(keys, orphaned...)
	}

	media, err := q.ListUserMedia(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys = append(keys, mediaKeys(media)...)
	if user.ProfileImage != nil {
		keys = append(keys, imageKeys(*user.ProfileImage)...)
	}

	if err := q.DeleteUser(ctx, userID); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *ModerationService) banUser(ctx context.Context, q Queries, actorID, targetID, reason string) ([]string, error) {
	target, err := q.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	ban := &models.BanRecord{
		ID:          uuid.New().String(),
		PhoneNumber: target.PhoneNumber,
		Username:    target.Username,
		Reason:      reason,
		BannedAt:    s.now(),
	}
	if err := q.CreateBan(ctx, ban); err != nil {
		return nil, err
	}
	keys, err := deleteUserCascade(ctx, q, targetID)
	if err != nil {
		return nil, err
	}
	if err := audit(ctx, q, s.now(), actorID, ActionBanUser, targetID, reason); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *ModerationService) requirePlatformAdmin(ctx context.Context, userID string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsSuperAdmin {
		return apperrors.ErrNotPlatformAdmin
	}
	return nil
}

// Block blocks another user. Blocking again is a no-op; the media of both parties is
// hidden from each other once, when the block is first created.
func (s *ModerationService) Block(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return apperrors.ErrSelfActionDenied
	}
	if _, err := s.store.GetUser(ctx, blockedID); err != nil {
		return err
	}

	return s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		created, err := q.InsertBlock(ctx, blockerID, blockedID)
		if err != nil || !created {
			return err
		}
		if err := q.HideBlockedMedia(ctx, blockerID, blockedID); err != nil {
			return err
		}
		log.Info().Str("user_id", blockerID).Str("blocked_id", blockedID).Msg("User blocked")
		return nil
	})
}

// Unblock removes a block and only the hidden rows that block produced. Manual hides stay.
func (s *ModerationService) Unblock(ctx context.Context, blockerID, blockedID string) error {
	return s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		removed, err := q.DeleteBlock(ctx, blockerID, blockedID)
		if err != nil || !removed {
			return err
		}
		return q.UnhideBlockedMedia(ctx, blockerID, blockedID)
	})
}

// ListBlocked lists the users the user has blocked
func (s *ModerationService) ListBlocked(ctx context.Context, userID string) ([]models.Block, error) {
	return s.store.ListBlocks(ctx, userID)
}

// HideMedia hides media for the user. Every id must exist in a group the user belongs to.
func (s *ModerationService) HideMedia(ctx context.Context, userID string, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return apperrors.Validation("no media ids given")
	}

	media, err := s.store.GetMediaByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(media) != len(ids) {
		return apperrors.ErrMediaNotFound
	}

	checked := make(map[string]bool)
	for _, m := range media {
		if checked[m.GroupID] {
			continue
		}
		if _, err := requireMember(ctx, s.store, userID, m.GroupID); err != nil {
			return err
		}
		checked[m.GroupID] = true
	}

	return s.store.HideMedia(ctx, userID, ids)
}

// Report files a report against a media. The uploader is captured now.
func (s *ModerationService) Report(ctx context.Context, reporterID, mediaID, reason string) (*models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultReportReason
	}
	if len(reason) > maxReasonLength {
		return nil, apperrors.Validation("report reason is too long")
	}

	media, err := s.store.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.store, reporterID, media.GroupID); err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:         uuid.New().String(),
		ReporterID: reporterID,
		MediaID:    media.ID,
		UploaderID: media.UserID,
		Reason:     reason,
		Status:     models.ReportPending,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}

	log.Info().Str("report_id", report.ID).Str("media_id", mediaID).Msg("Media reported")
	return report, nil
}

// ResolveReport applies a platform admin's decision. Every resolution deletes the report.
func (s *ModerationService) ResolveReport(ctx context.Context, adminID, reportID string, action models.ReportAction) error {
	switch action {
	case models.ReportDeleteContent, models.ReportDismiss, models.ReportBanUser:
	default:
		return apperrors.ErrInvalidAction
	}
	if err := s.requirePlatformAdmin(ctx, adminID); err != nil {
		return err
	}

	var orphaned []string
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		report, err := q.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if action == models.ReportBanUser && report.UploaderID == adminID {
			return apperrors.ErrSelfBanForbidden
		}
		if err := q.DeleteReport(ctx, reportID); err != nil {
			return err
		}

		switch action {
		case models.ReportDeleteContent:
			media, err := q.GetMedia(ctx, report.MediaID)
			if err != nil {
				return err
			}
			if _, err := q.DeleteMedia(ctx, []string{media.ID}); err != nil {
				return err
			}
			orphaned = mediaKeys([]models.Media{*media})
		case models.ReportBanUser:
			keys, err := s.banUser(ctx, q, adminID, report.UploaderID, reportedBanReason)
			if err != nil {
				return err
			}
			orphaned = keys
		}

		return audit(ctx, q, s.now(), adminID, ActionResolveReport, reportID, string(action))
	})
	if err != nil {
		return err
	}

	purgeBlobs(ctx, s.blobs, orphaned)
	log.Info().Str("report_id", reportID).Str("action", string(action)).Msg("Report resolved")
	return nil
}

// BanTarget names who a manual ban applies to: a registered user by id, or an
// identity (username and/or phone number) that may not have registered yet.
type BanTarget struct {
	UserID      string
	Username    string
	PhoneNumber *string
}

// ManualBan bans a user outright. An identity ban records the identifiers and
// deletes every account currently holding them in the same transaction.
func (s *ModerationService) ManualBan(ctx context.Context, adminID string, target BanTarget, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = manualBanReason
	}
	if target.UserID == "" {
		return s.banIdentity(ctx, adminID, target, reason)
	}

	if adminID == target.UserID {
		return apperrors.ErrSelfBanForbidden
	}
	if err := s.requirePlatformAdmin(ctx, adminID); err != nil {
		return err
	}

	var orphaned []string
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		keys, err := s.banUser(ctx, q, adminID, target.UserID, reason)
		orphaned = keys
		return err
	})
	if err != nil {
		return err
	}

	purgeBlobs(ctx, s.blobs, orphaned)
	log.Info().Str("user_id", target.UserID).Msg("User banned")
	return nil
}

func (s *ModerationService) banIdentity(ctx context.Context, adminID string, target BanTarget, reason string) error {
	username := strings.TrimSpace(target.Username)
	phone := normalizePhone(target.PhoneNumber)
	if username == "" && phone == nil {
		return apperrors.Validation("user_id, username or phone_number is required")
	}
	if err := s.requirePlatformAdmin(ctx, adminID); err != nil {
		return err
	}

	var orphaned []string
	var banned int
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		matches, err := q.FindUsersByIdentity(ctx, username, phone)
		if err != nil {
			return err
		}
		for _, u := range matches {
			if u.ID == adminID {
				return apperrors.ErrSelfBanForbidden
			}
		}

		ban := &models.BanRecord{
			ID:          uuid.New().String(),
			PhoneNumber: phone,
			Username:    username,
			Reason:      reason,
			BannedAt:    s.now(),
		}
		// a single match fills in the identifier the admin left out
		if len(matches) == 1 {
			if ban.Username == "" {
				ban.Username = matches[0].Username
			}
			if ban.PhoneNumber == nil {
				ban.PhoneNumber = matches[0].PhoneNumber
			}
		}
		if err := q.CreateBan(ctx, ban); err != nil {
			return err
		}

		if len(matches) == 0 {
			return audit(ctx, q, s.now(), adminID, ActionBanUser, identityLabel(username, phone), reason)
		}
		for _, u := range matches {
			keys, err := deleteUserCascade(ctx, q, u.ID)
			if err != nil {
				return err
			}
			orphaned = append(orphaned, keys...)
			if err := audit(ctx, q, s.now(), adminID, ActionBanUser, u.ID, reason); err != nil {
				return err
			}
		}
		banned = len(matches)
		return nil
	})
	if err != nil {
		return err
	}

	purgeBlobs(ctx, s.blobs, orphaned)
	log.Info().Str("username", username).Int("accounts", banned).Msg("Identity banned")
	return nil
}

func identityLabel(username string, phone *string) string {
	if username != "" {
		return username
	}
	return *phone
}

// ListReports lists pending reports
func (s *ModerationService) ListReports(ctx context.Context, adminID string) ([]models.Report, error) {
	if err := s.requirePlatformAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.store.ListPendingReports(ctx)
}

// ListBans lists ban records
func (s *ModerationService) ListBans(ctx context.Context, adminID string) ([]models.BanRecord, error) {
	if err := s.requirePlatformAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.store.ListBans(ctx)
}

// Unban removes a ban record so the identity can register again
func (s *ModerationService) Unban(ctx context.Context, adminID, banID string) error {
	if err := s.requirePlatformAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.DeleteBan(ctx, banID); err != nil {
			return err
		}
		return audit(ctx, q, s.now(), adminID, ActionUnbanUser, banID, "")
	})
}
