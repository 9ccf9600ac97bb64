package services

import (
	"context"
	"time"

	"group-media-backend/internal/models"
)

// Queries is the row store as the services see it.
// Implementations run each call either directly or inside an open transaction.
type Queries interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	IdentityTaken(ctx context.Context, exceptID, username, email string, phone *string) (bool, error)
	FindUsersByIdentity(ctx context.Context, username string, phone *string) ([]models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
	DeleteUser(ctx context.Context, id string) error

	ResetQuotaIfStale(ctx context.Context, userID string, today time.Time) error
	ReserveQuota(ctx context.Context, userID string, day time.Time, counter string, cost, limit int64) (bool, error)
	ReleaseQuota(ctx context.Context, userID string, day time.Time, counter string, cost int64) error

	CreateGroup(ctx context.Context, group *models.Group) error
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	GetGroupByCode(ctx context.Context, code string) (*models.Group, error)
	LockGroup(ctx context.Context, id string) error
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id string) error
	ListUserGroups(ctx context.Context, userID string) ([]models.UserGroup, error)

	AddMember(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, userID, groupID string) (*models.Membership, error)
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)
	RemoveMember(ctx context.Context, userID, groupID string) error
	SetAdmin(ctx context.Context, userID, groupID string, isAdmin bool) error
	SetNotifications(ctx context.Context, userID, groupID string, enabled bool) error

	CreateJoinRequest(ctx context.Context, req *models.JoinRequest) error
	JoinRequestExists(ctx context.Context, userID, groupID string) (bool, error)
	DeleteJoinRequest(ctx context.Context, userID, groupID string) error
	ListJoinRequests(ctx context.Context, groupID string) ([]models.JoinRequest, error)

	InsertMedia(ctx context.Context, media *models.Media) error
	GetMedia(ctx context.Context, id string) (*models.Media, error)
	GetMediaByIDs(ctx context.Context, ids []string) ([]models.Media, error)
	ListGroupMedia(ctx context.Context, groupID string) ([]models.Media, error)
	ListUserMedia(ctx context.Context, userID string) ([]models.Media, error)
	DeleteMedia(ctx context.Context, ids []string) (int64, error)
	ListVisibleMedia(ctx context.Context, viewerID, groupID string) ([]models.MediaItem, error)

	InsertPendingUpload(ctx context.Context, p *models.PendingUpload) error
	DeletePendingUpload(ctx context.Context, id string) (bool, error)
	ListStalePendingUploads(ctx context.Context, before time.Time, limit int) ([]models.PendingUpload, error)

	InsertBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListBlocks(ctx context.Context, blockerID string) ([]models.Block, error)
	ListBlockersOf(ctx context.Context, userID string) ([]string, error)
	HideBlockedMedia(ctx context.Context, blockerID, blockedID string) error
	UnhideBlockedMedia(ctx context.Context, blockerID, blockedID string) error
	HideMedia(ctx context.Context, userID string, mediaIDs []string) error

	CreateReport(ctx context.Context, r *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListPendingReports(ctx context.Context) ([]models.Report, error)
	DeleteReport(ctx context.Context, id string) error

	CreateBan(ctx context.Context, b *models.BanRecord) error
	IsBanned(ctx context.Context, username string, phone *string) (bool, error)
	ListBans(ctx context.Context) ([]models.BanRecord, error)
	DeleteBan(ctx context.Context, id string) error

	InsertAudit(ctx context.Context, e *models.AuditEntry) error
}

// Store is a Queries that can also open transactions
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// BlobStore persists media bytes under opaque keys
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Thumbnailer builds a bounded JPEG derivative of an upload
type Thumbnailer interface {
	Generate(ctx context.Context, data []byte, mediaType models.MediaType) ([]byte, error)
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// goAsync runs fire-and-forget work such as notification delivery
func goAsync(fn func()) {
	go fn()
}
