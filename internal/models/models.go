package models

import "time"

// User represents a registered user
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PhoneNumber  *string   `json:"phone_number,omitempty"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	PushToken    *string   `json:"-"`
	Plan         string    `json:"plan"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	Quota        Quota     `json:"quota"`
	CreatedAt    time.Time `json:"created_at"`
}

// Quota is the daily usage ledger embedded in a user row.
// The counters are only meaningful for LastResetDate.
type Quota struct {
	UsageBytes    int64      `json:"usage_bytes"`
	ImageCount    int        `json:"image_count"`
	VideoCount    int        `json:"video_count"`
	LastResetDate *time.Time `json:"last_reset_date,omitempty"`
}

// Current returns the counters as they apply to today
func (q Quota) Current(today time.Time) Quota {
	if q.LastResetDate == nil || q.LastResetDate.Before(today) {
		return Quota{LastResetDate: &today}
	}
	return q
}

// Quota counters a reservation can be charged to
const (
	CounterBytes  = "usage_bytes"
	CounterImages = "image_count"
	CounterVideos = "video_count"
)

// Group represents a sharing group
type Group struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	Picture       *string   `json:"picture,omitempty"`
	JoinCode      string    `json:"join_code"`
	JoiningActive bool      `json:"joining_active"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Membership links a user to a group. Seq orders members by join time.
type Membership struct {
	UserID               string    `json:"user_id"`
	GroupID              string    `json:"group_id"`
	IsAdmin              bool      `json:"is_admin"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	Seq                  int64     `json:"-"`
	JoinedAt             time.Time `json:"joined_at"`
}

// Member is a membership joined with the user's public profile
type Member struct {
	Membership
	Username     string  `json:"username"`
	ProfileImage *string `json:"profile_image,omitempty"`
	PushToken    *string `json:"-"`
	BlockedByMe  bool    `json:"blocked_by_me"`
}

// UserGroup is a group as seen from one of its members
type UserGroup struct {
	Group
	IsAdmin     bool `json:"is_admin"`
	MemberCount int  `json:"member_count"`
}

// JoinRequest is a pending request to join a group
type JoinRequest struct {
	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinDecision is an admin's answer to a join request
type JoinDecision string

const (
	JoinAccept JoinDecision = "accept"
	JoinReject JoinDecision = "reject"
)

// MediaType is derived from the file extension
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Media represents an uploaded photo or video
type Media struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	GroupID      string    `json:"group_id"`
	StorageKey   string    `json:"storage_key"`
	ThumbnailKey *string   `json:"thumbnail_key,omitempty"`
	MediaType    MediaType `json:"media_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// MediaItem is a media row joined with its uploader, as returned by listings
type MediaItem struct {
	Media
	Username     string  `json:"username"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// MediaView is a media listing entry with signed read URLs
type MediaView struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail"`
	MediaType    MediaType `json:"type"`
	UploaderID   string    `json:"uploader_id"`
	UploadedBy   string    `json:"uploaded_by"`
	UserAvatar   *string   `json:"user_avatar,omitempty"`
	UploadedAt   time.Time `json:"date"`
}

// PendingUpload marks blobs written before their media row exists.
// It also carries the quota reservation so a sweep can release it.
type PendingUpload struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	GroupID      string    `json:"group_id"`
	StorageKey   string    `json:"storage_key"`
	ThumbnailKey *string   `json:"thumbnail_key,omitempty"`
	QuotaCounter string    `json:"quota_counter"`
	QuotaCost    int64     `json:"quota_cost"`
	QuotaDay     time.Time `json:"quota_day"`
	CreatedAt    time.Time `json:"created_at"`
}

// HiddenReason tells why a media is hidden for a user
type HiddenReason string

const (
	HiddenManual HiddenReason = "manual"
	HiddenBlock  HiddenReason = "block"
)

// Block is a directed block edge owned by the blocker
type Block struct {
	BlockerID    string    `json:"blocker_id"`
	BlockedID    string    `json:"blocked_id"`
	Username     string    `json:"username,omitempty"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReportStatus is the status of a pending report
type ReportStatus string

const ReportPending ReportStatus = "pending"

// ReportAction is a terminal resolution of a report
type ReportAction string

const (
	ReportDeleteContent ReportAction = "delete_content"
	ReportDismiss       ReportAction = "dismiss"
	ReportBanUser       ReportAction = "ban_user"
)

// Report is a content report. UploaderID is captured at report time.
type Report struct {
	ID               string       `json:"id"`
	ReporterID       string       `json:"reporter_id"`
	MediaID          string       `json:"media_id"`
	UploaderID       string       `json:"uploader_id"`
	Reason           string       `json:"reason"`
	Status           ReportStatus `json:"status"`
	ReporterUsername string       `json:"reporter_username,omitempty"`
	UploaderUsername string       `json:"uploader_username,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// BanRecord keeps the identifying fields of a removed user
type BanRecord struct {
	ID          string    `json:"id"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	Username    string    `json:"username"`
	Reason      string    `json:"reason"`
	BannedAt    time.Time `json:"banned_at"`
}

// AuditEntry is an append-only record of an administrative action
type AuditEntry struct {
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	TargetID  string    `json:"target_id"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
