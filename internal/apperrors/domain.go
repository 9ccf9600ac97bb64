package apperrors

var (
	ErrUnsupportedType = Validation("file type not allowed")
	ErrEmptyUpload     = Validation("empty upload")
	ErrUploadTooLarge  = Validation("upload exceeds the size limit")
	ErrInvalidAction   = Validation("invalid action")

	ErrNotMember          = Unauthorized("you are not a member of this group")
	ErrNotAdmin           = Unauthorized("only group admins can do this")
	ErrNotPlatformAdmin   = Unauthorized("only platform admins can do this")
	ErrNotOwner           = Unauthorized("you do not own all selected media")
	ErrSelfActionDenied   = Unauthorized("you cannot do this to yourself")
	ErrSelfBanForbidden   = Unauthorized("you cannot ban yourself")
	ErrTargetNotMember    = Unauthorized("target user is not a member of this group")
	ErrInvalidCredentials = Unauthorized("invalid token")

	ErrJoiningClosed    = Conflict("joining is closed for this group")
	ErrAlreadyMember    = Conflict("already a member of this group")
	ErrAlreadyRequested = Conflict("join request already sent")
	ErrBannedIdentity   = Conflict("this identity is banned")
	ErrUserExists       = Conflict("user with this email, username or phone already exists")
	ErrCodeExhausted    = Conflict("could not generate a unique group code")

	ErrUserNotFound        = NotFound("user not found")
	ErrGroupNotFound       = NotFound("group not found")
	ErrMediaNotFound       = NotFound("media not found")
	ErrJoinRequestNotFound = NotFound("join request not found")
	ErrReportNotFound      = NotFound("report not found")
	ErrBanNotFound         = NotFound("ban record not found")
	ErrMembershipNotFound  = NotFound("member not found")
)
