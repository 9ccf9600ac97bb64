package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
)

const (
	jwtExpDays        = 365
	maxUsernameLength = 50
)

// UserService handles user-related business logic
type UserService struct {
	store       Store
	blobs       BlobStore
	thumbs      Thumbnailer
	types       MediaTypes
	ledger      *QuotaLedger
	jwtSecret   string
	defaultPlan string
	now         func() time.Time
}

// NewUserService creates a new user service
func NewUserService(store Store, blobs BlobStore, thumbs Thumbnailer, types MediaTypes, ledger *QuotaLedger, jwtSecret, defaultPlan string) *UserService {
	return &UserService{
		store:       store,
		blobs:       blobs,
		thumbs:      thumbs,
		types:       types,
		ledger:      ledger,
		jwtSecret:   jwtSecret,
		defaultPlan: defaultPlan,
		now:         time.Now,
	}
}

// RegisterInput holds the fields of a new account
type RegisterInput struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phone_number"`
}

// ProfileInput holds profile changes. Nil fields are left unchanged.
type ProfileInput struct {
	Username    *string
	Email       *string
	PhoneNumber *string
	Image       *Upload
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return "", apperrors.Validation(fmt.Sprintf("username must be 1-%d characters", maxUsernameLength))
	}
	return username, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperrors.Validation("invalid email address")
	}
	return email, nil
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	p := strings.ReplaceAll(strings.TrimSpace(*phone), " ", "")
	if p == "" {
		return nil
	}
	return &p
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     s.now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     s.now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidCredentials, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", apperrors.ErrInvalidCredentials
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: user_id not found", apperrors.ErrInvalidCredentials)
	}

	return userID, nil
}

// Register creates an account unless the username or phone number was banned
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, "", err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, "", err
	}
	phone := normalizePhone(in.PhoneNumber)

	banned, err := s.store.IsBanned(ctx, username, phone)
	if err != nil {
		return nil, "", err
	}
	if banned {
		return nil, "", apperrors.ErrBannedIdentity
	}

	taken, err := s.store.IdentityTaken(ctx, "", username, email, phone)
	if err != nil {
		return nil, "", err
	}
	if taken {
		return nil, "", apperrors.ErrUserExists
	}

	user := &models.User{
		ID:          uuid.New().String(),
		Username:    username,
		Email:       email,
		PhoneNumber: phone,
		Plan:        s.defaultPlan,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	return user, token, nil
}

// GetUser returns a user with the quota counters as they apply today
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Quota = s.ledger.Usage(user)
	return user, nil
}

// UpdatePushToken sets or clears the device token used for push notifications
func (s *UserService) UpdatePushToken(ctx context.Context, userID, token string) error {
	var value *string
	if t := strings.TrimSpace(token); t != "" {
		value = &t
	}
	return s.store.UpdatePushToken(ctx, userID, value)
}

// UpdateProfile changes profile fields and the profile image. The old image is removed after commit.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		if user.Username, err = normalizeUsername(*in.Username); err != nil {
			return nil, err
		}
	}
	if in.Email != nil {
		if user.Email, err = normalizeEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = normalizePhone(in.PhoneNumber)
	}

	taken, err := s.store.IdentityTaken(ctx, user.ID, user.Username, user.Email, user.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.ErrUserExists
	}

	var oldImage *string
	if in.Image != nil {
		key, err := storeImage(ctx, s.blobs, s.thumbs, s.types, *in.Image)
		if err != nil {
			return nil, err
		}
		oldImage = user.ProfileImage
		user.ProfileImage = &key
	}

	if err := s.store.UpdateProfile(ctx, user); err != nil {
		if in.Image != nil {
			purgeBlobs(ctx, s.blobs, imageKeys(*user.ProfileImage))
		}
		return nil, err
	}

	if oldImage != nil {
		purgeBlobs(ctx, s.blobs, imageKeys(*oldImage))
	}
	user.Quota = s.ledger.Usage(user)
	return user, nil
}

// DeleteAccount removes the user the same way a ban does, without recording a ban
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	var orphaned []string
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		keys, err := deleteUserCascade(ctx, q, userID)
		orphaned = keys
		return err
	})
	if err != nil {
		return err
	}

	purgeBlobs(ctx, s.blobs, orphaned)
	log.Info().Str("user_id", userID).Msg("Account deleted")
	return nil
}
