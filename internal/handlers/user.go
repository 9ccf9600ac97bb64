package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"group-media-backend/internal/middleware"
	"group-media-backend/internal/models"
	"group-media-backend/internal/services"
)

const maxProfileFormBytes = 20 << 20

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// RegisterResponse is returned on sign-up
type RegisterResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// PushTokenRequest represents the request body for updating the device token
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	user, token, err := h.userService.Register(r.Context(), req)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, RegisterResponse{User: user, Token: token})
}

// GetMe handles GET /api/v1/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/v1/me (multipart: username, email, phone_number, image)
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxProfileFormBytes); err != nil {
		respondAppError(w, r, err)
		return
	}
	image, err := readUpload(r, "image")
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), services.ProfileInput{
		Username:    formValue(r, "username"),
		Email:       formValue(r, "email"),
		PhoneNumber: formValue(r, "phone_number"),
		Image:       image,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdatePushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), middleware.GetUserID(r.Context()), req.PushToken); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMe handles DELETE /api/v1/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.userService.DeleteAccount(r.Context(), userID); err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("User deleted own account")
	w.WriteHeader(http.StatusNoContent)
}
