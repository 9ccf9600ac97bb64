package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"group-media-backend/internal/middleware"
	"group-media-backend/internal/models"
	"group-media-backend/internal/services"
)

const maxGroupFormBytes = 20 << 20

// GroupHandler handles group-related HTTP requests
type GroupHandler struct {
	groupService *services.MembershipService
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groupService *services.MembershipService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

// JoinGroupRequest represents the request body for joining a group
type JoinGroupRequest struct {
	JoinCode string `json:"join_code"`
}

// SetJoiningRequest represents the request body for opening or closing a group
type SetJoiningRequest struct {
	Active bool `json:"active"`
}

// ResolveRequestBody represents an admin's answer to a join request
type ResolveRequestBody struct {
	Decision models.JoinDecision `json:"decision"`
}

func (h *GroupHandler) groupInput(w http.ResponseWriter, r *http.Request) (services.GroupInput, error) {
	if err := parseForm(w, r, maxGroupFormBytes); err != nil {
		return services.GroupInput{}, err
	}
	picture, err := readUpload(r, "picture")
	if err != nil {
		return services.GroupInput{}, err
	}
	return services.GroupInput{
		Name:        formValue(r, "name"),
		Description: formValue(r, "description"),
		Picture:     picture,
	}, nil
}

// ListGroups handles GET /api/v1/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupService.ListMyGroups(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if groups == nil {
		groups = []models.UserGroup{}
	}
	respondJSON(w, http.StatusOK, groups)
}

// CreateGroup handles POST /api/v1/groups (multipart: name, description, picture)
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	in, err := h.groupInput(w, r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

// GetGroup handles GET /api/v1/groups/{group_id}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupService.GetGroup(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// EditGroup handles PATCH /api/v1/groups/{group_id}
func (h *GroupHandler) EditGroup(w http.ResponseWriter, r *http.Request) {
	in, err := h.groupInput(w, r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	group, err := h.groupService.EditGroup(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id"), in)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// DeleteGroup handles DELETE /api/v1/groups/{group_id}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := chi.URLParam(r, "group_id")

	if err := h.groupService.DeleteGroup(r.Context(), userID, groupID); err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().Str("user_id", userID).Str("group_id", groupID).Msg("Group deleted by admin")
	w.WriteHeader(http.StatusNoContent)
}

// JoinGroup handles POST /api/v1/groups/join
func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	var req JoinGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	joinReq, err := h.groupService.RequestJoin(r.Context(), middleware.GetUserID(r.Context()), req.JoinCode)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, joinReq)
}

// SetJoining handles PUT /api/v1/groups/{group_id}/joining
func (h *GroupHandler) SetJoining(w http.ResponseWriter, r *http.Request) {
	var req SetJoiningRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	err := h.groupService.SetJoining(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id"), req.Active)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"joining_active": req.Active})
}

// Leave handles POST /api/v1/groups/{group_id}/leave
func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.groupService.Leave(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleNotifications handles POST /api/v1/groups/{group_id}/notifications
func (h *GroupHandler) ToggleNotifications(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.groupService.ToggleNotifications(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"notifications_enabled": enabled})
}

// ListMembers handles GET /api/v1/groups/{group_id}/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.groupService.ListMembers(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// KickMember handles DELETE /api/v1/groups/{group_id}/members/{user_id}
func (h *GroupHandler) KickMember(w http.ResponseWriter, r *http.Request) {
	err := h.groupService.Kick(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "user_id"), chi.URLParam(r, "group_id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PromoteMember handles POST /api/v1/groups/{group_id}/members/{user_id}/promote
func (h *GroupHandler) PromoteMember(w http.ResponseWriter, r *http.Request) {
	err := h.groupService.Promote(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "user_id"), chi.URLParam(r, "group_id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListJoinRequests handles GET /api/v1/groups/{group_id}/requests
func (h *GroupHandler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.groupService.ListJoinRequests(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if requests == nil {
		requests = []models.JoinRequest{}
	}
	respondJSON(w, http.StatusOK, requests)
}

// ResolveJoinRequest handles POST /api/v1/groups/{group_id}/requests/{user_id}
func (h *GroupHandler) ResolveJoinRequest(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequestBody
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	err := h.groupService.ResolveJoinRequest(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "user_id"), chi.URLParam(r, "group_id"), req.Decision)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
