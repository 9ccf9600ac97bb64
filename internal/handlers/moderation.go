package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"group-media-backend/internal/middleware"
	"group-media-backend/internal/models"
	"group-media-backend/internal/services"
)

// ModerationHandler handles blocks, hides, reports and bans
type ModerationHandler struct {
	moderationService *services.ModerationService
}

// NewModerationHandler creates a new moderation handler
func NewModerationHandler(moderationService *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{
		moderationService: moderationService,
	}
}

// ReportRequest represents the request body for reporting a media
type ReportRequest struct {
	Reason string `json:"reason"`
}

// ResolveReportRequest represents a platform admin's decision
type ResolveReportRequest struct {
	Action models.ReportAction `json:"action"`
}

// BanRequest represents the request body for a manual ban
type BanRequest struct {
	UserID      string  `json:"user_id"`
	Username    string  `json:"username"`
	PhoneNumber *string `json:"phone_number"`
	Reason      string  `json:"reason"`
}

// HideMedia handles POST /api/v1/media/hide
func (h *ModerationHandler) HideMedia(w http.ResponseWriter, r *http.Request) {
	var req MediaIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	if err := h.moderationService.HideMedia(r.Context(), middleware.GetUserID(r.Context()), req.IDs); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReportMedia handles POST /api/v1/media/{media_id}/report
func (h *ModerationHandler) ReportMedia(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondAppError(w, r, err)
			return
		}
	}

	report, err := h.moderationService.Report(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "media_id"), req.Reason)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, report)
}

// ListBlocked handles GET /api/v1/blocks
func (h *ModerationHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.moderationService.ListBlocked(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if blocks == nil {
		blocks = []models.Block{}
	}
	respondJSON(w, http.StatusOK, blocks)
}

// Block handles POST /api/v1/blocks/{user_id}
func (h *ModerationHandler) Block(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.Block(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "user_id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unblock handles DELETE /api/v1/blocks/{user_id}
func (h *ModerationHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.Unblock(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "user_id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListReports handles GET /api/v1/admin/reports
func (h *ModerationHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.moderationService.ListReports(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	respondJSON(w, http.StatusOK, reports)
}

// ResolveReport handles POST /api/v1/admin/reports/{report_id}
func (h *ModerationHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	var req ResolveReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	reportID := chi.URLParam(r, "report_id")
	if err := h.moderationService.ResolveReport(r.Context(), adminID, reportID, req.Action); err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().Str("admin_id", adminID).Str("report_id", reportID).Str("action", string(req.Action)).Msg("Report handled")
	w.WriteHeader(http.StatusNoContent)
}

// ListBans handles GET /api/v1/admin/bans
func (h *ModerationHandler) ListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := h.moderationService.ListBans(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if bans == nil {
		bans = []models.BanRecord{}
	}
	respondJSON(w, http.StatusOK, bans)
}

// BanUser handles POST /api/v1/admin/bans
func (h *ModerationHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	target := services.BanTarget{
		UserID:      req.UserID,
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
	}
	if err := h.moderationService.ManualBan(r.Context(), middleware.GetUserID(r.Context()), target, req.Reason); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unban handles DELETE /api/v1/admin/bans/{ban_id}
func (h *ModerationHandler) Unban(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.Unban(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "ban_id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
