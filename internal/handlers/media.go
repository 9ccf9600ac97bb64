package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/middleware"
	"group-media-backend/internal/models"
	"group-media-backend/internal/services"
)

// form overhead allowed on top of the largest accepted file
const formSlack = 1 << 20

// MediaHandler handles media-related HTTP requests
type MediaHandler struct {
	mediaService *services.MediaService
	maxUpload    int64
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(mediaService *services.MediaService, maxUpload int64) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		maxUpload:    maxUpload,
	}
}

// MediaIDsRequest represents a request body carrying media ids
type MediaIDsRequest struct {
	IDs []string `json:"ids"`
}

// ListMedia handles GET /api/v1/groups/{group_id}/media
func (h *MediaHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	views, err := h.mediaService.ListMedia(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "group_id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if views == nil {
		views = []models.MediaView{}
	}
	respondJSON(w, http.StatusOK, views)
}

// UploadMedia handles POST /api/v1/groups/{group_id}/media (multipart: file)
func (h *MediaHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	groupID := chi.URLParam(r, "group_id")

	if err := parseForm(w, r, h.maxUpload+formSlack); err != nil {
		respondAppError(w, r, err)
		return
	}
	upload, err := readUpload(r, "file")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if upload == nil {
		respondAppError(w, r, apperrors.Validation("file is required"))
		return
	}

	media, err := h.mediaService.Ingest(ctx, userID, groupID, *upload)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeQuotaExceeded {
			log.Info().Str("user_id", userID).Str("group_id", groupID).Msg("Upload denied by quota")
		}
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, media)
}

// DeleteMedia handles DELETE /api/v1/media/{media_id}
func (h *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := h.mediaService.DeleteMedia(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "media_id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete handles POST /api/v1/media/bulk-delete
func (h *MediaHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req MediaIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	if err := h.mediaService.BulkDelete(r.Context(), middleware.GetUserID(r.Context()), req.IDs); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
