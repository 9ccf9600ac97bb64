package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
	"group-media-backend/internal/notify"
	"group-media-backend/internal/storage"
	"group-media-backend/internal/thumbnail"
)

const signConcurrency = 8

// MediaService runs the ingestion pipeline and serves group media
type MediaService struct {
	store     Store
	blobs     BlobStore
	thumbs    Thumbnailer
	ledger    *QuotaLedger
	types     MediaTypes
	notifier  notify.Sink
	maxUpload int64
	urlTTL    time.Duration
	now       func() time.Time
	spawn     func(func())
}

// MediaOptions holds the pipeline limits
type MediaOptions struct {
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
}

// NewMediaService creates a new media service
func NewMediaService(store Store, blobs BlobStore, thumbs Thumbnailer, ledger *QuotaLedger, types MediaTypes, notifier notify.Sink, opts MediaOptions) *MediaService {
	return &MediaService{
		store:     store,
		blobs:     blobs,
		thumbs:    thumbs,
		ledger:    ledger,
		types:     types,
		notifier:  notifier,
		maxUpload: opts.MaxUploadBytes,
		urlTTL:    opts.SignedURLTTL,
		now:       time.Now,
		spawn:     goAsync,
	}
}

// Ingest validates, charges and stores an upload, then records it.
// The charge is written together with a pending marker; any later failure releases it
// and removes what was written, and a crash leaves the marker for the sweep.
// A failed derivative does not fail the upload.
func (s *MediaService) Ingest(ctx context.Context, userID, groupID string, up Upload) (*models.Media, error) {
	if len(up.Data) == 0 {
		return nil, apperrors.ErrEmptyUpload
	}
	if s.maxUpload > 0 && int64(len(up.Data)) > s.maxUpload {
		return nil, apperrors.ErrUploadTooLarge
	}
	mediaType, ext, err := s.types.Classify(up.Filename)
	if err != nil {
		return nil, err
	}

	if _, err := requireMember(ctx, s.store, userID, groupID); err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := storage.NewMediaKey(ext)
	derivativeKey := storage.ThumbnailKey(key)
	now := s.now()
	pending := &models.PendingUpload{
		ID:           uuid.New().String(),
		UserID:       userID,
		GroupID:      groupID,
		StorageKey:   key,
		ThumbnailKey: &derivativeKey,
		CreatedAt:    now,
	}

	// the charge and its marker commit together so the sweep can always find a reservation
	var reservation *Reservation
	err = s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		r, err := s.ledger.Reserve(ctx, q, user, mediaType, int64(len(up.Data)))
		if err != nil {
			return err
		}
		pending.QuotaCounter = r.Counter
		pending.QuotaCost = r.Cost
		pending.QuotaDay = r.Day
		if err := q.InsertPendingUpload(ctx, pending); err != nil {
			return err
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	// from here on the caller going away must not strand a reservation or blobs
	wctx := context.WithoutCancel(ctx)

	if err := s.blobs.Put(wctx, key, up.Data, contentType(ext)); err != nil {
		s.rollback(wctx, pending, reservation, []string{key})
		if apperrors.CodeOf(err) != apperrors.CodeStorage {
			err = apperrors.Storage("failed to store upload", err)
		}
		return nil, err
	}

	var thumbKey *string
	if thumb, err := s.thumbs.Generate(wctx, up.Data, mediaType); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("type", string(mediaType)).Msg("Failed to build derivative")
	} else if err := s.blobs.Put(wctx, derivativeKey, thumb, thumbnail.ContentType); err != nil {
		log.Warn().Err(err).Str("key", derivativeKey).Msg("Failed to store derivative")
	} else {
		thumbKey = &derivativeKey
	}

	media := &models.Media{
		ID:           uuid.New().String(),
		UserID:       userID,
		GroupID:      groupID,
		StorageKey:   key,
		ThumbnailKey: thumbKey,
		MediaType:    mediaType,
		SizeBytes:    int64(len(up.Data)),
		UploadedAt:   now,
	}

	err = s.store.InTx(wctx, func(ctx context.Context, q Queries) error {
		if err := q.InsertMedia(ctx, media); err != nil {
			return err
		}
		return s.ledger.Finalize(ctx, q, pending.ID)
	})
	if err != nil {
		written := []string{key}
		if thumbKey != nil {
			written = append(written, *thumbKey)
		}
		s.rollback(wctx, pending, reservation, written)
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("group_id", groupID).
		Str("media_id", media.ID).
		Int64("size", media.SizeBytes).
		Msg("Media uploaded")

	s.spawn(func() { s.notifyUpload(wctx, media, user) })
	return media, nil
}

// rollback undoes a failed ingest. If any step fails the pending marker stays for the sweep.
func (s *MediaService) rollback(ctx context.Context, pending *models.PendingUpload, r *Reservation, keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to remove blob of failed upload")
			return
		}
	}
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		found, err := q.DeletePendingUpload(ctx, pending.ID)
		if err != nil || !found {
			return err
		}
		return s.ledger.Release(ctx, q, r)
	})
	if err != nil {
		log.Error().Err(err).Str("pending_id", pending.ID).Msg("Failed to roll back upload")
	}
}

func (s *MediaService) notifyUpload(ctx context.Context, media *models.Media, uploader *models.User) {
	group, err := s.store.GetGroup(ctx, media.GroupID)
	if err != nil {
		log.Error().Err(err).Str("group_id", media.GroupID).Msg("Failed to load group for notification")
		return
	}
	members, err := s.store.ListMembers(ctx, media.GroupID)
	if err != nil {
		log.Error().Err(err).Str("group_id", media.GroupID).Msg("Failed to load members for notification")
		return
	}

	var recipients []notify.Recipient
	for _, m := range members {
		if m.UserID == uploader.ID || !m.NotificationsEnabled {
			continue
		}
		recipients = append(recipients, recipientOf(m))
	}
	if len(recipients) == 0 {
		return
	}

	noun := "photo"
	if media.MediaType == models.MediaVideo {
		noun = "video"
	}
	err = s.notifier.Notify(ctx, notify.Notification{
		Recipients: recipients,
		Title:      group.Name,
		Body:       fmt.Sprintf("%s uploaded a new %s", uploader.Username, noun),
		Payload:    map[string]string{"type": "new_media", "group_id": group.ID, "media_id": media.ID},
	})
	if err != nil {
		log.Warn().Err(err).Str("media_id", media.ID).Msg("Failed to deliver upload notification")
	}
}

// ListMedia lists the media of a group the user may see, newest first, with signed URLs.
// Rows whose original blob is gone are reported and left out.
func (s *MediaService) ListMedia(ctx context.Context, userID, groupID string) ([]models.MediaView, error) {
	if _, err := requireMember(ctx, s.store, userID, groupID); err != nil {
		return nil, err
	}

	items, err := s.store.ListVisibleMedia(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	views := make([]*models.MediaView, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for i, it := range items {
		g.Go(func() error {
			view, err := s.view(gctx, it)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	served := make([]models.MediaView, 0, len(views))
	for _, v := range views {
		if v != nil {
			served = append(served, *v)
		}
	}
	return served, nil
}

// view signs the URLs of one item. It returns nil when the item has no original blob.
func (s *MediaService) view(ctx context.Context, it models.MediaItem) (*models.MediaView, error) {
	var thumbKey string
	if it.ThumbnailKey != nil {
		thumbKey = *it.ThumbnailKey
	} else {
		// rows written before derivative keys were recorded; this pipeline commits rows only after the blob
		if !s.originalExists(ctx, it.Media) {
			return nil, nil
		}
		thumbKey = s.findThumbnail(ctx, it.Media)
	}

	url, err := s.blobs.SignedReadURL(ctx, it.StorageKey, s.urlTTL)
	if err != nil {
		return nil, err
	}

	thumbURL := url
	if thumbKey != "" {
		signed, err := s.blobs.SignedReadURL(ctx, thumbKey, s.urlTTL)
		if err != nil {
			return nil, err
		}
		thumbURL = signed
	}

	view := &models.MediaView{
		ID:           it.ID,
		URL:          url,
		ThumbnailURL: thumbURL,
		MediaType:    it.MediaType,
		UploaderID:   it.UserID,
		UploadedBy:   it.Username,
		UploadedAt:   it.UploadedAt,
	}
	if it.ProfileImage != nil {
		avatar, err := s.blobs.SignedReadURL(ctx, *it.ProfileImage, s.urlTTL)
		if err != nil {
			return nil, err
		}
		view.UserAvatar = &avatar
	}
	return view, nil
}

// originalExists reports a row without its blob. A failed lookup counts as present.
func (s *MediaService) originalExists(ctx context.Context, m models.Media) bool {
	ok, err := s.blobs.Exists(ctx, m.StorageKey)
	if err != nil {
		log.Warn().Err(err).Str("key", m.StorageKey).Msg("Failed to check original")
		return true
	}
	if !ok {
		log.Error().
			Str("media_id", m.ID).
			Str("group_id", m.GroupID).
			Str("key", m.StorageKey).
			Msg("Media row has no blob")
	}
	return ok
}

// findThumbnail tries the known derivative conventions. Empty means none exists.
func (s *MediaService) findThumbnail(ctx context.Context, m models.Media) string {
	for _, candidate := range storage.ThumbnailCandidates(m.StorageKey) {
		ok, err := s.blobs.Exists(ctx, candidate)
		if err != nil {
			log.Warn().Err(err).Str("key", candidate).Msg("Failed to check derivative")
			continue
		}
		if ok {
			return candidate
		}
	}
	return ""
}

// DeleteMedia deletes one of the user's own media
func (s *MediaService) DeleteMedia(ctx context.Context, userID, mediaID string) error {
	return s.BulkDelete(ctx, userID, []string{mediaID})
}

// BulkDelete deletes media owned by the user. If any id is missing or owned by someone else, nothing is deleted.
func (s *MediaService) BulkDelete(ctx context.Context, userID string, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return apperrors.Validation("no media ids given")
	}

	var deleted []models.Media
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		media, err := q.GetMediaByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(media) != len(ids) {
			return apperrors.ErrMediaNotFound
		}
		for _, m := range media {
			if m.UserID != userID {
				return apperrors.ErrNotOwner
			}
		}
		n, err := q.DeleteMedia(ctx, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return apperrors.ErrMediaNotFound
		}
		deleted = media
		return nil
	})
	if err != nil {
		return err
	}

	purgeBlobs(ctx, s.blobs, mediaKeys(deleted))
	log.Info().Str("user_id", userID).Int("count", len(deleted)).Msg("Media deleted")
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
