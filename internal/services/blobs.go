package services

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
	"group-media-backend/internal/storage"
	"group-media-backend/internal/thumbnail"
)

const blobCleanupConcurrency = 8

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"m4v":  "video/x-m4v",
}

// Upload is a file received from a client
type Upload struct {
	Filename string
	Data     []byte
}

// MediaTypes classifies uploads by extension against the configured allow-lists
type MediaTypes struct {
	images map[string]bool
	videos map[string]bool
}

func NewMediaTypes(imageExts, videoExts []string) MediaTypes {
	mt := MediaTypes{images: make(map[string]bool), videos: make(map[string]bool)}
	for _, ext := range imageExts {
		mt.images[strings.ToLower(ext)] = true
	}
	for _, ext := range videoExts {
		mt.videos[strings.ToLower(ext)] = true
	}
	return mt
}

// Classify returns the media type and normalized extension of a filename
func (mt MediaTypes) Classify(filename string) (models.MediaType, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch {
	case ext == "":
		return "", "", apperrors.ErrUnsupportedType
	case mt.images[ext]:
		return models.MediaImage, ext, nil
	case mt.videos[ext]:
		return models.MediaVideo, ext, nil
	default:
		return "", "", apperrors.ErrUnsupportedType
	}
}

func contentType(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// imageKeys lists every blob an original key may own: itself and all derivative locations
func imageKeys(key string) []string {
	return append([]string{key}, storage.ThumbnailCandidates(key)...)
}

func mediaKeys(media []models.Media) []string {
	var keys []string
	for _, m := range media {
		keys = append(keys, imageKeys(m.StorageKey)...)
		if m.ThumbnailKey != nil && *m.ThumbnailKey != storage.ThumbnailKey(m.StorageKey) {
			keys = append(keys, *m.ThumbnailKey)
		}
	}
	return keys
}

// purgeBlobs deletes blobs whose rows are already gone. Failures are logged;
// an undeleted blob without a row is garbage, not corruption.
func purgeBlobs(ctx context.Context, blobs BlobStore, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(blobCleanupConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := blobs.Delete(ctx, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to delete blob")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// storeImage writes a profile or group picture and its derivative.
// It returns the original key; the derivative lives under the conventional key.
func storeImage(ctx context.Context, blobs BlobStore, thumbs Thumbnailer, types MediaTypes, up Upload) (string, error) {
	mediaType, ext, err := types.Classify(up.Filename)
	if err != nil {
		return "", err
	}
	if mediaType != models.MediaImage {
		return "", apperrors.ErrUnsupportedType
	}
	if len(up.Data) == 0 {
		return "", apperrors.ErrEmptyUpload
	}

	ctx = context.WithoutCancel(ctx)
	key := storage.NewMediaKey(ext)
	if err := blobs.Put(ctx, key, up.Data, contentType(ext)); err != nil {
		return "", err
	}

	thumb, err := thumbs.Generate(ctx, up.Data, models.MediaImage)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to build picture thumbnail")
		return key, nil
	}
	if err := blobs.Put(ctx, storage.ThumbnailKey(key), thumb, thumbnail.ContentType); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to store picture thumbnail")
	}
	return key, nil
}
