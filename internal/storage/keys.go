package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	mediaPrefix  = "media/"
	thumbsPrefix = "thumbs/"
	legacyThumb  = "thumb_"
)

// NewMediaKey returns a fresh collision-free key for an original upload.
// The client filename is never part of the key.
func NewMediaKey(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s%s.%s", mediaPrefix, uuid.New().String(), ext)
}

// ThumbnailKey derives the derivative key from an original key.
// media/<stem> maps to thumbs/<stem>; any other key gets the legacy thumb_ prefix.
func ThumbnailKey(key string) string {
	if rest, ok := strings.CutPrefix(key, mediaPrefix); ok {
		return thumbsPrefix + rest
	}
	return legacyThumb + key
}

// ThumbnailCandidates lists every key a derivative may live under, canonical first.
// Objects written by older deployments used either convention.
func ThumbnailCandidates(key string) []string {
	canonical := ThumbnailKey(key)
	legacy := legacyThumb + key
	if legacy == canonical {
		return []string{canonical}
	}
	return []string{canonical, legacy}
}
