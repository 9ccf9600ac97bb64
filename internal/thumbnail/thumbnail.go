package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"group-media-backend/internal/config"
	"group-media-backend/internal/models"
)

// ContentType of every derivative
const ContentType = "image/jpeg"

var ErrNoFrameExtractor = errors.New("no frame extractor configured")

// FrameExtractor returns the first frame of a video as an encoded image
type FrameExtractor interface {
	FirstFrame(ctx context.Context, video []byte) ([]byte, error)
}

// Generator builds bounded JPEG derivatives of images and videos
type Generator struct {
	maxSize int
	quality int
	frames  FrameExtractor
}

// NewGenerator creates a generator. frames may be nil, in which case video derivatives fail.
func NewGenerator(cfg config.MediaConfig, frames FrameExtractor) *Generator {
	return &Generator{maxSize: cfg.ThumbnailSize, quality: cfg.JPEGQuality, frames: frames}
}

// Generate returns the derivative bytes for an upload
func (g *Generator) Generate(ctx context.Context, data []byte, mediaType models.MediaType) ([]byte, error) {
	switch mediaType {
	case models.MediaImage:
		return g.fromImage(data)
	case models.MediaVideo:
		if g.frames == nil {
			return nil, ErrNoFrameExtractor
		}
		frame, err := g.frames.FirstFrame(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract video frame: %w", err)
		}
		return g.fromImage(frame)
	default:
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}
}

func (g *Generator) fromImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > g.maxSize || b.Dy() > g.maxSize {
		img = imaging.Fit(img, g.maxSize, g.maxSize, imaging.Lanczos)
	}

	// JPEG has no alpha channel
	b = img.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(g.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
