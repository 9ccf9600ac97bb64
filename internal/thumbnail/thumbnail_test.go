package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group-media-backend/internal/config"
	"group-media-backend/internal/models"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestGenerator(frames FrameExtractor) *Generator {
	return NewGenerator(config.Default().Media, frames)
}

type stubFrames struct {
	frame []byte
	err   error
}

func (s stubFrames) FirstFrame(ctx context.Context, video []byte) ([]byte, error) {
	return s.frame, s.err
}

func TestGenerateBoundsDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 1200, 600, 300, 150},
		{"portrait", 400, 800, 150, 300},
		{"small stays", 120, 80, 120, 80},
	}

	g := newTestGenerator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := g.Generate(context.Background(), encodePNG(t, tt.w, tt.h, color.NRGBA{R: 200, A: 255}), models.MediaImage)
			require.NoError(t, err)

			img, err := jpeg.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}
}

func TestGenerateFlattensTransparency(t *testing.T) {
	g := newTestGenerator(nil)

	out, err := g.Generate(context.Background(), encodePNG(t, 10, 10, color.NRGBA{}), models.MediaImage)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, gr, b, _ := img.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, gr>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestGenerateRejectsGarbage(t *testing.T) {
	g := newTestGenerator(nil)

	_, err := g.Generate(context.Background(), []byte("not an image"), models.MediaImage)
	assert.ErrorContains(t, err, "failed to decode image")
}

func TestGenerateVideoUsesFirstFrame(t *testing.T) {
	frame := encodePNG(t, 640, 360, color.NRGBA{B: 255, A: 255})
	g := newTestGenerator(stubFrames{frame: frame})

	out, err := g.Generate(context.Background(), []byte("video bytes"), models.MediaVideo)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
}

func TestGenerateVideoErrors(t *testing.T) {
	_, err := newTestGenerator(nil).Generate(context.Background(), []byte("v"), models.MediaVideo)
	assert.ErrorIs(t, err, ErrNoFrameExtractor)

	boom := errors.New("boom")
	_, err = newTestGenerator(stubFrames{err: boom}).Generate(context.Background(), []byte("v"), models.MediaVideo)
	assert.ErrorIs(t, err, boom)
}
