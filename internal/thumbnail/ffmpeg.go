package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// FFmpeg extracts video frames with the ffmpeg binary
type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

// FirstFrame writes the video to a temp file and asks ffmpeg for one PNG frame on stdout
func (f *FFmpeg) FirstFrame(ctx context.Context, video []byte) ([]byte, error) {
	tmp, err := os.CreateTemp("", "upload-*.video")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(video); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path,
		"-hide_banner", "-loglevel", "error",
		"-i", tmp.Name(),
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "png", "-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame")
	}
	return stdout.Bytes(), nil
}
