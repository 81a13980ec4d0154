// Package media wraps ffmpeg for video encoding and thumbnail extraction.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// FFmpeg locates and invokes the ffmpeg binary.
type FFmpeg struct {
	path   string
	logger *zap.Logger
}

// NewFFmpeg creates an ffmpeg wrapper. An empty path means "ffmpeg" on PATH.
func NewFFmpeg(path string, logger *zap.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{path: path, logger: logger}
}

// Available checks that the ffmpeg binary can be executed.
func (f *FFmpeg) Available() error {
	out, err := exec.Command(f.path, "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", f.path, err)
	}
	if !strings.Contains(string(out), "ffmpeg version") {
		return fmt.Errorf("unexpected ffmpeg -version output")
	}
	return nil
}

// Version returns the first line of ffmpeg's version banner.
func (f *FFmpeg) Version() (string, error) {
	out, err := exec.Command(f.path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg version: %w", err)
	}
	lines := strings.SplitN(string(out), "\n", 2)
	return strings.TrimSpace(lines[0]), nil
}

// Thumbnail target: first decodable frame downscaled to 640x360 JPEG.
const (
	thumbWidth  = 640
	thumbHeight = 360
)

// thumbnailArgs builds the argument list for first-frame extraction.
func thumbnailArgs(videoPath, thumbnailPath string) []string {
	return []string{
		"-i", videoPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", thumbWidth, thumbHeight),
		"-q:v", "4",
		"-y",
		thumbnailPath,
	}
}

// Extract decodes the first frame of a finished video, downscales it and
// writes a JPEG thumbnail. A video with zero decodable frames yields an
// error; callers treat that as "thumbnail unavailable", not as a recording
// failure.
func (f *FFmpeg) Extract(ctx context.Context, videoPath, thumbnailPath string) error {
	cmd := exec.CommandContext(ctx, f.path, thumbnailArgs(videoPath, thumbnailPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("extract thumbnail: %w: %s", err, tail(out, 200))
	}
	return nil
}

// tail returns at most n trailing bytes of ffmpeg output for error context.
func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
