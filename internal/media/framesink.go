package media

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/recording"
)

// closeWait bounds how long Close waits for ffmpeg to finalize the container
// before killing it.
const closeWait = 10 * time.Second

// bytesPerPixel for the BGR24 raw frames the compositing pipeline produces.
const bytesPerPixel = 3

// frameSink feeds raw BGR24 frames to an ffmpeg child process over stdin and
// lets it encode H.264 into an MP4 container. Frames are written strictly in
// call order; the sink holds no queue, so a stalled encoder stalls the caller.
type frameSink struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	frameSize int
	logger    *zap.Logger
}

// sinkArgs builds the ffmpeg invocation for a raw-frame encode session.
func sinkArgs(outPath string, width, height, fps int) []string {
	return []string{
		"-f", "rawvideo",
		"-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-y",
		outPath,
	}
}

// SinkOpener returns a recording.SinkOpener that encodes via ffmpeg.
// Open fails fast on invalid parameters or an unstartable binary.
func (f *FFmpeg) SinkOpener() recording.SinkOpener {
	return func(path string, width, height, fps int) (recording.FrameSink, error) {
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("invalid resolution %dx%d", width, height)
		}
		// yuv420p subsamples chroma 2x2, so libx264 rejects odd dimensions.
		if width%2 != 0 || height%2 != 0 {
			return nil, fmt.Errorf("resolution %dx%d not divisible by 2", width, height)
		}
		if fps <= 0 {
			return nil, fmt.Errorf("invalid fps %d", fps)
		}

		cmd := exec.Command(f.path, sinkArgs(path, width, height, fps)...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("encoder stdin: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start encoder: %w", err)
		}

		f.logger.Debug("video sink opened",
			zap.String("path", path),
			zap.Int("width", width), zap.Int("height", height), zap.Int("fps", fps))
		return &frameSink{
			cmd:       cmd,
			stdin:     stdin,
			frameSize: width * height * bytesPerPixel,
			logger:    f.logger,
		}, nil
	}
}

// Write sends one raw frame to the encoder. The frame must match the
// resolution declared at open time.
func (s *frameSink) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin == nil {
		return fmt.Errorf("sink closed")
	}
	if len(frame) != s.frameSize {
		return fmt.Errorf("frame size %d, want %d", len(frame), s.frameSize)
	}
	if _, err := s.stdin.Write(frame); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// Close shuts the encoder's stdin and waits for it to flush and finalize the
// container, killing it after a timeout. Idempotent.
func (s *frameSink) Close() error {
	s.mu.Lock()
	stdin := s.stdin
	cmd := s.cmd
	s.stdin = nil
	s.cmd = nil
	s.mu.Unlock()

	if stdin == nil {
		return nil
	}
	if err := stdin.Close(); err != nil {
		s.logger.Warn("close encoder stdin", zap.Error(err))
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("encoder exit: %w", err)
		}
		return nil
	case <-time.After(closeWait):
		_ = cmd.Process.Kill()
		<-done
		return fmt.Errorf("encoder did not exit within %s", closeWait)
	}
}
