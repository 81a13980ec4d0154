package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag {
			require.Less(t, i+1, len(args), "flag %s has no value", flag)
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func TestSinkArgs(t *testing.T) {
	args := sinkArgs("/data/game_x/video.mp4", 1280, 720, 30)

	assert.Equal(t, "rawvideo", argValue(t, args, "-f"))
	assert.Equal(t, "bgr24", argValue(t, args, "-pixel_format"))
	assert.Equal(t, "1280x720", argValue(t, args, "-video_size"))
	assert.Equal(t, "30", argValue(t, args, "-framerate"))
	assert.Equal(t, "pipe:0", argValue(t, args, "-i"))
	assert.Equal(t, "libx264", argValue(t, args, "-c:v"))
	assert.Equal(t, "yuv420p", argValue(t, args, "-pix_fmt"))
	assert.Equal(t, "/data/game_x/video.mp4", args[len(args)-1])
	assert.Contains(t, args, "-y")
}

func TestThumbnailArgs(t *testing.T) {
	args := thumbnailArgs("/data/game_x/video.mp4", "/data/game_x/thumbnail.jpg")

	assert.Equal(t, "/data/game_x/video.mp4", argValue(t, args, "-i"))
	assert.Equal(t, "1", argValue(t, args, "-vframes"))
	assert.Equal(t, "scale=640:360", argValue(t, args, "-vf"))
	assert.Equal(t, "/data/game_x/thumbnail.jpg", args[len(args)-1])
}

func TestSinkOpenerRejectsInvalidParams(t *testing.T) {
	f := NewFFmpeg("ffmpeg", nil)
	open := f.SinkOpener()

	_, err := open("/tmp/out.mp4", 0, 720, 30)
	assert.Error(t, err)
	_, err = open("/tmp/out.mp4", 1280, -1, 30)
	assert.Error(t, err)
	_, err = open("/tmp/out.mp4", 1280, 720, 0)
	assert.Error(t, err)
}

func TestSinkOpenerRejectsOddDimensions(t *testing.T) {
	f := NewFFmpeg("ffmpeg", nil)
	open := f.SinkOpener()

	_, err := open("/tmp/out.mp4", 1281, 720, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "divisible by 2")
	_, err = open("/tmp/out.mp4", 1280, 721, 30)
	require.Error(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail([]byte("  short \n"), 200))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, tail(long, 200), 200)
}
