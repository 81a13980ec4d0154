package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexRowFlattensPlayersAndScore(t *testing.T) {
	meta := RecordingMetadata{
		GameID:          "game_20260115_120000_aabbccdd",
		GameType:        "8ball",
		StartTime:       "2026-01-15T12:00:00Z",
		EndTime:         "2026-01-15T12:30:00Z",
		DurationSeconds: 1800,
		Players:         []string{"Alice", "Bob"},
		FinalScore:      []int{7, 4},
		Winner:          "Alice",
		TotalRounds:     11,
		VideoResolution: "1280x720",
		VideoFPS:        30,
		FileSizeMB:      512.5,
	}

	row := IndexRow(meta, "/data/recordings/game_20260115_120000_aabbccdd/video.mp4")

	assert.Equal(t, meta.GameID, row.GameID)
	assert.Equal(t, "Alice", row.Player1Name)
	assert.Equal(t, "Bob", row.Player2Name)
	assert.Equal(t, 7, row.Player1Score)
	assert.Equal(t, 4, row.Player2Score)
	assert.Equal(t, 11, row.TargetRounds)
	assert.Equal(t, "/data/recordings/game_20260115_120000_aabbccdd/video.mp4", row.VideoPath)
	assert.Equal(t, meta.FileSizeMB, row.FileSizeMB)
}

func TestIndexRowHandlesPartialData(t *testing.T) {
	row := IndexRow(RecordingMetadata{
		GameID:  "game_x",
		Players: []string{"Solo"},
	}, "/data/game_x/video.mp4")

	assert.Equal(t, "Solo", row.Player1Name)
	assert.Empty(t, row.Player2Name)
	assert.Zero(t, row.Player1Score)
	assert.Zero(t, row.Player2Score)
}
