package recording

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
)

// session is the in-memory state of the one active recording. It is owned
// exclusively by the Manager (under its lock) from Start until Stop, then
// discarded; all durable state lives in the filesystem and the index.
type session struct {
	gameID     string
	dir        string
	draft      models.RecordingMetadata
	startedAt  time.Time // monotonic, duration only; wall clock is in draft
	frameCount int
	sink       FrameSink
	events     *EventLog
}

// newGameID builds a sortable session identifier. The timestamp keeps IDs
// human-readable and ordered; the uuid suffix disambiguates two starts within
// the same second.
func newGameID(now time.Time) string {
	return fmt.Sprintf("game_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// newSession builds the session skeleton and its metadata draft.
func newSession(gameID, dir, gameType string, players []string, width, height, fps int, now time.Time) *session {
	if players == nil {
		players = []string{}
	}
	return &session{
		gameID:    gameID,
		dir:       dir,
		startedAt: now,
		draft: models.RecordingMetadata{
			GameID:          gameID,
			GameType:        gameType,
			StartTime:       now.Format(models.TimeLayout),
			Players:         players,
			VideoResolution: fmt.Sprintf("%dx%d", width, height),
			VideoFPS:        fps,
		},
	}
}

// finalized derives the immutable end-of-session metadata record from the
// draft. The draft itself is left untouched.
func (s *session) finalized(end time.Time, finalScore []int, winner string, totalRounds int, fileSizeMB float64) models.RecordingMetadata {
	meta := s.draft
	meta.EndTime = end.Format(models.TimeLayout)
	meta.DurationSeconds = end.Sub(s.startedAt).Seconds()
	meta.FinalScore = finalScore
	meta.Winner = winner
	meta.TotalRounds = totalRounds
	meta.FileSizeMB = fileSizeMB
	return meta
}
