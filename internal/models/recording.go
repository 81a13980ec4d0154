package models

import "time"

// TimeLayout is the wall-clock format used in metadata records. RFC3339 keeps
// lexical ordering equal to chronological ordering for listing.
const TimeLayout = time.RFC3339

// RecordingMetadata is the durable per-session metadata record, serialized as
// metadata.json in the session directory. End-of-game fields (end_time,
// duration_seconds, final_score, winner, file_size_mb) stay zero until the
// session is stopped; once written to disk the record is never rewritten.
type RecordingMetadata struct {
	GameID          string   `json:"game_id"`
	GameType        string   `json:"game_type"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
	Players         []string `json:"players"`
	FinalScore      []int    `json:"final_score,omitempty"`
	Winner          string   `json:"winner,omitempty"`
	TotalRounds     int      `json:"total_rounds"`
	VideoResolution string   `json:"video_resolution"`
	VideoFPS        int      `json:"video_fps"`
	FileSizeMB      float64  `json:"file_size_mb"`
}

// Event is one entry of a session's append-only event timeline
// (one JSON object per line in events.jsonl).
type Event struct {
	Timestamp float64     `json:"timestamp"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
}

// RecordingSummary is returned when a recording is stopped.
type RecordingSummary struct {
	GameID     string  `json:"game_id"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
	FileSizeMB float64 `json:"file_size_mb"`
}

// RecordingRow is the flattened index projection of a completed recording,
// keyed by game_id. The index is derived from the filesystem record and is
// rebuildable from it; S3URL is set only after the archive worker has run.
type RecordingRow struct {
	GameID          string    `json:"game_id"`
	GameType        string    `json:"game_type"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Player1Name     string    `json:"player1_name,omitempty"`
	Player2Name     string    `json:"player2_name,omitempty"`
	Winner          string    `json:"winner,omitempty"`
	Player1Score    int       `json:"player1_score"`
	Player2Score    int       `json:"player2_score"`
	TargetRounds    int       `json:"target_rounds"`
	VideoPath       string    `json:"video_path"`
	VideoResolution string    `json:"video_resolution"`
	VideoFPS        int       `json:"video_fps"`
	FileSizeMB      float64   `json:"file_size_mb"`
	S3URL           string    `json:"s3_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// IndexRow flattens a metadata record into its index projection.
// videoPath should be the stable path to the session's video file.
func IndexRow(meta RecordingMetadata, videoPath string) RecordingRow {
	row := RecordingRow{
		GameID:          meta.GameID,
		GameType:        meta.GameType,
		StartTime:       meta.StartTime,
		EndTime:         meta.EndTime,
		DurationSeconds: meta.DurationSeconds,
		Winner:          meta.Winner,
		TargetRounds:    meta.TotalRounds,
		VideoPath:       videoPath,
		VideoResolution: meta.VideoResolution,
		VideoFPS:        meta.VideoFPS,
		FileSizeMB:      meta.FileSizeMB,
	}
	if len(meta.Players) > 0 {
		row.Player1Name = meta.Players[0]
	}
	if len(meta.Players) > 1 {
		row.Player2Name = meta.Players[1]
	}
	if len(meta.FinalScore) > 0 {
		row.Player1Score = meta.FinalScore[0]
	}
	if len(meta.FinalScore) > 1 {
		row.Player2Score = meta.FinalScore[1]
	}
	return row
}
