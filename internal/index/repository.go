// Package index maintains the queryable database projection of completed
// recordings. The filesystem metadata records stay the source of truth; this
// table is a derived cache, rebuildable by the reconciler.
package index

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
)

// Repository handles recording index persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recording index repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const rowColumns = `game_id, game_type, start_time, COALESCE(end_time,''), duration_seconds,
		COALESCE(player1_name,''), COALESCE(player2_name,''), COALESCE(winner,''),
		player1_score, player2_score, target_rounds, video_path, video_resolution,
		video_fps, file_size_mb, COALESCE(s3_url,''), created_at`

// Upsert inserts or replaces the index row for a game.
func (r *Repository) Upsert(ctx context.Context, row models.RecordingRow) error {
	const q = `INSERT INTO recordings (game_id, game_type, start_time, end_time, duration_seconds,
			player1_name, player2_name, winner, player1_score, player2_score, target_rounds,
			video_path, video_resolution, video_fps, file_size_mb)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (game_id) DO UPDATE SET
			game_type = EXCLUDED.game_type,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			duration_seconds = EXCLUDED.duration_seconds,
			player1_name = EXCLUDED.player1_name,
			player2_name = EXCLUDED.player2_name,
			winner = EXCLUDED.winner,
			player1_score = EXCLUDED.player1_score,
			player2_score = EXCLUDED.player2_score,
			target_rounds = EXCLUDED.target_rounds,
			video_path = EXCLUDED.video_path,
			video_resolution = EXCLUDED.video_resolution,
			video_fps = EXCLUDED.video_fps,
			file_size_mb = EXCLUDED.file_size_mb`
	_, err := r.pool.Exec(ctx, q,
		row.GameID, row.GameType, row.StartTime, row.EndTime, row.DurationSeconds,
		row.Player1Name, row.Player2Name, row.Winner, row.Player1Score, row.Player2Score,
		row.TargetRounds, row.VideoPath, row.VideoResolution, row.VideoFPS, row.FileSizeMB)
	return err
}

// Get returns the index row for a game, or nil when none exists.
func (r *Repository) Get(ctx context.Context, gameID string) (*models.RecordingRow, error) {
	const q = `SELECT ` + rowColumns + ` FROM recordings WHERE game_id = $1`
	var row models.RecordingRow
	err := r.pool.QueryRow(ctx, q, gameID).Scan(
		&row.GameID, &row.GameType, &row.StartTime, &row.EndTime, &row.DurationSeconds,
		&row.Player1Name, &row.Player2Name, &row.Winner, &row.Player1Score, &row.Player2Score,
		&row.TargetRounds, &row.VideoPath, &row.VideoResolution, &row.VideoFPS,
		&row.FileSizeMB, &row.S3URL, &row.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// List returns a page of index rows, newest start_time first, plus the total
// row count for pagination.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.RecordingRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `SELECT ` + rowColumns + ` FROM recordings ORDER BY start_time DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.RecordingRow
	for rows.Next() {
		var row models.RecordingRow
		if err := rows.Scan(
			&row.GameID, &row.GameType, &row.StartTime, &row.EndTime, &row.DurationSeconds,
			&row.Player1Name, &row.Player2Name, &row.Winner, &row.Player1Score, &row.Player2Score,
			&row.TargetRounds, &row.VideoPath, &row.VideoResolution, &row.VideoFPS,
			&row.FileSizeMB, &row.S3URL, &row.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, row)
	}
	return list, total, rows.Err()
}

// SetArchiveURL stamps the S3 archive location on an indexed recording.
func (r *Repository) SetArchiveURL(ctx context.Context, gameID, s3URL string) error {
	const q = `UPDATE recordings SET s3_url = $1 WHERE game_id = $2`
	_, err := r.pool.Exec(ctx, q, s3URL, gameID)
	return err
}

// Delete removes a game's index row. The filesystem record is untouched.
func (r *Repository) Delete(ctx context.Context, gameID string) error {
	const q = `DELETE FROM recordings WHERE game_id = $1`
	_, err := r.pool.Exec(ctx, q, gameID)
	return err
}
