package recording

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/queue"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/response"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/storage"
)

// IndexQuerier is the queryable side of the recordings index, mirroring the
// write side the Manager's Index interface covers. The database repository
// satisfies it; a nil value disables the index-backed endpoints.
type IndexQuerier interface {
	Get(ctx context.Context, gameID string) (*models.RecordingRow, error)
	List(ctx context.Context, limit, offset int) ([]models.RecordingRow, int, error)
	Delete(ctx context.Context, gameID string) error
}

// ArchiveEnqueuer hands finished recordings to the archival queue.
type ArchiveEnqueuer interface {
	EnqueueRecordingArchive(ctx context.Context, payload queue.RecordingArchivePayload) error
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	manager *Manager
	repo    IndexQuerier    // optional: DB-backed listing
	queue   ArchiveEnqueuer // optional: archive job enqueue on stop
	archive *storage.S3     // optional: presigned archive downloads
	logger  *zap.Logger

	defWidth  int
	defHeight int
	defFPS    int
}

// NewHandler creates a recording handler. q may be nil; the filesystem
// endpoints work without it.
func NewHandler(manager *Manager, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		manager: manager, logger: logger,
		defWidth: 1280, defHeight: 720, defFPS: 30,
	}
	if q != nil {
		h.queue = q
	}
	return h
}

// SetIndexRepo enables the database-backed listing and lookup endpoints.
func (h *Handler) SetIndexRepo(repo IndexQuerier) { h.repo = repo }

// SetArchive enables presigned download URLs for archived recordings.
func (h *Handler) SetArchive(s3 *storage.S3) { h.archive = s3 }

// SetVideoDefaults overrides the resolution and frame rate applied when a
// start request omits them.
func (h *Handler) SetVideoDefaults(width, height, fps int) {
	if width > 0 {
		h.defWidth = width
	}
	if height > 0 {
		h.defHeight = height
	}
	if fps > 0 {
		h.defFPS = fps
	}
}

type startRequest struct {
	GameType string   `json:"game_type" binding:"required"`
	Players  []string `json:"players"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	FPS      int      `json:"fps"`
}

type stopRequest struct {
	FinalScore  []int  `json:"final_score"`
	Winner      string `json:"winner"`
	TotalRounds int    `json:"total_rounds"`
}

type eventRequest struct {
	Event string      `json:"event" binding:"required"`
	Data  interface{} `json:"data"`
}

// StartRecording handles POST /api/recording/start.
func (h *Handler) StartRecording(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "game_type required")
		return
	}
	if req.Width == 0 {
		req.Width = h.defWidth
	}
	if req.Height == 0 {
		req.Height = h.defHeight
	}
	if req.FPS == 0 {
		req.FPS = h.defFPS
	}

	gameID, err := h.manager.Start(c.Request.Context(), StartOptions{
		GameType: req.GameType,
		Players:  req.Players,
		Width:    req.Width,
		Height:   req.Height,
		FPS:      req.FPS,
	})
	if err != nil {
		var sinkErr *SinkOpenError
		switch {
		case errors.Is(err, ErrAlreadyRecording):
			response.Conflict(c, "recording already in progress")
		case errors.As(err, &sinkErr):
			h.logger.Error("video sink open failed", zap.Error(err))
			response.BadRequest(c, "failed to open video sink")
		default:
			h.logger.Error("start recording failed", zap.Error(err))
			response.Internal(c, "failed to start recording")
		}
		return
	}
	response.OK(c, gin.H{"game_id": gameID, "status": "recording"})
}

// StopRecording handles POST /api/recording/stop.
func (h *Handler) StopRecording(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request body")
		return
	}

	summary, err := h.manager.Stop(c.Request.Context(), StopOptions{
		FinalScore:  req.FinalScore,
		Winner:      req.Winner,
		TotalRounds: req.TotalRounds,
	})
	if err != nil {
		if errors.Is(err, ErrNoActiveRecording) {
			response.NotFound(c, "no active recording")
			return
		}
		h.logger.Error("stop recording failed", zap.Error(err))
		response.Internal(c, "failed to stop recording")
		return
	}

	// Without an archive destination there is no consumer for the job.
	if h.queue != nil && h.archive != nil {
		payload := queue.RecordingArchivePayload{
			GameID:    summary.GameID,
			VideoPath: h.manager.Store().VideoPath(summary.GameID),
		}
		if err := h.queue.EnqueueRecordingArchive(c.Request.Context(), payload); err != nil {
			h.logger.Warn("archive enqueue failed", zap.String("game_id", summary.GameID), zap.Error(err))
		}
	}
	response.OK(c, summary)
}

// LogEvent handles POST /api/recording/events (game-rule engine over HTTP).
// Accepted even when no session is active, matching the in-process no-op.
func (h *Handler) LogEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "event required")
		return
	}
	h.manager.LogEvent(req.Event, req.Data)
	response.OK(c, gin.H{"recording": h.manager.IsRecording()})
}

// Status handles GET /api/recording/status.
func (h *Handler) Status(c *gin.Context) {
	gameID, active := h.manager.CurrentGameID()
	body := gin.H{"is_recording": active}
	if active {
		body["game_id"] = gameID
	}
	response.OK(c, body)
}

// List handles GET /api/recordings: the filesystem listing, newest first.
func (h *Handler) List(c *gin.Context) {
	recordings, err := h.manager.ListRecordings()
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	if recordings == nil {
		recordings = []models.RecordingMetadata{}
	}
	response.OK(c, gin.H{"recordings": recordings, "count": len(recordings)})
}

// ListIndexed handles GET /api/recordings/index: the paginated DB listing.
func (h *Handler) ListIndexed(c *gin.Context) {
	if h.repo == nil {
		response.ServiceUnavailable(c, "index not configured")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, total, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("index list failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	if rows == nil {
		rows = []models.RecordingRow{}
	}
	response.OK(c, gin.H{"recordings": rows, "total": total, "limit": limit, "offset": offset})
}

// GetByID handles GET /api/recordings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	meta, err := h.manager.GetMetadata(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("read metadata failed", zap.String("game_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to read recording")
		return
	}
	response.OK(c, meta)
}

// GetEvents handles GET /api/recordings/:id/events.
func (h *Handler) GetEvents(c *gin.Context) {
	events, err := h.manager.GetEvents(c.Param("id"))
	if err != nil {
		h.logger.Error("read events failed", zap.String("game_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to read events")
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	response.OK(c, gin.H{"events": events, "count": len(events)})
}

// DownloadURL handles GET /api/recordings/:id/download-url: a presigned GET
// for the archived copy. 404 until the archive worker has uploaded it.
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.archive == nil || h.repo == nil {
		response.ServiceUnavailable(c, "archive not configured")
		return
	}
	gameID := c.Param("id")
	row, err := h.repo.Get(c.Request.Context(), gameID)
	if err != nil {
		h.logger.Error("index lookup failed", zap.String("game_id", gameID), zap.Error(err))
		response.Internal(c, "failed to look up recording")
		return
	}
	if row == nil || row.S3URL == "" {
		response.NotFound(c, "recording not archived")
		return
	}
	url, err := h.archive.PresignDownload(c.Request.Context(), storage.VideoKey(gameID))
	if err != nil {
		h.logger.Error("presign failed", zap.String("game_id", gameID), zap.Error(err))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{
		"url":        url,
		"expires_in": int(h.archive.PresignExpire().Seconds()),
	})
}

// Delete handles DELETE /api/recordings/:id: removes the session directory,
// its index row, and any archived copies. The active session cannot be
// deleted.
func (h *Handler) Delete(c *gin.Context) {
	gameID := c.Param("id")
	if current, ok := h.manager.CurrentGameID(); ok && current == gameID {
		response.Conflict(c, "recording is in progress")
		return
	}
	if _, err := h.manager.GetMetadata(gameID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("read metadata failed", zap.String("game_id", gameID), zap.Error(err))
		response.Internal(c, "failed to read recording")
		return
	}

	if err := os.RemoveAll(h.manager.Store().SessionDir(gameID)); err != nil {
		h.logger.Error("remove session dir failed", zap.String("game_id", gameID), zap.Error(err))
		response.Internal(c, "failed to delete recording")
		return
	}

	// Index row and archive objects are cleaned up best-effort; an orphaned
	// index row is pruned by the next reconciler run.
	if h.repo != nil {
		if err := h.repo.Delete(c.Request.Context(), gameID); err != nil {
			h.logger.Warn("index delete failed", zap.String("game_id", gameID), zap.Error(err))
		}
	}
	if h.archive != nil {
		for _, key := range []string{storage.VideoKey(gameID), storage.ThumbnailKey(gameID)} {
			if err := h.archive.Delete(c.Request.Context(), key); err != nil {
				h.logger.Warn("archive delete failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	h.logger.Info("recording deleted", zap.String("game_id", gameID))
	response.NoContent(c)
}

// ServeVideo handles GET /api/recordings/:id/video with byte-range support.
func (h *Handler) ServeVideo(c *gin.Context) {
	path := h.manager.Store().VideoPath(c.Param("id"))
	if _, err := os.Stat(path); err != nil {
		response.NotFound(c, "video not found")
		return
	}
	c.Header("Content-Type", "video/mp4")
	c.File(path)
}

// ServeThumbnail handles GET /api/recordings/:id/thumbnail.
func (h *Handler) ServeThumbnail(c *gin.Context) {
	path := h.manager.Store().ThumbnailPath(c.Param("id"))
	if _, err := os.Stat(path); err != nil {
		response.NotFound(c, "thumbnail not found")
		return
	}
	c.Header("Content-Type", "image/jpeg")
	c.File(path)
}
