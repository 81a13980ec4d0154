package recording

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
)

// FrameSink writes composited video frames in call order for one session.
type FrameSink interface {
	Write(frame []byte) error
	Close() error
}

// SinkOpener opens a FrameSink bound to the given output path, resolution and
// frame rate. It must fail fast when the encoder cannot be initialized.
type SinkOpener func(path string, width, height, fps int) (FrameSink, error)

// Thumbnailer derives a still image from a finished video file.
type Thumbnailer interface {
	Extract(ctx context.Context, videoPath, thumbnailPath string) error
}

// Index is the queryable database projection of completed recordings. It is a
// derived cache: its unavailability never blocks the recording lifecycle.
type Index interface {
	Upsert(ctx context.Context, row models.RecordingRow) error
}

// Notifier publishes live status updates (e.g. to WebSocket clients).
// Implementations must not block.
type Notifier interface {
	Notify(event string, payload interface{})
}

// StartOptions are the parameters of a new recording session.
type StartOptions struct {
	GameType string
	Players  []string
	Width    int
	Height   int
	FPS      int
}

// StopOptions carry the end-of-game result into the finalized metadata.
type StopOptions struct {
	FinalScore  []int
	Winner      string
	TotalRounds int
}

// Manager owns the single active recording session and drives its lifecycle:
// start, frame/event ingestion, and the stop-time consolidation that persists
// metadata, thumbnail and index row. One mutex serializes all mutating
// callers (capture loop, rule engine, operator); lock hold time is bounded by
// one synchronous write. Read queries go straight to the Store and need no
// coordination, since an active session has no metadata record yet.
type Manager struct {
	store    *Store
	openSink SinkOpener
	thumbs   Thumbnailer
	index    Index
	notify   Notifier
	logger   *zap.Logger

	mu     sync.Mutex
	active *session
}

// NewManager creates a recording manager over the given store and sink opener.
func NewManager(store *Store, openSink SinkOpener, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, openSink: openSink, logger: logger}
}

// SetThumbnailer sets the optional thumbnail extractor.
func (m *Manager) SetThumbnailer(t Thumbnailer) { m.thumbs = t }

// SetIndex sets the optional database index.
func (m *Manager) SetIndex(idx Index) { m.index = idx }

// SetNotifier sets the optional live status notifier.
func (m *Manager) SetNotifier(n Notifier) { m.notify = n }

// Store exposes the underlying artifact store (read queries, file serving).
func (m *Manager) Store() *Store { return m.store }

// Start begins a new recording session and returns its game ID. It fails
// with ErrAlreadyRecording while a session is active, and with SinkOpenError
// when the encoder cannot be opened (the session directory may remain on
// disk as garbage; no session is left active).
func (m *Manager) Start(ctx context.Context, opts StartOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return "", ErrAlreadyRecording
	}

	now := time.Now()
	gameID := newGameID(now)
	if _, err := m.store.CreateSessionDir(gameID); err != nil {
		return "", err
	}

	videoPath := m.store.VideoPath(gameID)
	sink, err := m.openSink(videoPath, opts.Width, opts.Height, opts.FPS)
	if err != nil {
		return "", &SinkOpenError{Path: videoPath, Err: err}
	}

	events, err := OpenEventLog(m.store.EventsPath(gameID))
	if err != nil {
		_ = sink.Close()
		return "", err
	}

	sess := newSession(gameID, m.store.SessionDir(gameID), opts.GameType, opts.Players, opts.Width, opts.Height, opts.FPS, now)
	sess.sink = sink
	sess.events = events
	m.active = sess

	m.appendEvent("game_start", map[string]interface{}{
		"game_type": opts.GameType,
		"players":   sess.draft.Players,
	})

	m.logger.Info("recording started",
		zap.String("game_id", gameID),
		zap.String("game_type", opts.GameType),
		zap.String("resolution", sess.draft.VideoResolution),
		zap.Int("fps", opts.FPS),
	)
	if m.notify != nil {
		m.notify.Notify("recording_started", map[string]interface{}{
			"game_id":   gameID,
			"game_type": opts.GameType,
			"players":   sess.draft.Players,
		})
	}
	return gameID, nil
}

// WriteFrame forwards one frame to the video sink and reports acceptance.
// It is a no-op returning false when no session is active. A sink write
// failure loses that single frame, never the session: the error is logged
// and subsequent frames keep being accepted.
func (m *Manager) WriteFrame(frame []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return false
	}
	if err := m.active.sink.Write(frame); err != nil {
		m.logger.Warn("frame write failed",
			zap.String("game_id", m.active.gameID), zap.Error(err))
		return false
	}
	m.active.frameCount++
	return true
}

// LogEvent appends a durably-flushed game event with the current wall-clock
// timestamp. It is a no-op when no session is active and never returns an
// error to the caller: event logging must not abort gameplay.
func (m *Manager) LogEvent(eventType string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return
	}
	m.appendEvent(eventType, data)
	if m.notify != nil {
		m.notify.Notify("game_event", map[string]interface{}{
			"game_id": m.active.gameID,
			"event":   eventType,
			"data":    data,
		})
	}
}

// appendEvent writes one event to the active session's log. Caller holds the
// lock and has checked m.active.
func (m *Manager) appendEvent(eventType string, data interface{}) {
	e := models.Event{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Event:     eventType,
		Data:      data,
	}
	if err := m.active.events.Append(e); err != nil {
		m.logger.Warn("event append failed",
			zap.String("game_id", m.active.gameID),
			zap.String("event", eventType), zap.Error(err))
	}
}

// Stop finalizes the active session: closes the sinks, derives the immutable
// metadata record, and runs the best-effort consolidation steps (thumbnail,
// metadata record, index row). It fails with ErrNoActiveRecording when no
// session is active. After Stop returns the video, event log and metadata
// record are durable regardless of secondary-step outcomes, and a new Start
// is immediately permitted.
func (m *Manager) Stop(ctx context.Context, opts StopOptions) (models.RecordingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return models.RecordingSummary{}, ErrNoActiveRecording
	}
	sess := m.active
	gameID := sess.gameID

	m.appendEvent("game_end", map[string]interface{}{
		"winner":       opts.Winner,
		"final_score":  opts.FinalScore,
		"total_rounds": opts.TotalRounds,
	})

	if err := sess.sink.Close(); err != nil {
		m.logger.Error("close video sink failed", zap.String("game_id", gameID), zap.Error(err))
	}
	if err := sess.events.Close(); err != nil {
		m.logger.Error("close event log failed", zap.String("game_id", gameID), zap.Error(err))
	}

	hasVideo := m.store.HasVideo(gameID)
	sizeMB := 0.0
	if hasVideo {
		sizeMB = m.store.VideoSizeMB(gameID)
	}
	meta := sess.finalized(time.Now(), opts.FinalScore, opts.Winner, opts.TotalRounds, sizeMB)

	// May fail, must not abort: the video is already safe on disk, so no
	// secondary artifact holds the stop hostage or rolls back a prior step.
	steps := []struct {
		name string
		run  func() error
	}{
		{"thumbnail", func() error {
			if m.thumbs == nil || !hasVideo {
				return nil
			}
			return m.thumbs.Extract(ctx, m.store.VideoPath(gameID), m.store.ThumbnailPath(gameID))
		}},
		{"metadata", func() error {
			return m.store.WriteMetadata(meta)
		}},
		{"index", func() error {
			if m.index == nil {
				return nil
			}
			return m.index.Upsert(ctx, models.IndexRow(meta, m.store.VideoPath(gameID)))
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			m.logger.Error("finalize step failed",
				zap.String("step", step.name),
				zap.String("game_id", gameID), zap.Error(err))
		}
	}

	summary := models.RecordingSummary{
		GameID:     gameID,
		Duration:   meta.DurationSeconds,
		FrameCount: sess.frameCount,
		FileSizeMB: math.Round(sizeMB*100) / 100,
	}
	m.active = nil

	m.logger.Info("recording stopped",
		zap.String("game_id", gameID),
		zap.Float64("duration", summary.Duration),
		zap.Int("frame_count", summary.FrameCount),
		zap.Float64("file_size_mb", summary.FileSizeMB),
	)
	if m.notify != nil {
		m.notify.Notify("recording_stopped", summary)
	}
	return summary, nil
}

// IsRecording reports whether a session is currently active.
func (m *Manager) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// CurrentGameID returns the active session's ID, if any.
func (m *Manager) CurrentGameID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", false
	}
	return m.active.gameID, true
}

// ListRecordings returns every completed session's metadata, newest first.
func (m *Manager) ListRecordings() ([]models.RecordingMetadata, error) {
	return m.store.List()
}

// GetMetadata returns one session's metadata record, or ErrNotFound.
func (m *Manager) GetMetadata(gameID string) (*models.RecordingMetadata, error) {
	return m.store.ReadMetadata(gameID)
}

// GetEvents replays one session's event timeline in order.
func (m *Manager) GetEvents(gameID string) ([]models.Event, error) {
	return m.store.ReadEvents(gameID)
}
