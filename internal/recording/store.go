package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
)

// Artifact filenames inside a session directory.
const (
	VideoFile     = "video.mp4"
	EventsFile    = "events.jsonl"
	MetadataFile  = "metadata.json"
	ThumbnailFile = "thumbnail.jpg"
)

// Store reads and writes session artifacts under a single storage root, one
// directory per session. The filesystem is the primary store; the database
// index is derived from it.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates the storage root if needed.
func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// SessionDir returns the directory holding one session's artifacts.
func (s *Store) SessionDir(gameID string) string {
	return filepath.Join(s.root, gameID)
}

// VideoPath returns the session's video file path.
func (s *Store) VideoPath(gameID string) string {
	return filepath.Join(s.root, gameID, VideoFile)
}

// EventsPath returns the session's event log path.
func (s *Store) EventsPath(gameID string) string {
	return filepath.Join(s.root, gameID, EventsFile)
}

// MetadataPath returns the session's metadata record path.
func (s *Store) MetadataPath(gameID string) string {
	return filepath.Join(s.root, gameID, MetadataFile)
}

// ThumbnailPath returns the session's thumbnail path.
func (s *Store) ThumbnailPath(gameID string) string {
	return filepath.Join(s.root, gameID, ThumbnailFile)
}

// CreateSessionDir creates the directory for a new session.
func (s *Store) CreateSessionDir(gameID string) (string, error) {
	dir := s.SessionDir(gameID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

// WriteMetadata persists the finalized metadata record. The write goes
// through a temp file and rename so readers never observe a partial record.
func (s *Store) WriteMetadata(meta models.RecordingMetadata) error {
	body, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	path := s.MetadataPath(meta.GameID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0640); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads one session's metadata record.
// Returns ErrNotFound when the record does not exist.
func (s *Store) ReadMetadata(gameID string) (*models.RecordingMetadata, error) {
	body, err := os.ReadFile(s.MetadataPath(gameID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta models.RecordingMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// List scans the storage root and returns every readable metadata record,
// newest start_time first. Sessions with a missing or unreadable record are
// skipped, not fatal: an active session has no record yet, and one corrupt
// directory must not hide the rest.
func (s *Store) List() ([]models.RecordingMetadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	var recordings []models.RecordingMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.ReadMetadata(entry.Name())
		if err != nil {
			if err != ErrNotFound {
				s.logger.Warn("skipping unreadable metadata",
					zap.String("game_id", entry.Name()), zap.Error(err))
			}
			continue
		}
		recordings = append(recordings, *meta)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].StartTime > recordings[j].StartTime
	})
	return recordings, nil
}

// ReadEvents replays one session's event timeline in file order.
// A session with no event log yields an empty slice.
func (s *Store) ReadEvents(gameID string) ([]models.Event, error) {
	events, err := ReadEventLog(s.EventsPath(gameID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// VideoSizeMB returns the video file size in megabytes, or 0 when the file
// is absent.
func (s *Store) VideoSizeMB(gameID string) float64 {
	info, err := os.Stat(s.VideoPath(gameID))
	if err != nil {
		return 0
	}
	return float64(info.Size()) / (1024 * 1024)
}

// HasVideo reports whether the session's video file exists on disk.
func (s *Store) HasVideo(gameID string) bool {
	_, err := os.Stat(s.VideoPath(gameID))
	return err == nil
}

// MissingThumbnails returns the IDs of completed sessions that have a video
// file but no thumbnail, so thumbnails can be re-derived out-of-band.
func (s *Store) MissingThumbnails() ([]string, error) {
	recordings, err := s.List()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, meta := range recordings {
		if _, err := os.Stat(s.VideoPath(meta.GameID)); err != nil {
			continue
		}
		if _, err := os.Stat(s.ThumbnailPath(meta.GameID)); os.IsNotExist(err) {
			ids = append(ids, meta.GameID)
		}
	}
	return ids, nil
}
