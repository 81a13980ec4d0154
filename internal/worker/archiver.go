// Package worker processes recording archive jobs: upload the finished video
// and thumbnail to S3, then stamp the archive URL on the index row.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/index"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/recording"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/queue"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/storage"
)

// ArchiveProcessor uploads completed recordings to the S3 archive.
type ArchiveProcessor struct {
	store  *recording.Store
	repo   *index.Repository
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewArchiveProcessor creates an archive processor.
func NewArchiveProcessor(store *recording.Store, repo *index.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{store: store, repo: repo, s3: s3, queue: q, logger: logger}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	// The metadata record is the authority that this session completed.
	if _, err := p.store.ReadMetadata(payload.GameID); err != nil {
		return fmt.Errorf("metadata for %s: %w", payload.GameID, err)
	}

	if p.repo != nil {
		row, err := p.repo.Get(ctx, payload.GameID)
		if err == nil && row != nil && row.S3URL != "" {
			p.logger.Info("recording already archived", zap.String("game_id", payload.GameID))
			return nil
		}
	}

	videoURL, err := p.uploadFile(ctx, p.store.VideoPath(payload.GameID), storage.VideoKey(payload.GameID), "video/mp4")
	if err != nil {
		return fmt.Errorf("archive video: %w", err)
	}

	// The thumbnail may legitimately not exist (zero decodable frames).
	thumbPath := p.store.ThumbnailPath(payload.GameID)
	if _, err := os.Stat(thumbPath); err == nil {
		if _, err := p.uploadFile(ctx, thumbPath, storage.ThumbnailKey(payload.GameID), "image/jpeg"); err != nil {
			p.logger.Warn("archive thumbnail failed", zap.String("game_id", payload.GameID), zap.Error(err))
		}
	}

	if p.repo != nil {
		if err := p.repo.SetArchiveURL(ctx, payload.GameID, videoURL); err != nil {
			p.logger.Error("stamp archive url failed", zap.String("game_id", payload.GameID), zap.Error(err))
			return fmt.Errorf("update index: %w", err)
		}
	}

	p.logger.Info("recording archived",
		zap.String("game_id", payload.GameID), zap.String("s3_url", videoURL))
	return nil
}

func (p *ArchiveProcessor) uploadFile(ctx context.Context, path, key, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return p.s3.Upload(ctx, key, contentType, f, info.Size())
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("archive worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
