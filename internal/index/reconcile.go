package index

import (
	"context"

	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/recording"
)

// ReconcileResult counts the outcome of one reconciliation pass.
type ReconcileResult struct {
	Synced  int
	Skipped int
	Pruned  int
	Failed  int
}

// Reconcile scans the filesystem store and upserts every completed session
// that is missing from the index. Per-session failures are logged and
// counted, never fatal: a later pass can pick them up again.
func Reconcile(ctx context.Context, store *recording.Store, repo *Repository, logger *zap.Logger) (ReconcileResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res ReconcileResult

	recordings, err := store.List()
	if err != nil {
		return res, err
	}

	for _, meta := range recordings {
		existing, err := repo.Get(ctx, meta.GameID)
		if err != nil {
			logger.Warn("index lookup failed", zap.String("game_id", meta.GameID), zap.Error(err))
			res.Failed++
			continue
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		if err := repo.Upsert(ctx, models.IndexRow(meta, store.VideoPath(meta.GameID))); err != nil {
			logger.Warn("index upsert failed", zap.String("game_id", meta.GameID), zap.Error(err))
			res.Failed++
			continue
		}
		logger.Info("recording synced to index", zap.String("game_id", meta.GameID))
		res.Synced++
	}

	onDisk := make(map[string]bool, len(recordings))
	for _, meta := range recordings {
		onDisk[meta.GameID] = true
	}
	pruned, err := pruneOrphans(ctx, repo, onDisk, logger)
	res.Pruned = pruned
	if err != nil {
		logger.Warn("orphan pruning incomplete", zap.Error(err))
	}
	return res, nil
}

// pruneOrphans deletes index rows whose session directory no longer exists
// (recordings removed out-of-band). Pages through the index so a large table
// does not load at once.
func pruneOrphans(ctx context.Context, repo *Repository, onDisk map[string]bool, logger *zap.Logger) (int, error) {
	const pageSize = 500

	// Collect first, delete after, so deletions cannot shift page offsets.
	var orphans []string
	for offset := 0; ; offset += pageSize {
		rows, _, err := repo.List(ctx, pageSize, offset)
		if err != nil {
			return 0, err
		}
		for _, row := range rows {
			if !onDisk[row.GameID] {
				orphans = append(orphans, row.GameID)
			}
		}
		if len(rows) < pageSize {
			break
		}
	}

	pruned := 0
	for _, gameID := range orphans {
		if err := repo.Delete(ctx, gameID); err != nil {
			logger.Warn("orphan delete failed", zap.String("game_id", gameID), zap.Error(err))
			continue
		}
		logger.Info("orphaned index row pruned", zap.String("game_id", gameID))
		pruned++
	}
	return pruned, nil
}
