// Package main reconciles on-disk recordings into the database index.
// Sessions recorded while the database was unreachable get their rows
// backfilled here.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xhujustin/billiards-analytics-v1.5/config"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/index"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/media"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/recording"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/database"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	store, err := recording.NewStore(cfg.Recording.Dir, logger)
	if err != nil {
		logger.Fatal("recordings dir", zap.Error(err))
	}

	result, err := index.Reconcile(ctx, store, index.NewRepository(pool), logger)
	if err != nil {
		logger.Fatal("reconcile", zap.Error(err))
	}
	logger.Info("reconcile finished",
		zap.Int("synced", result.Synced),
		zap.Int("skipped", result.Skipped),
		zap.Int("pruned", result.Pruned),
		zap.Int("failed", result.Failed),
	)

	backfillThumbnails(ctx, store, media.NewFFmpeg(cfg.Recording.FFmpegPath, logger), logger)
}

// backfillThumbnails re-derives thumbnails for completed sessions that have a
// video but lost (or never got) their still image.
func backfillThumbnails(ctx context.Context, store *recording.Store, ffmpeg *media.FFmpeg, logger *zap.Logger) {
	if err := ffmpeg.Available(); err != nil {
		logger.Warn("thumbnail backfill skipped", zap.Error(err))
		return
	}
	ids, err := store.MissingThumbnails()
	if err != nil {
		logger.Warn("thumbnail scan failed", zap.Error(err))
		return
	}
	for _, gameID := range ids {
		if err := ffmpeg.Extract(ctx, store.VideoPath(gameID), store.ThumbnailPath(gameID)); err != nil {
			logger.Warn("thumbnail backfill failed", zap.String("game_id", gameID), zap.Error(err))
			continue
		}
		logger.Info("thumbnail backfilled", zap.String("game_id", gameID))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
