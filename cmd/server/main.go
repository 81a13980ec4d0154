// Package main runs the billiards recording HTTP server with WebSocket status
// feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xhujustin/billiards-analytics-v1.5/config"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/auth"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/camera"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/index"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/live"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/media"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/middleware"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/recording"
	"github.com/xhujustin/billiards-analytics-v1.5/internal/worker"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/database"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/queue"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/redis"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/response"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/storage"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/utils"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Recording storage is the source of truth; the server refuses to start
	// without it. The database index and queue are optional accelerators.
	store, err := recording.NewStore(cfg.Recording.Dir, logger)
	if err != nil {
		logger.Fatal("recordings dir", zap.Error(err))
	}

	ffmpeg := media.NewFFmpeg(cfg.Recording.FFmpegPath, logger)
	if err := ffmpeg.Available(); err != nil {
		logger.Fatal("ffmpeg", zap.Error(err))
	}

	var indexRepo *index.Repository
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Warn("recordings index disabled", zap.Error(err))
	} else {
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		indexRepo = index.NewRepository(pool)
	}

	var jobQueue *queue.Queue
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("archive queue disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.ArchiveEnabled() {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	hub := live.NewHub(logger)

	manager := recording.NewManager(store, ffmpeg.SinkOpener(), logger)
	manager.SetThumbnailer(ffmpeg)
	manager.SetNotifier(hub)
	if indexRepo != nil {
		manager.SetIndex(indexRepo)
	}

	cameraCtl := camera.NewController(cfg.Camera.DeviceID, nil, nil, logger)

	operatorHash := cfg.Operator.PasswordHash
	if operatorHash == "" && cfg.Operator.Password != "" {
		operatorHash = utils.MustHashPassword(cfg.Operator.Password)
	}
	if operatorHash == "" {
		logger.Fatal("operator credentials required (OPERATOR_PASSWORD or OPERATOR_PASSWORD_HASH)")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(jwtService, cfg.Operator.Username, operatorHash, logger)
	recordingHandler := recording.NewHandler(manager, jobQueue, logger)
	recordingHandler.SetVideoDefaults(cfg.Recording.DefaultWidth, cfg.Recording.DefaultHeight, cfg.Recording.DefaultFPS)
	// A typed nil inside the interface would defeat the handler's nil checks.
	if indexRepo != nil {
		recordingHandler.SetIndexRepo(indexRepo)
	}
	if s3Client != nil {
		recordingHandler.SetArchive(s3Client)
	}
	cameraHandler := camera.NewHandler(cameraCtl, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.POST("/auth/login", authHandler.Login)

	// Operator controls (JWT required)
	ctl := router.Group("/api")
	ctl.Use(middleware.JWT(jwtService))
	{
		ctl.POST("/recording/start", recordingHandler.StartRecording)
		ctl.POST("/recording/stop", recordingHandler.StopRecording)
		ctl.POST("/recording/events", recordingHandler.LogEvent)
		ctl.POST("/camera/switch", cameraHandler.Switch)
		ctl.DELETE("/recordings/:id", recordingHandler.Delete)
	}

	// Public reads
	api := router.Group("/api")
	{
		api.GET("/recording/status", recordingHandler.Status)
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/index", recordingHandler.ListIndexed)
		api.GET("/recordings/:id", recordingHandler.GetByID)
		api.GET("/recordings/:id/events", recordingHandler.GetEvents)
		api.GET("/recordings/:id/video", recordingHandler.ServeVideo)
		api.GET("/recordings/:id/thumbnail", recordingHandler.ServeThumbnail)
		api.GET("/recordings/:id/download-url", recordingHandler.DownloadURL)
		api.GET("/camera/list", cameraHandler.List)
	}

	// WebSocket status feed (recording and game events, no auth)
	router.GET("/ws", live.ServeWS(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background archiver (recording upload to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil && jobQueue != nil && indexRepo != nil {
		archiver := worker.NewArchiveProcessor(store, indexRepo, s3Client, jobQueue, logger)
		go archiver.Run(workerCtx)
		logger.Info("archive worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// An in-flight recording must be finalized before exit so the session
	// gets its metadata, thumbnail and index row.
	if manager.IsRecording() {
		if _, err := manager.Stop(context.Background(), recording.StopOptions{}); err != nil {
			logger.Error("stop recording on shutdown", zap.Error(err))
		}
	}

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
