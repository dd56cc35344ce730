package server

import (
	"context"
	"net/http"
	"time"

	"auto-highlight/app/config"
	"auto-highlight/app/database"
	"auto-highlight/app/filewatcher"
	"auto-highlight/app/handler"
	"auto-highlight/app/logger"
	"auto-highlight/app/service"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config      *config.Config
	Logger      *logger.Logger
	gin         *gin.Engine
	http        *http.Server
	youtube     *service.YouTubeService
	dispatcher  *service.Dispatcher
	maintenance *service.MaintenanceService
	watcher     *filewatcher.TranscriptWatcher
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger) *Server {
	router := gin.Default()

	youtube := service.NewYouTubeService(cfg, log)
	store := service.NewTranscriptStore()

	dispatcher := service.NewDispatcher(log, cfg.Pipeline.MaxConcurrent)
	dispatcher.Register(service.PhaseDownload,
		service.NewDownloadExecutor(cfg, log, database.DB, youtube))
	dispatcher.Register(service.PhaseAudioExtraction,
		service.NewAudioExtractionExecutor(cfg, log, database.DB))
	dispatcher.Register(service.PhaseTranscription,
		service.NewTranscriptionExecutor(cfg, log, database.DB, store))

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:      cfg,
		Logger:      log,
		youtube:     youtube,
		dispatcher:  dispatcher,
		maintenance: service.NewMaintenanceService(cfg, log, database.DB),
	}

	if watcher, err := filewatcher.New(cfg.Storage.TranscriptsDir, log); err != nil {
		log.Warnf("创建转写目录监控失败: %v", err)
	} else {
		s.watcher = watcher
	}

	s.setupRoutes(store)

	return s
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if err := s.maintenance.Start(); err != nil {
		s.Logger.Errorf("启动定时维护任务失败: %v", err)
	}
	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			s.Logger.Warnf("启动转写目录监控失败: %v", err)
		}
	}

	return s.http.ListenAndServe()
}

// Shutdown 按依赖顺序停止各后台服务并关闭监听
func (s *Server) Shutdown(ctx context.Context) error {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.Logger.Warnf("停止转写目录监控失败: %v", err)
		}
	}
	s.maintenance.Stop()
	s.dispatcher.Stop(2 * time.Second)

	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes(store *service.TranscriptStore) {
	videoHandler := handler.NewVideoHandler(s.Logger)
	metadataHandler := handler.NewMetadataHandler(s.Logger, s.youtube)
	downloadHandler := handler.NewDownloadHandler(s.Logger, s.dispatcher)
	audioHandler := handler.NewAudioHandler(s.Logger, s.dispatcher)
	transcriptionHandler := handler.NewTranscriptionHandler(s.Logger, s.dispatcher, store)

	// 频道头像静态目录
	s.gin.Static("/thumbnails", s.Config.Storage.ThumbnailsDir)

	s.gin.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.gin.Group("/api")

	videos := api.Group("/videos")
	{
		videos.POST("/", videoHandler.CreateVideo)
		videos.GET("/", videoHandler.ListVideos)
		videos.GET("/:id", videoHandler.GetVideo)
		videos.DELETE("/:id", videoHandler.DeleteVideo)

		videos.POST("/fetch-metadata", metadataHandler.FetchMetadata)
		videos.POST("/:id/refresh-metadata", metadataHandler.RefreshMetadata)

		videos.POST("/:id/download", downloadHandler.StartDownload)
		videos.GET("/:id/download-progress", downloadHandler.DownloadProgress)
		videos.POST("/:id/review-download", downloadHandler.ReviewDownload)
		videos.GET("/:id/stream", downloadHandler.StreamVideo)

		videos.POST("/:id/extract-audio", audioHandler.StartExtraction)
		videos.GET("/:id/audio-progress", audioHandler.AudioProgress)
		videos.POST("/:id/review-audio", audioHandler.ReviewAudio)
		videos.GET("/:id/audio-stream", audioHandler.StreamAudio)

		videos.POST("/:id/transcribe", transcriptionHandler.StartTranscription)
		videos.GET("/:id/transcription-progress", transcriptionHandler.TranscriptionProgress)
		videos.POST("/:id/review-transcription", transcriptionHandler.ReviewTranscription)
		videos.GET("/:id/transcript", transcriptionHandler.GetTranscript)
		videos.PUT("/:id/transcript", transcriptionHandler.UpdateTranscript)
	}
}
