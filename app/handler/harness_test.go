package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"auto-highlight/app/config"
	"auto-highlight/app/database"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"
	"auto-highlight/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeDispatcher 只记录提交的任务，不执行任何阶段
type fakeDispatcher struct {
	submissions []service.Phase
	err         error
}

func (f *fakeDispatcher) Submit(videoID uint, phase service.Phase) error {
	if f.err != nil {
		return f.err
	}
	f.submissions = append(f.submissions, phase)
	return nil
}

type testEnv struct {
	router     *gin.Engine
	db         *gorm.DB
	dispatcher *fakeDispatcher
	store      *service.TranscriptStore
}

// setupTest 用内存数据库和假调度器搭起完整路由
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.Video{}); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	originalDB := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = originalDB })

	log := logger.New(config.LogConfig{Level: "error", Format: "json"})
	dispatcher := &fakeDispatcher{}
	store := service.NewTranscriptStore()

	// 外部工具指向必然失败的命令，元数据路由只用于测试错误路径
	cfg := &config.Config{}
	cfg.Storage.ThumbnailsDir = t.TempDir()
	cfg.Tools.YtDlp = "false"
	cfg.Pipeline.ProcessTimeout = 5

	videoHandler := NewVideoHandler(log)
	metadataHandler := NewMetadataHandler(log, service.NewYouTubeService(cfg, log))
	downloadHandler := NewDownloadHandler(log, dispatcher)
	audioHandler := NewAudioHandler(log, dispatcher)
	transcriptionHandler := NewTranscriptionHandler(log, dispatcher, store)

	router := gin.New()
	videos := router.Group("/api/videos")
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

	return &testEnv{router: router, db: db, dispatcher: dispatcher, store: store}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求体失败: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) ApiResponse {
	t.Helper()

	var resp ApiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return resp
}

func (e *testEnv) createVideo(t *testing.T, mutate func(*model.Video)) *model.Video {
	t.Helper()

	video := &model.Video{
		YoutubeID:       "dQw4w9WgXcQ",
		Title:           "测试视频",
		DurationSeconds: 212,
		Status:          model.StatusPending,
	}
	if mutate != nil {
		mutate(video)
	}
	if err := e.db.Create(video).Error; err != nil {
		t.Fatalf("创建测试视频失败: %v", err)
	}
	return video
}
