package service

import (
	"testing"

	"auto-highlight/app/config"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 打开内存数据库并迁移表结构
func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func newTestLogger() *logger.Logger {
	return logger.New(config.LogConfig{Level: "error", Format: "json"})
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.Root = root
	cfg.Storage.DownloadsDir = root + "/downloads"
	cfg.Storage.AudioDir = root + "/downloads/audio"
	cfg.Storage.TranscriptsDir = root + "/transcripts"
	cfg.Storage.ThumbnailsDir = root + "/thumbnails"
	cfg.Tools.YtDlp = "yt-dlp"
	cfg.Tools.FFmpeg = "ffmpeg"
	cfg.Tools.FFprobe = "ffprobe"
	cfg.Tools.Whisper = "whisper-cli"
	cfg.Pipeline.MaxConcurrent = 2
	cfg.Pipeline.ProcessTimeout = 300
	cfg.Pipeline.WhisperModel = "small"
	cfg.Pipeline.Language = "pt"
	cfg.Pipeline.StaleAfter = 30
	cfg.Pipeline.ReapSpec = "*/10 * * * *"

	if err := cfg.Storage.EnsureDirs(); err != nil {
		t.Fatalf("创建存储目录失败: %v", err)
	}
	return cfg
}

func createTestVideo(t *testing.T, db *gorm.DB, mutate func(*model.Video)) *model.Video {
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
	if err := db.Create(video).Error; err != nil {
		t.Fatalf("创建测试视频失败: %v", err)
	}
	return video
}
