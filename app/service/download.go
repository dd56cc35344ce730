package service

import (
	"os"
	"time"

	"auto-highlight/app/config"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"

	"gorm.io/gorm"
)

// VideoDownloader 下载执行器依赖的外部拉取能力，便于用假实现测试
type VideoDownloader interface {
	Download(youtubeID, outputDir string, onProgress func(percent float64)) (string, error)
}

// DownloadExecutor 下载阶段执行器
type DownloadExecutor struct {
	logger     *logger.Logger
	cfg        *config.Config
	db         *gorm.DB
	downloader VideoDownloader
}

// NewDownloadExecutor 创建下载执行器
func NewDownloadExecutor(cfg *config.Config, log *logger.Logger, db *gorm.DB, downloader VideoDownloader) *DownloadExecutor {
	return &DownloadExecutor{
		logger:     log,
		cfg:        cfg,
		db:         db,
		downloader: downloader,
	}
}

// Run 执行一次下载。所有失败都落库为 download_failed，绝不向外抛出
func (e *DownloadExecutor) Run(videoID uint) {
	var video model.Video
	if err := e.db.First(&video, videoID).Error; err != nil {
		// 实体已被并发删除，执行器没有调用方可以汇报，静默结束
		e.logger.Warnf("下载任务找不到视频，跳过: VideoID=%d", videoID)
		return
	}

	e.logger.Infof("开始下载视频: VideoID=%d, YoutubeID=%s", video.ID, video.YoutubeID)

	if err := os.MkdirAll(e.cfg.Storage.DownloadsDir, 0755); err != nil {
		e.fail(videoID, err)
		return
	}

	tracker := newProgressTracker(e.db, videoID, "download_progress", 0.5)
	path, err := e.downloader.Download(video.YoutubeID, e.cfg.Storage.DownloadsDir, tracker.Update)
	if err != nil {
		e.logger.Errorf("下载视频失败: VideoID=%d, %v", videoID, err)
		e.fail(videoID, err)
		return
	}

	now := time.Now()
	if err := e.db.Model(&model.Video{}).Where("id = ?", videoID).Updates(map[string]interface{}{
		"video_path":        path,
		"status":            model.StatusDownloaded,
		"download_progress": 100.0,
		"download_error":    nil,
		"downloaded_at":     now,
	}).Error; err != nil {
		e.logger.Errorf("保存下载结果失败: VideoID=%d, %v", videoID, err)
		return
	}

	e.logger.Infof("下载完成: VideoID=%d, Path=%s", videoID, path)
}

// fail 重新读取最新行后落库失败状态，进度归零
func (e *DownloadExecutor) fail(videoID uint, cause error) {
	var video model.Video
	if err := e.db.First(&video, videoID).Error; err != nil {
		return
	}

	if err := e.db.Model(&model.Video{}).Where("id = ?", videoID).Updates(map[string]interface{}{
		"status":            model.StatusDownloadFailed,
		"download_error":    cause.Error(),
		"download_progress": 0.0,
	}).Error; err != nil {
		e.logger.Errorf("保存下载失败状态失败: VideoID=%d, %v", videoID, err)
	}
}
