package handler

import (
	"net/http"
	"time"

	"auto-highlight/app/database"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"
	"auto-highlight/app/service"

	"github.com/gin-gonic/gin"
)

// DownloadHandler 下载阶段处理器
type DownloadHandler struct {
	logger     *logger.Logger
	dispatcher service.PhaseDispatcher
}

// NewDownloadHandler 创建下载处理器
func NewDownloadHandler(log *logger.Logger, d service.PhaseDispatcher) *DownloadHandler {
	return &DownloadHandler{logger: log, dispatcher: d}
}

// StartDownload 启动后台下载任务
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if !video.CanStartDownload() {
		fail(c, http.StatusBadRequest, 400, "当前状态不允许下载: "+string(video.Status))
		return
	}

	updates := map[string]interface{}{
		"status":            model.StatusDownloading,
		"download_progress": 0.0,
		"download_error":    nil,
	}
	if err := database.DB.Model(video).Updates(updates).Error; err != nil {
		fail(c, http.StatusInternalServerError, 500, "更新状态失败")
		return
	}

	if err := h.dispatcher.Submit(video.ID, service.PhaseDownload); err != nil {
		h.logger.Errorf("提交下载任务失败: VideoID=%d, %v", video.ID, err)
		fail(c, http.StatusInternalServerError, 500, "提交下载任务失败")
		return
	}

	h.logger.Infof("下载任务已启动: VideoID=%d", video.ID)
	success(c, gin.H{"video_id": video.ID, "status": model.StatusDownloading}, "下载已启动")
}

// DownloadProgress 查询下载进度
func (h *DownloadHandler) DownloadProgress(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}
	success(c, gin.H{
		"video_id": video.ID,
		"status":   video.Status,
		"progress": video.DownloadProgress,
		"error":    video.DownloadError,
	}, "获取下载进度成功")
}

// ReviewDownload 确认下载结果，重复确认不更新时间戳
func (h *DownloadHandler) ReviewDownload(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if !video.CanReviewDownload() {
		fail(c, http.StatusBadRequest, 400, "当前状态不允许确认下载: "+string(video.Status))
		return
	}

	if video.DownloadReviewedAt == nil {
		now := time.Now()
		if err := database.DB.Model(video).Update("download_reviewed_at", &now).Error; err != nil {
			fail(c, http.StatusInternalServerError, 500, "更新状态失败")
			return
		}
		video.DownloadReviewedAt = &now
	}

	success(c, gin.H{"video_id": video.ID, "reviewed_at": video.DownloadReviewedAt}, "下载已确认")
}

// StreamVideo 流式返回已下载的视频文件
func (h *DownloadHandler) StreamVideo(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if video.VideoPath == nil {
		fail(c, http.StatusNotFound, 404, "视频文件尚未下载")
		return
	}

	streamFile(c, *video.VideoPath, "video/mp4")
}
