package handler

import (
	"net/http"
	"os"
	"time"

	"auto-highlight/app/database"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"
	"auto-highlight/app/service"

	"github.com/gin-gonic/gin"
)

// AudioHandler 音频提取阶段处理器
type AudioHandler struct {
	logger     *logger.Logger
	dispatcher service.PhaseDispatcher
}

// NewAudioHandler 创建音频处理器
func NewAudioHandler(log *logger.Logger, d service.PhaseDispatcher) *AudioHandler {
	return &AudioHandler{logger: log, dispatcher: d}
}

// StartExtraction 启动后台音频提取任务
func (h *AudioHandler) StartExtraction(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if !video.CanStartAudioExtraction() {
		fail(c, http.StatusBadRequest, 400, "当前状态不允许提取音频: "+string(video.Status))
		return
	}

	if video.VideoPath == nil {
		fail(c, http.StatusNotFound, 404, "视频文件不存在")
		return
	}
	if _, err := os.Stat(*video.VideoPath); err != nil {
		fail(c, http.StatusNotFound, 404, "视频文件不存在")
		return
	}

	updates := map[string]interface{}{
		"status":                    model.StatusExtractingAudio,
		"audio_extraction_progress": 0.0,
		"audio_extraction_error":    nil,
	}
	if err := database.DB.Model(video).Updates(updates).Error; err != nil {
		fail(c, http.StatusInternalServerError, 500, "更新状态失败")
		return
	}

	if err := h.dispatcher.Submit(video.ID, service.PhaseAudioExtraction); err != nil {
		h.logger.Errorf("提交音频提取任务失败: VideoID=%d, %v", video.ID, err)
		fail(c, http.StatusInternalServerError, 500, "提交音频提取任务失败")
		return
	}

	h.logger.Infof("音频提取任务已启动: VideoID=%d", video.ID)
	success(c, gin.H{"video_id": video.ID, "status": model.StatusExtractingAudio}, "音频提取已启动")
}

// AudioProgress 查询音频提取进度
func (h *AudioHandler) AudioProgress(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}
	success(c, gin.H{
		"video_id": video.ID,
		"status":   video.Status,
		"progress": video.AudioExtractionProgress,
		"error":    video.AudioExtractionError,
	}, "获取音频提取进度成功")
}

// ReviewAudio 确认音频提取结果，重复确认不更新时间戳
func (h *AudioHandler) ReviewAudio(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if !video.CanReviewAudio() {
		fail(c, http.StatusBadRequest, 400, "当前状态不允许确认音频: "+string(video.Status))
		return
	}

	if video.AudioReviewedAt == nil {
		now := time.Now()
		if err := database.DB.Model(video).Update("audio_reviewed_at", &now).Error; err != nil {
			fail(c, http.StatusInternalServerError, 500, "更新状态失败")
			return
		}
		video.AudioReviewedAt = &now
	}

	success(c, gin.H{"video_id": video.ID, "reviewed_at": video.AudioReviewedAt}, "音频已确认")
}

// StreamAudio 流式返回提取出的音频文件
func (h *AudioHandler) StreamAudio(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if video.AudioPath == nil {
		fail(c, http.StatusNotFound, 404, "音频文件尚未提取")
		return
	}

	streamFile(c, *video.AudioPath, "audio/mpeg")
}
