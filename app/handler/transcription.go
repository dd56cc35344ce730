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

// TranscriptionHandler 转写阶段处理器
type TranscriptionHandler struct {
	logger     *logger.Logger
	dispatcher service.PhaseDispatcher
	store      *service.TranscriptStore
}

// NewTranscriptionHandler 创建转写处理器
func NewTranscriptionHandler(log *logger.Logger, d service.PhaseDispatcher, store *service.TranscriptStore) *TranscriptionHandler {
	return &TranscriptionHandler{logger: log, dispatcher: d, store: store}
}

// StartTranscription 启动后台转写任务
func (h *TranscriptionHandler) StartTranscription(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if !video.CanStartTranscription() {
		fail(c, http.StatusBadRequest, 400, "当前状态不允许转写: "+string(video.Status))
		return
	}

	if video.AudioPath == nil {
		fail(c, http.StatusNotFound, 404, "音频文件不存在")
		return
	}
	if _, err := os.Stat(*video.AudioPath); err != nil {
		fail(c, http.StatusNotFound, 404, "音频文件不存在")
		return
	}

	updates := map[string]interface{}{
		"status":                 model.StatusTranscribing,
		"transcription_progress": 0.0,
		"transcription_error":    nil,
	}
	if err := database.DB.Model(video).Updates(updates).Error; err != nil {
		fail(c, http.StatusInternalServerError, 500, "更新状态失败")
		return
	}

	if err := h.dispatcher.Submit(video.ID, service.PhaseTranscription); err != nil {
		h.logger.Errorf("提交转写任务失败: VideoID=%d, %v", video.ID, err)
		fail(c, http.StatusInternalServerError, 500, "提交转写任务失败")
		return
	}

	h.logger.Infof("转写任务已启动: VideoID=%d", video.ID)
	success(c, gin.H{"video_id": video.ID, "status": model.StatusTranscribing}, "转写已启动")
}

// TranscriptionProgress 查询转写进度
func (h *TranscriptionHandler) TranscriptionProgress(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}
	success(c, gin.H{
		"video_id": video.ID,
		"status":   video.Status,
		"progress": video.TranscriptionProgress,
		"error":    video.TranscriptionError,
	}, "获取转写进度成功")
}

// ReviewTranscription 确认转写结果，重复确认不更新时间戳
func (h *TranscriptionHandler) ReviewTranscription(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if !video.CanReviewTranscription() {
		fail(c, http.StatusBadRequest, 400, "当前状态不允许确认转写: "+string(video.Status))
		return
	}

	if video.TranscriptionReviewedAt == nil {
		now := time.Now()
		if err := database.DB.Model(video).Update("transcription_reviewed_at", &now).Error; err != nil {
			fail(c, http.StatusInternalServerError, 500, "更新状态失败")
			return
		}
		video.TranscriptionReviewedAt = &now
	}

	success(c, gin.H{"video_id": video.ID, "reviewed_at": video.TranscriptionReviewedAt}, "转写已确认")
}

// GetTranscript 读取转写文档
func (h *TranscriptionHandler) GetTranscript(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if video.TranscriptPath == nil {
		fail(c, http.StatusNotFound, 404, "转写文档不存在")
		return
	}

	doc, err := h.store.Read(*video.TranscriptPath)
	if err != nil {
		h.logger.Errorf("读取转写文档失败: VideoID=%d, %v", video.ID, err)
		fail(c, http.StatusNotFound, 404, "转写文档不存在")
		return
	}

	success(c, doc, "获取转写文档成功")
}

type updateTranscriptRequest struct {
	Segments []service.TranscriptSegment `json:"segments" binding:"required"`
}

// UpdateTranscript 整体替换分段内容，文档其余字段保持不变
func (h *TranscriptionHandler) UpdateTranscript(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if video.TranscriptPath == nil {
		fail(c, http.StatusNotFound, 404, "转写文档不存在")
		return
	}

	var req updateTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	doc, err := h.store.UpdateSegments(*video.TranscriptPath, req.Segments)
	if err != nil {
		h.logger.Errorf("更新转写文档失败: VideoID=%d, %v", video.ID, err)
		fail(c, http.StatusInternalServerError, 500, "更新转写文档失败")
		return
	}

	success(c, doc, "更新转写文档成功")
}
