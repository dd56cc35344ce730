package handler

import (
	"net/http"

	"auto-highlight/app/database"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"
	"auto-highlight/app/service"

	"github.com/gin-gonic/gin"
)

// MetadataHandler 视频元数据抓取处理器
type MetadataHandler struct {
	logger  *logger.Logger
	youtube *service.YouTubeService
}

// NewMetadataHandler 创建元数据处理器
func NewMetadataHandler(log *logger.Logger, yt *service.YouTubeService) *MetadataHandler {
	return &MetadataHandler{logger: log, youtube: yt}
}

type fetchMetadataRequest struct {
	URL string `json:"url" binding:"required"`
}

// FetchMetadata 解析 URL 并抓取元数据，不创建记录；
// 若视频已存在则一并返回现有记录
func (h *MetadataHandler) FetchMetadata(c *gin.Context) {
	var req fetchMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	youtubeID := service.ExtractVideoID(req.URL)
	if youtubeID == "" {
		fail(c, http.StatusBadRequest, 400, "无法从 URL 中解析视频ID")
		return
	}

	meta, err := h.youtube.FetchMetadata(req.URL)
	if err != nil {
		h.logger.Errorf("抓取元数据失败: YoutubeID=%s, %v", youtubeID, err)
		fail(c, http.StatusInternalServerError, 500, "抓取元数据失败")
		return
	}

	var existing model.Video
	if err := database.DB.Where("youtube_id = ?", youtubeID).First(&existing).Error; err == nil {
		go h.youtube.RefreshChannelThumbnail(existing.ID)
		success(c, gin.H{"exists": true, "video": existing, "metadata": meta}, "视频已存在")
		return
	}

	success(c, gin.H{"exists": false, "metadata": meta}, "获取元数据成功")
}

// RefreshMetadata 重新抓取元数据并仅更新频道信息字段
func (h *MetadataHandler) RefreshMetadata(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	meta, err := h.youtube.FetchMetadata("https://youtube.com/watch?v=" + video.YoutubeID)
	if err != nil {
		h.logger.Errorf("刷新元数据失败: VideoID=%d, %v", video.ID, err)
		fail(c, http.StatusInternalServerError, 500, "刷新元数据失败")
		return
	}

	updates := map[string]interface{}{
		"channel_name": meta.ChannelName,
		"channel_id":   meta.ChannelID,
	}
	if err := database.DB.Model(video).Updates(updates).Error; err != nil {
		fail(c, http.StatusInternalServerError, 500, "更新视频失败")
		return
	}

	go h.youtube.RefreshChannelThumbnail(video.ID)

	var fresh model.Video
	database.DB.First(&fresh, video.ID)
	success(c, fresh, "刷新元数据成功")
}
