package handler

import (
	"net/http"
	"strconv"
	"time"

	"auto-highlight/app/database"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// loadVideo 按路径参数 :id 读取未删除的视频行，
// 失败时已写好响应，调用方直接返回即可
func loadVideo(c *gin.Context) (*model.Video, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, 400, "无效的ID")
		return nil, false
	}

	var video model.Video
	if err := database.DB.First(&video, uint(id)).Error; err != nil {
		fail(c, http.StatusNotFound, 404, "视频不存在")
		return nil, false
	}
	return &video, true
}

// VideoHandler 视频基础 CRUD 处理器
type VideoHandler struct {
	logger *logger.Logger
}

// NewVideoHandler 创建视频处理器
func NewVideoHandler(log *logger.Logger) *VideoHandler {
	return &VideoHandler{logger: log}
}

// createVideoRequest 创建视频的请求体
type createVideoRequest struct {
	YoutubeID        string     `json:"youtube_id" binding:"required"`
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	ThumbnailURL     string     `json:"thumbnail_url"`
	DurationSeconds  int        `json:"duration_seconds"`
	ChannelName      string     `json:"channel_name"`
	ChannelID        string     `json:"channel_id"`
	ChannelThumbnail string     `json:"channel_thumbnail"`
	PublishedAt      *time.Time `json:"published_at"`
	ViewCount        int64      `json:"view_count"`
	LikeCount        int64      `json:"like_count"`
	CommentCount     int64      `json:"comment_count"`
}

// CreateVideo 创建视频记录，已存在时直接返回现有记录
func (h *VideoHandler) CreateVideo(c *gin.Context) {
	var req createVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	// 唯一索引覆盖软删除行，存在性检查必须包含已删除的记录
	var existing model.Video
	if err := database.DB.Unscoped().Where("youtube_id = ?", req.YoutubeID).First(&existing).Error; err == nil {
		if existing.DeletedAt.Valid {
			if err := database.DB.Unscoped().Model(&existing).
				Update("deleted_at", nil).Error; err != nil {
				h.logger.Errorf("恢复视频失败: ID=%d, %v", existing.ID, err)
				fail(c, http.StatusInternalServerError, 500, "创建视频失败")
				return
			}
			existing.DeletedAt = gorm.DeletedAt{}
			h.logger.Infof("视频已恢复: ID=%d, Title=%s", existing.ID, existing.Title)
			success(c, existing, "视频已恢复")
			return
		}
		h.logger.Infof("视频已存在: ID=%d, Title=%s", existing.ID, existing.Title)
		success(c, existing, "视频已存在")
		return
	}

	video := model.Video{
		YoutubeID:        req.YoutubeID,
		Title:            req.Title,
		Description:      req.Description,
		ThumbnailURL:     req.ThumbnailURL,
		DurationSeconds:  req.DurationSeconds,
		ChannelName:      req.ChannelName,
		ChannelID:        req.ChannelID,
		ChannelThumbnail: req.ChannelThumbnail,
		PublishedAt:      req.PublishedAt,
		ViewCount:        req.ViewCount,
		LikeCount:        req.LikeCount,
		CommentCount:     req.CommentCount,
		Status:           model.StatusPending,
	}

	if err := database.DB.Create(&video).Error; err != nil {
		h.logger.Errorf("创建视频失败: %v", err)
		fail(c, http.StatusInternalServerError, 500, "创建视频失败")
		return
	}

	h.logger.Infof("视频已创建: ID=%d, Title=%s", video.ID, video.Title)
	success(c, video, "创建视频成功")
}

// ListVideos 按创建时间倒序列出视频，支持状态过滤和数量限制
func (h *VideoHandler) ListVideos(c *gin.Context) {
	query := database.DB.Model(&model.Video{})

	if status := c.Query("status"); status != "" {
		if !model.VideoStatus(status).Valid() {
			fail(c, http.StatusBadRequest, 400, "无效的状态: "+status)
			return
		}
		query = query.Where("status = ?", status)
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		fail(c, http.StatusBadRequest, 400, "无效的 limit")
		return
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		fail(c, http.StatusInternalServerError, 500, "查询视频失败")
		return
	}

	var videos []model.Video
	if err := query.Order("created_at DESC").Limit(limit).Find(&videos).Error; err != nil {
		fail(c, http.StatusInternalServerError, 500, "查询视频失败")
		return
	}

	success(c, gin.H{"videos": videos, "total": total}, "获取视频列表成功")
}

// GetVideo 获取单个视频详情
func (h *VideoHandler) GetVideo(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}
	success(c, video, "获取视频成功")
}

// DeleteVideo 软删除视频，行保留在存储中但对所有查询不可见
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	video, ok := loadVideo(c)
	if !ok {
		return
	}

	if err := database.DB.Delete(video).Error; err != nil {
		h.logger.Errorf("删除视频失败: VideoID=%d, %v", video.ID, err)
		fail(c, http.StatusInternalServerError, 500, "删除视频失败")
		return
	}

	h.logger.Infof("视频已删除: VideoID=%d", video.ID)
	success(c, nil, "删除视频成功")
}
