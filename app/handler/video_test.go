package handler

import (
	"net/http"
	"testing"

	"auto-highlight/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVideo(t *testing.T) {
	env := setupTest(t)

	w := env.request(t, "POST", "/api/videos/", map[string]interface{}{
		"youtube_id": "dQw4w9WgXcQ",
		"title":      "测试视频",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var video model.Video
	require.NoError(t, env.db.Where("youtube_id = ?", "dQw4w9WgXcQ").First(&video).Error)
	assert.Equal(t, model.StatusPending, video.Status)
	assert.Equal(t, 0.0, video.DownloadProgress)
}

func TestCreateVideoReturnsExisting(t *testing.T) {
	env := setupTest(t)
	existing := env.createVideo(t, nil)

	w := env.request(t, "POST", "/api/videos/", map[string]interface{}{
		"youtube_id": existing.YoutubeID,
		"title":      "另一个标题",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// 不会新建第二条记录，也不会覆盖现有标题
	var count int64
	env.db.Model(&model.Video{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var video model.Video
	require.NoError(t, env.db.First(&video, existing.ID).Error)
	assert.Equal(t, "测试视频", video.Title)
}

func TestCreateVideoRequiresFields(t *testing.T) {
	env := setupTest(t)

	w := env.request(t, "POST", "/api/videos/", map[string]interface{}{"title": "没有ID"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListVideosFilterByStatus(t *testing.T) {
	env := setupTest(t)
	env.createVideo(t, nil)
	env.createVideo(t, func(v *model.Video) {
		v.YoutubeID = "abc123def45"
		v.Status = model.StatusDownloaded
	})

	w := env.request(t, "GET", "/api/videos/?status=downloaded", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	assert.Len(t, data["videos"], 1)
}

func TestListVideosRejectsUnknownStatus(t *testing.T) {
	env := setupTest(t)

	w := env.request(t, "GET", "/api/videos/?status=downloading_fast", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVideoNotFound(t *testing.T) {
	env := setupTest(t)

	w := env.request(t, "GET", "/api/videos/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.request(t, "GET", "/api/videos/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteVideoSoft(t *testing.T) {
	env := setupTest(t)
	video := env.createVideo(t, nil)

	w := env.request(t, "DELETE", "/api/videos/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 常规查询不可见
	w = env.request(t, "GET", "/api/videos/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 行仍保留在存储中
	var count int64
	env.db.Unscoped().Model(&model.Video{}).Where("id = ?", video.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

// 软删除后用同一个 youtube_id 再次创建必须恢复原行，
// 而不是撞上唯一索引返回 500
func TestCreateVideoRestoresSoftDeleted(t *testing.T) {
	env := setupTest(t)
	video := env.createVideo(t, nil)

	w := env.request(t, "DELETE", "/api/videos/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "POST", "/api/videos/", map[string]interface{}{
		"youtube_id": video.YoutubeID,
		"title":      "重新添加",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// 原行恢复可见，没有新建第二行
	w = env.request(t, "GET", "/api/videos/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	env.db.Unscoped().Model(&model.Video{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var fresh model.Video
	require.NoError(t, env.db.First(&fresh, video.ID).Error)
	assert.Equal(t, "测试视频", fresh.Title)
	assert.False(t, fresh.DeletedAt.Valid)
}
