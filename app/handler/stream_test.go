package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamTestServer 用 1000 字节的固定内容文件搭一条流式路由
func streamTestServer(t *testing.T) (*gin.Engine, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 1000)), 0644))

	router := gin.New()
	router.GET("/stream", func(c *gin.Context) {
		streamFile(c, path, "video/mp4")
	})
	return router, path
}

func doStream(router *gin.Engine, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/stream", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStreamFullFile(t *testing.T) {
	router, _ := streamTestServer(t)

	w := doStream(router, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, "1000", w.Header().Get("Content-Length"))
	assert.Equal(t, 1000, w.Body.Len())
}

func TestStreamRangePrefix(t *testing.T) {
	router, _ := streamTestServer(t)

	w := doStream(router, "bytes=0-99")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 0-99/1000", w.Header().Get("Content-Range"))
	assert.Equal(t, "100", w.Header().Get("Content-Length"))
	assert.Equal(t, 100, w.Body.Len())
}

func TestStreamRangeOpenEnded(t *testing.T) {
	router, _ := streamTestServer(t)

	w := doStream(router, "bytes=950-")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 950-999/1000", w.Header().Get("Content-Range"))
	assert.Equal(t, 50, w.Body.Len())
}

func TestStreamRangeEndClamped(t *testing.T) {
	router, _ := streamTestServer(t)

	// 终点越界时钳制到文件末尾
	w := doStream(router, "bytes=900-5000")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 900-999/1000", w.Header().Get("Content-Range"))
	assert.Equal(t, 100, w.Body.Len())
}

func TestStreamRangeUnsatisfiable(t *testing.T) {
	router, _ := streamTestServer(t)

	w := doStream(router, "bytes=2000-")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
	assert.Equal(t, "bytes */1000", w.Header().Get("Content-Range"))
	assert.Equal(t, 0, w.Body.Len())
}

func TestStreamInvertedRangeFallsBackToFull(t *testing.T) {
	router, _ := streamTestServer(t)

	w := doStream(router, "bytes=500-100")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", w.Header().Get("Content-Length"))
	assert.Equal(t, 1000, w.Body.Len())
}

func TestStreamMalformedRangeFallsBackToFull(t *testing.T) {
	router, _ := streamTestServer(t)

	// 多段与后缀区间不支持，按完整响应处理
	for _, header := range []string{"bytes=-500", "bytes=0-99,200-299", "chunks=0-99"} {
		w := doStream(router, header)
		assert.Equal(t, http.StatusOK, w.Code, "Range %q", header)
		assert.Equal(t, 1000, w.Body.Len())
	}
}

func TestStreamMissingFile(t *testing.T) {
	router := gin.New()
	router.GET("/stream", func(c *gin.Context) {
		streamFile(c, "/nonexistent/v.mp4", "video/mp4")
	})

	w := doStream(router, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamVideoEndpointRequiresDownload(t *testing.T) {
	env := setupTest(t)
	env.createVideo(t, nil)

	w := env.request(t, "GET", "/api/videos/1/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
