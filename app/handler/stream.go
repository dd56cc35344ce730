package handler

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
)

// rangePattern 仅接受单段字节区间，多段或后缀区间按完整响应处理
var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

const streamChunkSize = 8192

// streamFile 按 Range 头流式返回本地文件，
// 支持 200 完整响应、206 部分响应和 416 区间越界
func streamFile(c *gin.Context, path, contentType string) {
	info, err := os.Stat(path)
	if err != nil {
		fail(c, http.StatusNotFound, 404, "文件不存在")
		return
	}
	size := info.Size()

	serveFull := func() {
		c.Header("Accept-Ranges", "bytes")
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Status(http.StatusOK)
		copyFileRange(c, path, 0, size)
	}

	rangeHeader := c.GetHeader("Range")
	m := rangePattern.FindStringSubmatch(rangeHeader)
	if m == nil {
		serveFull()
		return
	}

	start, _ := strconv.ParseInt(m[1], 10, 64)
	end := size - 1
	if m[2] != "" {
		if parsed, err := strconv.ParseInt(m[2], 10, 64); err == nil {
			end = parsed
		}
	}
	if end > size-1 {
		end = size - 1
	}

	if start >= size {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	// 起点大于终点的区间按完整响应处理
	if end < start {
		serveFull()
		return
	}

	length := end - start + 1
	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", contentType)
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.Header("Content-Length", strconv.FormatInt(length, 10))
	c.Status(http.StatusPartialContent)
	copyFileRange(c, path, start, length)
}

func copyFileRange(c *gin.Context, path string, offset, length int64) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return
		}
	}

	buf := make([]byte, streamChunkSize)
	remaining := length
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := f.Read(buf[:n])
		if read > 0 {
			if _, werr := c.Writer.Write(buf[:read]); werr != nil {
				return
			}
			remaining -= int64(read)
		}
		if err != nil {
			return
		}
	}
}
