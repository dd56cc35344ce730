package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"auto-highlight/app/config"
	"auto-highlight/app/database"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"
	"auto-highlight/app/utils/avatar"

	gocache "github.com/patrickmn/go-cache"
	"resty.dev/v3"
)

// 标题和频道名缺失时使用的占位文案
const (
	placeholderTitle   = "无标题"
	placeholderChannel = "未知频道"
)

// videoIDPatterns 支持 watch / 短链 / embed / /v/ 四种 URL 形态
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
}

// downloadPercentPattern yt-dlp 输出中的百分比，如 "[download]  42.7% of ..."
var downloadPercentPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)

// channelAvatarPattern 频道页 HTML 中的头像地址
var channelAvatarPattern = regexp.MustCompile(`"avatar":\{"thumbnails":\[\{"url":"([^"]+)"`)

// VideoMetadata 从 YouTube 拉取到的视频元数据
type VideoMetadata struct {
	YoutubeID         string    `json:"youtube_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ThumbnailURL      string    `json:"thumbnail_url"`
	DurationSeconds   int       `json:"duration_seconds"`
	DurationFormatted string    `json:"duration_formatted"`
	ChannelName       string    `json:"channel_name"`
	ChannelID         string    `json:"channel_id"`
	ChannelThumbnail  *string   `json:"channel_thumbnail"`
	PublishedAt       time.Time `json:"published_at"`
	ViewCount         int64     `json:"view_count"`
	LikeCount         int64     `json:"like_count"`
	CommentCount      int64     `json:"comment_count"`
}

// ytDlpInfo yt-dlp -J 输出中用到的字段
type ytDlpInfo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Thumbnail    string  `json:"thumbnail"`
	Duration     float64 `json:"duration"`
	Uploader     string  `json:"uploader"`
	Channel      string  `json:"channel"`
	ChannelID    string  `json:"channel_id"`
	UploadDate   string  `json:"upload_date"` // YYYYMMDD
	ViewCount    int64   `json:"view_count"`
	LikeCount    int64   `json:"like_count"`
	CommentCount int64   `json:"comment_count"`
}

// YouTubeService 封装 yt-dlp，对外提供元数据拉取和视频下载
type YouTubeService struct {
	logger *logger.Logger
	cfg    *config.Config
	cache  *gocache.Cache // 按 youtube_id 缓存元数据，避免重复调用 yt-dlp
	client *resty.Client
}

// NewYouTubeService 创建 YouTube 服务
func NewYouTubeService(cfg *config.Config, log *logger.Logger) *YouTubeService {
	return &YouTubeService{
		logger: log,
		cfg:    cfg,
		cache:  gocache.New(10*time.Minute, 30*time.Minute),
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

// ExtractVideoID 从 URL 中提取视频 ID，纯字符串匹配，不发起网络请求
func ExtractVideoID(url string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// FormatDuration 将秒数格式化为 H:MM:SS 或 M:SS
func FormatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FetchMetadata 拉取视频元数据，URL 非法或工具失败时返回错误
func (s *YouTubeService) FetchMetadata(url string) (*VideoMetadata, error) {
	youtubeID := ExtractVideoID(url)
	if youtubeID == "" {
		return nil, fmt.Errorf("无效的 YouTube URL")
	}

	if cached, ok := s.cache.Get(youtubeID); ok {
		return cached.(*VideoMetadata), nil
	}

	cmd := execCommand(s.cfg.Tools.YtDlp,
		"-J",
		"--no-warnings",
		"--skip-download",
		"--no-playlist",
		fmt.Sprintf("https://youtube.com/watch?v=%s", youtubeID),
	)

	output, err := cmd.Output()
	if err != nil {
		s.logger.Errorf("yt-dlp 获取元数据失败: %v", err)
		return nil, fmt.Errorf("获取视频元数据失败: %w", err)
	}

	var info ytDlpInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("解析 yt-dlp 输出失败: %w", err)
	}

	metadata := s.buildMetadata(youtubeID, &info)
	s.cache.Set(youtubeID, metadata, gocache.DefaultExpiration)
	return metadata, nil
}

// buildMetadata 把 yt-dlp 的原始字段整理成元数据，标题和频道名保证非空
func (s *YouTubeService) buildMetadata(youtubeID string, info *ytDlpInfo) *VideoMetadata {
	title := info.Title
	if title == "" {
		title = placeholderTitle
	}

	channelName := info.Uploader
	if channelName == "" {
		channelName = info.Channel
	}
	if channelName == "" {
		channelName = info.ChannelID
	}
	if channelName == "" {
		channelName = placeholderChannel
	}

	publishedAt := time.Now()
	if info.UploadDate != "" {
		if parsed, err := time.Parse("20060102", info.UploadDate); err == nil {
			publishedAt = parsed
		}
	}

	return &VideoMetadata{
		YoutubeID:         youtubeID,
		Title:             title,
		Description:       info.Description,
		ThumbnailURL:      info.Thumbnail,
		DurationSeconds:   int(info.Duration),
		DurationFormatted: FormatDuration(int(info.Duration)),
		ChannelName:       channelName,
		ChannelID:         info.ChannelID,
		PublishedAt:       publishedAt,
		ViewCount:         info.ViewCount,
		LikeCount:         info.LikeCount,
		CommentCount:      info.CommentCount,
	}
}

// Download 阻塞下载视频到 outputDir，onProgress 收到 0-100 的百分比回调。
// 返回下载完成的本地文件路径
func (s *YouTubeService) Download(youtubeID, outputDir string, onProgress func(percent float64)) (string, error) {
	cmd := execCommand(s.cfg.Tools.YtDlp,
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"-o", filepath.Join(outputDir, "%(id)s.%(ext)s"),
		"--newline",
		"--no-playlist",
		"--no-warnings",
		fmt.Sprintf("https://www.youtube.com/watch?v=%s", youtubeID),
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("创建 stdout 管道失败: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("创建 stderr 管道失败: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("启动 yt-dlp 失败: %w", err)
	}
	// 计时从进程启动开始，不依赖进程是否还在产生输出
	finish := armStallTimeout(cmd, "yt-dlp", s.cfg.Pipeline.ProcessTimeoutDuration())

	// stderr 必须和进度监控同时消费，避免管道写满卡死进程
	stderrTail := drainLines(stderr, 50)

	// 逐行解析 stdout 中的下载百分比
	readProgress := drainConsume(stdout, func(line string) {
		if onProgress == nil || !strings.Contains(line, "[download]") {
			return
		}
		if m := downloadPercentPattern.FindStringSubmatch(line); m != nil {
			var percent float64
			if _, err := fmt.Sscanf(m[1], "%f", &percent); err == nil {
				onProgress(percent)
			}
		}
	})
	readProgress()

	if err := finish(cmd.Wait()); err != nil {
		if _, stalled := err.(*errStalled); stalled {
			return "", err
		}
		return "", fmt.Errorf("yt-dlp 下载失败: %w: %s", err, tail(stderrTail(), 500))
	}

	return s.findDownloadedFile(youtubeID, outputDir)
}

// findDownloadedFile 在输出目录中定位下载产物
func (s *YouTubeService) findDownloadedFile(youtubeID, outputDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(outputDir, youtubeID+".*"))
	if err != nil {
		return "", err
	}
	for _, path := range matches {
		if strings.HasSuffix(path, ".part") || strings.HasSuffix(path, ".ytdl") {
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("yt-dlp 结束后未找到下载文件: %s", youtubeID)
}

// FetchChannelThumbnail 抓取频道页并从 HTML 中解析头像地址
func (s *YouTubeService) FetchChannelThumbnail(channelID string) (string, error) {
	resp, err := s.client.R().
		SetHeader("User-Agent", "Mozilla/5.0").
		Get(fmt.Sprintf("https://www.youtube.com/channel/%s", channelID))
	if err != nil {
		return "", fmt.Errorf("请求频道页失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("频道页返回状态码 %d", resp.StatusCode())
	}

	if m := channelAvatarPattern.FindStringSubmatch(resp.String()); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("频道页中未找到头像地址")
}

// RefreshChannelThumbnail 后台刷新频道头像：优先抓取真实头像，
// 抓不到时用频道名首字符生成占位头像
func (s *YouTubeService) RefreshChannelThumbnail(videoID uint) {
	db := database.GetDB()

	var video model.Video
	if err := db.First(&video, videoID).Error; err != nil {
		s.logger.Warnf("刷新频道头像时视频不存在: VideoID=%d", videoID)
		return
	}

	if video.ChannelID == "" {
		s.logger.Warnf("视频缺少 channel_id，跳过头像刷新: VideoID=%d", videoID)
		return
	}

	thumbnail, err := s.FetchChannelThumbnail(video.ChannelID)
	if err != nil {
		s.logger.Warnf("抓取频道头像失败: VideoID=%d, %v", videoID, err)

		// 生成占位头像并通过静态路由对外提供
		name := video.ChannelName
		if name == "" {
			name = placeholderChannel
		}
		savePath := filepath.Join(s.cfg.Storage.ThumbnailsDir, video.ChannelID+".png")
		if err := os.MkdirAll(s.cfg.Storage.ThumbnailsDir, 0755); err != nil {
			s.logger.Errorf("创建头像目录失败: %v", err)
			return
		}
		if err := avatar.Generate(name, savePath); err != nil {
			s.logger.Errorf("生成占位头像失败: %v", err)
			return
		}
		thumbnail = "/thumbnails/" + video.ChannelID + ".png"
	}

	if err := db.Model(&model.Video{}).Where("id = ?", videoID).
		Update("channel_thumbnail", thumbnail).Error; err != nil {
		s.logger.Errorf("保存频道头像失败: VideoID=%d, %v", videoID, err)
		return
	}
	s.logger.Infof("频道头像已更新: VideoID=%d", videoID)
}
