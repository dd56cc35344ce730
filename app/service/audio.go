package service

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"auto-highlight/app/config"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"

	"gorm.io/gorm"
)

// AudioExtractionExecutor 音频提取阶段执行器，调用 ffmpeg 把视频转成 mp3
type AudioExtractionExecutor struct {
	logger *logger.Logger
	cfg    *config.Config
	db     *gorm.DB
}

// NewAudioExtractionExecutor 创建音频提取执行器
func NewAudioExtractionExecutor(cfg *config.Config, log *logger.Logger, db *gorm.DB) *AudioExtractionExecutor {
	return &AudioExtractionExecutor{
		logger: log,
		cfg:    cfg,
		db:     db,
	}
}

// Run 执行一次音频提取。所有失败都落库为 audio_extraction_failed
func (e *AudioExtractionExecutor) Run(videoID uint) {
	var video model.Video
	if err := e.db.First(&video, videoID).Error; err != nil {
		e.logger.Warnf("音频提取任务找不到视频，跳过: VideoID=%d", videoID)
		return
	}

	e.logger.Infof("开始提取音频: VideoID=%d, YoutubeID=%s", video.ID, video.YoutubeID)

	audioPath, err := e.extract(&video)
	if err != nil {
		e.logger.Errorf("音频提取失败: VideoID=%d, %v", videoID, err)
		e.fail(videoID, err)
		return
	}

	now := time.Now()
	if err := e.db.Model(&model.Video{}).Where("id = ?", videoID).Updates(map[string]interface{}{
		"audio_path":                audioPath,
		"status":                    model.StatusAudioExtracted,
		"audio_extraction_progress": 100.0,
		"audio_extraction_error":    nil,
		"extracted_at":              now,
	}).Error; err != nil {
		e.logger.Errorf("保存音频提取结果失败: VideoID=%d, %v", videoID, err)
		return
	}

	e.logger.Infof("音频提取完成: VideoID=%d, Path=%s", videoID, audioPath)
}

// extract 运行 ffmpeg 并监控进度，返回生成的音频文件路径
func (e *AudioExtractionExecutor) extract(video *model.Video) (string, error) {
	if video.VideoPath == nil {
		return "", fmt.Errorf("视频文件路径为空")
	}
	if _, err := os.Stat(*video.VideoPath); err != nil {
		return "", fmt.Errorf("视频文件不存在: %s", *video.VideoPath)
	}

	if err := os.MkdirAll(e.cfg.Storage.AudioDir, 0755); err != nil {
		return "", fmt.Errorf("创建音频目录失败: %w", err)
	}
	audioPath := filepath.Join(e.cfg.Storage.AudioDir, video.YoutubeID+".mp3")

	// 先探测总时长，用于把 out_time 换算成百分比
	totalDuration, err := probeMediaDuration(e.cfg.Tools.FFprobe, *video.VideoPath)
	if err != nil {
		e.logger.Warnf("探测视频时长失败，退回数据库里的时长: %v", err)
		totalDuration = float64(video.DurationSeconds)
	}

	cmd := execCommand(e.cfg.Tools.FFmpeg,
		"-i", *video.VideoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "192k",
		"-ar", "44100",
		"-ac", "2",
		"-y",
		"-progress", "pipe:1",
		audioPath,
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
		return "", fmt.Errorf("启动 ffmpeg 失败: %w", err)
	}
	// 计时从进程启动开始，不依赖进程是否还在产生输出
	finish := armStallTimeout(cmd, "ffmpeg", e.cfg.Pipeline.ProcessTimeoutDuration())

	// stderr 必须和进度监控同时消费，否则管道写满会卡死 ffmpeg
	stderrTail := drainLines(stderr, 50)

	tracker := newProgressTracker(e.db, video.ID, "audio_extraction_progress", 0.1)
	readProgress := drainConsume(stdout, func(line string) {
		seconds, ok := parseOutTime(line)
		if !ok || totalDuration <= 0 {
			return
		}
		// 留 1% 余量给收尾写文件
		tracker.Update(math.Min(seconds/totalDuration*100, 99))
	})
	readProgress()

	if err := finish(cmd.Wait()); err != nil {
		if _, stalled := err.(*errStalled); stalled {
			return "", err
		}
		return "", fmt.Errorf("ffmpeg 执行失败: %w: %s", err, tail(stderrTail(), 500))
	}

	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("ffmpeg 结束但音频文件未生成: %s", audioPath)
	}

	return audioPath, nil
}

// probeMediaDuration 用 ffprobe 读取媒体文件总时长（秒）
func probeMediaDuration(ffprobe, path string) (float64, error) {
	cmd := execCommand(ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("解析 ffprobe 输出失败: %w", err)
	}
	return duration, nil
}

// fail 重新读取最新行后落库失败状态，进度归零
func (e *AudioExtractionExecutor) fail(videoID uint, cause error) {
	var video model.Video
	if err := e.db.First(&video, videoID).Error; err != nil {
		return
	}

	if err := e.db.Model(&model.Video{}).Where("id = ?", videoID).Updates(map[string]interface{}{
		"status":                    model.StatusAudioExtractionFailed,
		"audio_extraction_error":    cause.Error(),
		"audio_extraction_progress": 0.0,
	}).Error; err != nil {
		e.logger.Errorf("保存音频提取失败状态失败: VideoID=%d, %v", videoID, err)
	}
}

// parseOutTime 解析 ffmpeg -progress 输出中的 out_time_ms 行，返回已处理秒数
func parseOutTime(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "out_time_ms=") {
		return 0, false
	}

	micros, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_ms="), 10, 64)
	if err != nil || micros < 0 {
		return 0, false
	}
	return float64(micros) / 1e6, true
}
