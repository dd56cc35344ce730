package service

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"auto-highlight/app/config"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"

	"gorm.io/gorm"
)

// 转写进度被压缩到 10-95 区间：
// 前 10% 留给模型加载，后 5% 留给文档落盘
const (
	transcriptionModelLoaded = 5.0
	transcriptionStarted     = 10.0
	transcriptionCeiling     = 95.0
)

// segmentLinePattern whisper 输出的片段行，如
// "[00:01:02.500 --> 00:01:05.120]  some text"
var segmentLinePattern = regexp.MustCompile(
	`^\[(\d{2}):(\d{2}):(\d{2})[.,](\d{3}) +--> +(\d{2}):(\d{2}):(\d{2})[.,](\d{3})\] *(.*)$`)

// detectedLanguagePattern whisper 诊断输出中的语言检测行
var detectedLanguagePattern = regexp.MustCompile(
	`auto-detected language: (\w+) \(p = ([0-9.]+)\)`)

// TranscriptionExecutor 转写阶段执行器，调用 whisper 把音频转成分段文本
type TranscriptionExecutor struct {
	logger *logger.Logger
	cfg    *config.Config
	db     *gorm.DB
	store  *TranscriptStore
}

// NewTranscriptionExecutor 创建转写执行器
func NewTranscriptionExecutor(cfg *config.Config, log *logger.Logger, db *gorm.DB, store *TranscriptStore) *TranscriptionExecutor {
	return &TranscriptionExecutor{
		logger: log,
		cfg:    cfg,
		db:     db,
		store:  store,
	}
}

// Run 执行一次转写。所有失败都落库为 transcription_failed
func (e *TranscriptionExecutor) Run(videoID uint) {
	var video model.Video
	if err := e.db.First(&video, videoID).Error; err != nil {
		e.logger.Warnf("转写任务找不到视频，跳过: VideoID=%d", videoID)
		return
	}

	e.logger.Infof("开始转写: VideoID=%d, YoutubeID=%s", video.ID, video.YoutubeID)

	transcriptPath, err := e.transcribe(&video)
	if err != nil {
		e.logger.Errorf("转写失败: VideoID=%d, %v", videoID, err)
		e.fail(videoID, err)
		return
	}

	now := time.Now()
	if err := e.db.Model(&model.Video{}).Where("id = ?", videoID).Updates(map[string]interface{}{
		"transcript_path":        transcriptPath,
		"status":                 model.StatusTranscribed,
		"transcription_progress": 100.0,
		"transcription_error":    nil,
		"transcribed_at":         now,
	}).Error; err != nil {
		e.logger.Errorf("保存转写结果失败: VideoID=%d, %v", videoID, err)
		return
	}

	e.logger.Infof("转写完成: VideoID=%d, Path=%s", videoID, transcriptPath)
}

// transcribe 运行 whisper 并把片段输出整理成转写文档
func (e *TranscriptionExecutor) transcribe(video *model.Video) (string, error) {
	if video.AudioPath == nil {
		return "", fmt.Errorf("音频文件路径为空")
	}
	if _, err := os.Stat(*video.AudioPath); err != nil {
		return "", fmt.Errorf("音频文件不存在: %s", *video.AudioPath)
	}

	if err := os.MkdirAll(e.cfg.Storage.TranscriptsDir, 0755); err != nil {
		return "", fmt.Errorf("创建转写目录失败: %w", err)
	}
	transcriptPath := filepath.Join(e.cfg.Storage.TranscriptsDir, video.YoutubeID+".json")

	totalDuration, err := probeMediaDuration(e.cfg.Tools.FFprobe, *video.AudioPath)
	if err != nil {
		e.logger.Warnf("探测音频时长失败，退回数据库里的时长: %v", err)
		totalDuration = float64(video.DurationSeconds)
	}

	// 模型加载阶段先推一格进度
	tracker := newProgressTracker(e.db, video.ID, "transcription_progress", 0.5)
	tracker.Update(transcriptionModelLoaded)

	modelPath := filepath.Join(e.cfg.Storage.Root, "whisper_models",
		"ggml-"+e.cfg.Pipeline.WhisperModel+".bin")

	args := []string{"-m", modelPath, "-f", *video.AudioPath}
	if lang := e.cfg.Pipeline.Language; lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}

	cmd := execCommand(e.cfg.Tools.Whisper, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("创建 stdout 管道失败: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("创建 stderr 管道失败: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("启动 whisper 失败: %w", err)
	}
	// 计时从进程启动开始，不依赖进程是否还在产生输出
	finish := armStallTimeout(cmd, "whisper", e.cfg.Pipeline.ProcessTimeoutDuration())
	tracker.Update(transcriptionStarted)

	// stderr 既要保留末尾用于报错，也要从中解析语言检测行
	var (
		langMu       sync.Mutex
		detectedLang string
		detectedProb float64
		stderrLines  []string
	)
	readStderr := drainConsume(stderr, func(line string) {
		langMu.Lock()
		defer langMu.Unlock()
		stderrLines = append(stderrLines, line)
		if len(stderrLines) > 50 {
			stderrLines = stderrLines[len(stderrLines)-50:]
		}
		if m := detectedLanguagePattern.FindStringSubmatch(line); m != nil {
			detectedLang = m[1]
			detectedProb, _ = strconv.ParseFloat(m[2], 64)
		}
	})

	var segments []TranscriptSegment
	readStdout := drainConsume(stdout, func(line string) {
		segment, ok := parseSegmentLine(line)
		if !ok {
			return
		}
		segments = append(segments, segment)

		if totalDuration > 0 {
			// 片段结束时间映射到 10-95 的进度窗口
			percent := transcriptionStarted + segment.End/totalDuration*85.0
			tracker.Update(math.Min(percent, transcriptionCeiling))
		}
	})

	readStdout()
	readStderr()

	if err := finish(cmd.Wait()); err != nil {
		if _, stalled := err.(*errStalled); stalled {
			return "", err
		}
		langMu.Lock()
		errTail := tail(strings.Join(stderrLines, "\n"), 500)
		langMu.Unlock()
		return "", fmt.Errorf("whisper 执行失败: %w: %s", err, errTail)
	}

	language := e.cfg.Pipeline.Language
	probability := 1.0
	if detectedLang != "" {
		language = detectedLang
		probability = detectedProb
	}

	doc := &TranscriptDocument{
		VideoID:             video.ID,
		YoutubeID:           video.YoutubeID,
		Duration:            totalDuration,
		Language:            language,
		LanguageProbability: probability,
		Segments:            segments,
		Model:               e.cfg.Pipeline.WhisperModel,
		CreatedAt:           time.Now().Format(time.RFC3339),
	}
	if err := e.store.Write(transcriptPath, doc); err != nil {
		return "", err
	}

	e.logger.Infof("转写得到 %d 个片段: VideoID=%d", len(segments), video.ID)
	return transcriptPath, nil
}

// fail 重新读取最新行后落库失败状态，进度归零
func (e *TranscriptionExecutor) fail(videoID uint, cause error) {
	var video model.Video
	if err := e.db.First(&video, videoID).Error; err != nil {
		return
	}

	if err := e.db.Model(&model.Video{}).Where("id = ?", videoID).Updates(map[string]interface{}{
		"status":                 model.StatusTranscriptionFailed,
		"transcription_error":    cause.Error(),
		"transcription_progress": 0.0,
	}).Error; err != nil {
		e.logger.Errorf("保存转写失败状态失败: VideoID=%d, %v", videoID, err)
	}
}

// parseSegmentLine 解析 whisper 输出的片段行
func parseSegmentLine(line string) (TranscriptSegment, bool) {
	m := segmentLinePattern.FindStringSubmatch(line)
	if m == nil {
		return TranscriptSegment{}, false
	}

	return TranscriptSegment{
		Start: timestampSeconds(m[1], m[2], m[3], m[4]),
		End:   timestampSeconds(m[5], m[6], m[7], m[8]),
		Text:  m[9],
	}, true
}

// timestampSeconds 把 HH:MM:SS.mmm 四段转成秒
func timestampSeconds(hh, mm, ss, ms string) float64 {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	s, _ := strconv.Atoi(ss)
	milli, _ := strconv.Atoi(ms)
	return float64(h*3600+m*60+s) + float64(milli)/1000
}
