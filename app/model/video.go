package model

import (
	"time"

	"gorm.io/gorm"
)

// VideoStatus 视频在处理管线中的状态
type VideoStatus string

const (
	StatusPending VideoStatus = "pending"

	// 阶段一：下载
	StatusDownloading    VideoStatus = "downloading"
	StatusDownloaded     VideoStatus = "downloaded"
	StatusDownloadFailed VideoStatus = "download_failed"

	// 阶段二：音频提取
	StatusExtractingAudio       VideoStatus = "extracting_audio"
	StatusAudioExtracted        VideoStatus = "audio_extracted"
	StatusAudioExtractionFailed VideoStatus = "audio_extraction_failed"

	// 阶段三：转写
	StatusTranscribing        VideoStatus = "transcribing"
	StatusTranscribed         VideoStatus = "transcribed"
	StatusTranscriptionFailed VideoStatus = "transcription_failed"

	// 阶段四：AI 分析
	StatusAnalyzing      VideoStatus = "analyzing"
	StatusAnalyzed       VideoStatus = "analyzed"
	StatusAnalysisFailed VideoStatus = "analysis_failed"

	// 阶段五：高光片段
	StatusGeneratingHighlights VideoStatus = "generating_highlights"
	StatusHighlightsGenerated  VideoStatus = "highlights_generated"
	StatusHighlightsFailed     VideoStatus = "highlights_failed"

	// 阶段六：剪辑
	StatusCutting       VideoStatus = "cutting"
	StatusCut           VideoStatus = "cut"
	StatusCuttingFailed VideoStatus = "cutting_failed"

	// 阶段七：排序
	StatusRanking       VideoStatus = "ranking"
	StatusRanked        VideoStatus = "ranked"
	StatusRankingFailed VideoStatus = "ranking_failed"

	// 阶段八：字幕
	StatusGeneratingSubtitles VideoStatus = "generating_subtitles"
	StatusSubtitlesGenerated  VideoStatus = "subtitles_generated"
	StatusSubtitlesFailed     VideoStatus = "subtitles_failed"

	// 最终状态
	StatusCompleted VideoStatus = "completed"
	StatusFailed    VideoStatus = "failed" // 旧版遗留，仅为兼容历史数据保留
)

// AllStatuses 返回全部合法状态
func AllStatuses() []VideoStatus {
	return []VideoStatus{
		StatusPending,
		StatusDownloading, StatusDownloaded, StatusDownloadFailed,
		StatusExtractingAudio, StatusAudioExtracted, StatusAudioExtractionFailed,
		StatusTranscribing, StatusTranscribed, StatusTranscriptionFailed,
		StatusAnalyzing, StatusAnalyzed, StatusAnalysisFailed,
		StatusGeneratingHighlights, StatusHighlightsGenerated, StatusHighlightsFailed,
		StatusCutting, StatusCut, StatusCuttingFailed,
		StatusRanking, StatusRanked, StatusRankingFailed,
		StatusGeneratingSubtitles, StatusSubtitlesGenerated, StatusSubtitlesFailed,
		StatusCompleted, StatusFailed,
	}
}

// Valid 检查状态值是否在状态表内
func (s VideoStatus) Valid() bool {
	for _, st := range AllStatuses() {
		if st == s {
			return true
		}
	}
	return false
}

// inProgressToFailed 进行中状态对应的失败状态
var inProgressToFailed = map[VideoStatus]VideoStatus{
	StatusDownloading:          StatusDownloadFailed,
	StatusExtractingAudio:      StatusAudioExtractionFailed,
	StatusTranscribing:         StatusTranscriptionFailed,
	StatusAnalyzing:            StatusAnalysisFailed,
	StatusGeneratingHighlights: StatusHighlightsFailed,
	StatusCutting:              StatusCuttingFailed,
	StatusRanking:              StatusRankingFailed,
	StatusGeneratingSubtitles:  StatusSubtitlesFailed,
}

// InProgress 是否为某个阶段的进行中状态
func (s VideoStatus) InProgress() bool {
	_, ok := inProgressToFailed[s]
	return ok
}

// FailedStatus 返回进行中状态对应的失败状态
func (s VideoStatus) FailedStatus() (VideoStatus, bool) {
	failed, ok := inProgressToFailed[s]
	return failed, ok
}

// Video 视频模型，整条处理管线的唯一实体
type Video struct {
	ID uint `json:"id" gorm:"primarykey"`

	// YouTube 元数据
	YoutubeID        string     `json:"youtube_id" gorm:"size:50;uniqueIndex;not null"`
	Title            string     `json:"title" gorm:"size:500;not null"`
	Description      string     `json:"description" gorm:"type:text"`
	ThumbnailURL     string     `json:"thumbnail_url" gorm:"size:500"`
	DurationSeconds  int        `json:"duration_seconds" gorm:"not null"`
	ChannelName      string     `json:"channel_name" gorm:"size:200"`
	ChannelID        string     `json:"channel_id" gorm:"size:100"`
	ChannelThumbnail string     `json:"channel_thumbnail" gorm:"size:500"`
	PublishedAt      *time.Time `json:"published_at"`
	ViewCount        int64      `json:"view_count"`
	LikeCount        int64      `json:"like_count"`
	CommentCount     int64      `json:"comment_count"`

	// 处理状态，状态机的唯一权威指针
	Status VideoStatus `json:"status" gorm:"size:30;default:'pending';not null;index"`

	// 各阶段产物路径
	VideoPath      *string `json:"video_path" gorm:"size:500"`
	AudioPath      *string `json:"audio_path" gorm:"size:500"`
	TranscriptPath *string `json:"transcript_path" gorm:"size:500"`

	// 下载阶段
	DownloadProgress   float64    `json:"download_progress" gorm:"default:0"`
	DownloadError      *string    `json:"download_error" gorm:"type:text"`
	DownloadReviewedAt *time.Time `json:"download_reviewed_at"`

	// 音频提取阶段
	AudioExtractionProgress float64    `json:"audio_extraction_progress" gorm:"default:0"`
	AudioExtractionError    *string    `json:"audio_extraction_error" gorm:"type:text"`
	AudioReviewedAt         *time.Time `json:"audio_reviewed_at"`

	// 转写阶段
	TranscriptionProgress   float64    `json:"transcription_progress" gorm:"default:0"`
	TranscriptionError      *string    `json:"transcription_error" gorm:"type:text"`
	TranscriptionReviewedAt *time.Time `json:"transcription_reviewed_at"`

	// 后续阶段的审核时间，执行器尚未接入
	HighlightsReviewedAt *time.Time `json:"highlights_reviewed_at"`
	CuttingReviewedAt    *time.Time `json:"cutting_reviewed_at"`
	RankingReviewedAt    *time.Time `json:"ranking_reviewed_at"`
	SubtitlesReviewedAt  *time.Time `json:"subtitles_reviewed_at"`

	// 时间戳
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DownloadedAt  *time.Time     `json:"downloaded_at"`
	ExtractedAt   *time.Time     `json:"extracted_at"`
	TranscribedAt *time.Time     `json:"transcribed_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 指定表名
func (Video) TableName() string {
	return "videos"
}

// CanStartDownload 是否允许启动下载，失败后可重试
func (v *Video) CanStartDownload() bool {
	return v.Status == StatusPending || v.Status == StatusDownloadFailed
}

// CanReviewDownload 是否允许审核下载结果
func (v *Video) CanReviewDownload() bool {
	return v.Status == StatusDownloaded && v.VideoPath != nil
}

// CanStartAudioExtraction 是否允许启动音频提取。
// 正常路径要求下载已通过审核；提取失败后允许直接重试。
func (v *Video) CanStartAudioExtraction() bool {
	if v.Status == StatusAudioExtractionFailed {
		return true
	}
	return v.Status == StatusDownloaded && v.DownloadReviewedAt != nil
}

// CanReviewAudio 是否允许审核提取出的音频
func (v *Video) CanReviewAudio() bool {
	return v.Status == StatusAudioExtracted
}

// CanStartTranscription 是否允许启动转写。
// 正常路径要求音频已通过审核；转写失败后允许直接重试。
func (v *Video) CanStartTranscription() bool {
	if v.Status == StatusTranscriptionFailed {
		return true
	}
	return v.Status == StatusAudioExtracted && v.AudioReviewedAt != nil
}

// CanReviewTranscription 是否允许审核转写结果
func (v *Video) CanReviewTranscription() bool {
	return v.Status == StatusTranscribed
}
