package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

// StorageConfig 各阶段产物的存储目录
type StorageConfig struct {
	Root           string `mapstructure:"root"`
	DownloadsDir   string `mapstructure:"downloads_dir"`
	AudioDir       string `mapstructure:"audio_dir"`
	TranscriptsDir string `mapstructure:"transcripts_dir"`
	ThumbnailsDir  string `mapstructure:"thumbnails_dir"`
}

// Dirs 返回所有存储目录
func (s StorageConfig) Dirs() []string {
	return []string{s.Root, s.DownloadsDir, s.AudioDir, s.TranscriptsDir, s.ThumbnailsDir}
}

// EnsureDirs 确保所有存储目录存在
func (s StorageConfig) EnsureDirs() error {
	for _, dir := range s.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录 %s 失败: %w", dir, err)
		}
	}
	return nil
}

// ToolsConfig 外部工具的可执行文件名（或绝对路径）
type ToolsConfig struct {
	YtDlp   string `mapstructure:"yt_dlp"`
	FFmpeg  string `mapstructure:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe"`
	Whisper string `mapstructure:"whisper"`
}

// PipelineConfig 处理管线的执行参数
type PipelineConfig struct {
	MaxConcurrent  int    `mapstructure:"max_concurrent"`  // 同时运行的阶段执行器数量上限
	ProcessTimeout int    `mapstructure:"process_timeout"` // 外部进程最长等待秒数
	WhisperModel   string `mapstructure:"whisper_model"`   // whisper 模型名
	Language       string `mapstructure:"language"`        // 转写语言
	StaleAfter     int    `mapstructure:"stale_after"`     // 多少分钟无进度视为卡死
	ReapSpec       string `mapstructure:"reap_spec"`       // 卡死任务回收的 cron 表达式
}

// ProcessTimeoutDuration 外部进程等待上限
func (p PipelineConfig) ProcessTimeoutDuration() time.Duration {
	return time.Duration(p.ProcessTimeout) * time.Second
}

// StaleAfterDuration 无进度判定时长
func (p PipelineConfig) StaleAfterDuration() time.Duration {
	return time.Duration(p.StaleAfter) * time.Minute
}

func Load() *Config {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "8001")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// 存储默认配置
	viper.SetDefault("storage.root", "storage")
	viper.SetDefault("storage.downloads_dir", filepath.Join("storage", "downloads"))
	viper.SetDefault("storage.audio_dir", filepath.Join("storage", "downloads", "audio"))
	viper.SetDefault("storage.transcripts_dir", filepath.Join("storage", "transcripts"))
	viper.SetDefault("storage.thumbnails_dir", filepath.Join("storage", "thumbnails"))

	// 外部工具默认配置
	viper.SetDefault("tools.yt_dlp", "yt-dlp")
	viper.SetDefault("tools.ffmpeg", "ffmpeg")
	viper.SetDefault("tools.ffprobe", "ffprobe")
	viper.SetDefault("tools.whisper", "whisper-cli")

	// 处理管线默认配置
	viper.SetDefault("pipeline.max_concurrent", 2)
	viper.SetDefault("pipeline.process_timeout", 300)
	viper.SetDefault("pipeline.whisper_model", "small")
	viper.SetDefault("pipeline.language", "pt")
	viper.SetDefault("pipeline.stale_after", 30)
	viper.SetDefault("pipeline.reap_spec", "*/10 * * * *")
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.Pipeline.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent 必须大于 0")
	}
	if config.Pipeline.ProcessTimeout <= 0 {
		return fmt.Errorf("process_timeout 必须大于 0")
	}
	return nil
}
