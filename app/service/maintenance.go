package service

import (
	"time"

	"auto-highlight/app/config"
	"auto-highlight/app/logger"
	"auto-highlight/app/model"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const stalledMessage = "处理进程长时间无进度，已标记为失败"

// MaintenanceService 定期把卡死在进行中状态的视频收敛到失败状态。
// 进程崩溃会丢掉执行中的任务，留下永远停在进行中状态的行，由它兜底
type MaintenanceService struct {
	logger *logger.Logger
	cfg    *config.Config
	db     *gorm.DB
	cron   *cron.Cron
}

// NewMaintenanceService 创建维护服务
func NewMaintenanceService(cfg *config.Config, log *logger.Logger, db *gorm.DB) *MaintenanceService {
	return &MaintenanceService{
		logger: log,
		cfg:    cfg,
		db:     db,
		cron:   cron.New(),
	}
}

// Start 启动定时回收
func (s *MaintenanceService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Pipeline.ReapSpec, s.ReapStalled); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infof("维护服务已启动: spec=%s", s.cfg.Pipeline.ReapSpec)
	return nil
}

// Stop 停止定时回收
func (s *MaintenanceService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("维护服务已停止")
}

// ReapStalled 把更新时间早于阈值的进行中视频标记为对应阶段的失败状态
func (s *MaintenanceService) ReapStalled() {
	cutoff := time.Now().Add(-s.cfg.Pipeline.StaleAfterDuration())

	var inProgress []model.VideoStatus
	for _, status := range model.AllStatuses() {
		if status.InProgress() {
			inProgress = append(inProgress, status)
		}
	}

	var videos []model.Video
	if err := s.db.Where("status IN ? AND updated_at < ?", inProgress, cutoff).
		Find(&videos).Error; err != nil {
		s.logger.Errorf("查询卡死视频失败: %v", err)
		return
	}

	for _, video := range videos {
		failed, ok := video.Status.FailedStatus()
		if !ok {
			continue
		}

		updates := map[string]interface{}{"status": failed}
		switch video.Status {
		case model.StatusDownloading:
			updates["download_error"] = stalledMessage
			updates["download_progress"] = 0.0
		case model.StatusExtractingAudio:
			updates["audio_extraction_error"] = stalledMessage
			updates["audio_extraction_progress"] = 0.0
		case model.StatusTranscribing:
			updates["transcription_error"] = stalledMessage
			updates["transcription_progress"] = 0.0
		}

		if err := s.db.Model(&model.Video{}).Where("id = ?", video.ID).
			Updates(updates).Error; err != nil {
			s.logger.Errorf("回收卡死视频失败: VideoID=%d, %v", video.ID, err)
			continue
		}
		s.logger.Warnf("视频卡死已回收: VideoID=%d, %s -> %s", video.ID, video.Status, failed)
	}
}
