package service

import (
	"math"

	"auto-highlight/app/model"

	"gorm.io/gorm"
)

// progressTracker 把阶段进度按限定频率写回数据库：
// 只在比上次落库值至少前进 step 个百分点时才提交，
// 单次执行内进度单调不减且被钳制在 [0, 100]
type progressTracker struct {
	db      *gorm.DB
	videoID uint
	column  string
	step    float64
	last    float64
}

func newProgressTracker(db *gorm.DB, videoID uint, column string, step float64) *progressTracker {
	return &progressTracker{db: db, videoID: videoID, column: column, step: step}
}

// Update 接收 0-100 的原始进度，必要时落库
func (t *progressTracker) Update(percent float64) {
	percent = math.Min(math.Max(percent, 0), 100)
	if percent-t.last < t.step {
		return
	}

	if err := t.db.Model(&model.Video{}).Where("id = ?", t.videoID).
		Update(t.column, round2(percent)).Error; err != nil {
		return
	}
	t.last = percent
}

// Last 最近一次落库的进度值
func (t *progressTracker) Last() float64 {
	return t.last
}

// round2 保留两位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
