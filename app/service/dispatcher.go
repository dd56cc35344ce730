package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auto-highlight/app/logger"
)

// Phase 管线阶段
type Phase string

const (
	PhaseDownload        Phase = "download"
	PhaseAudioExtraction Phase = "audio_extraction"
	PhaseTranscription   Phase = "transcription"
)

// PhaseExecutor 单个阶段的后台执行器，Run 自行兜底所有错误，绝不向外抛出
type PhaseExecutor interface {
	Run(videoID uint)
}

// PhaseDispatcher 管线对外暴露的唯一调度能力，
// HTTP 层只通过它提交任务，状态机本身不依赖任何路由框架
type PhaseDispatcher interface {
	Submit(videoID uint, phase Phase) error
}

// Dispatcher 基于协程的阶段调度器
type Dispatcher struct {
	logger    *logger.Logger
	executors map[Phase]PhaseExecutor
	workers   chan struct{} // 用于控制并发数的信号量
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	stopped   bool
}

// NewDispatcher 创建阶段调度器
func NewDispatcher(log *logger.Logger, maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger:    log,
		executors: make(map[Phase]PhaseExecutor),
		workers:   make(chan struct{}, maxConcurrent),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register 注册某个阶段的执行器
func (d *Dispatcher) Register(phase Phase, executor PhaseExecutor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executors[phase] = executor
}

// Submit 提交一个阶段任务并立即返回，执行发生在后台协程中
func (d *Dispatcher) Submit(videoID uint, phase Phase) error {
	d.mu.RLock()
	executor, ok := d.executors[phase]
	stopped := d.stopped
	d.mu.RUnlock()

	if stopped {
		return fmt.Errorf("调度器已停止")
	}
	if !ok {
		return fmt.Errorf("未注册的阶段: %s", phase)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// 获取工作者槽位，调度器停止时放弃排队中的任务
		select {
		case d.workers <- struct{}{}:
			defer func() { <-d.workers }()
		case <-d.ctx.Done():
			d.logger.Warnf("调度器已停止，放弃任务: VideoID=%d, Phase=%s", videoID, phase)
			return
		}

		d.logger.Infof("开始执行阶段任务: VideoID=%d, Phase=%s", videoID, phase)
		executor.Run(videoID)
		d.logger.Infof("阶段任务结束: VideoID=%d, Phase=%s", videoID, phase)
	}()

	return nil
}

// Stop 停止调度器。排队中的任务被放弃，
// 已经开始的执行器无法取消，最多等待 drainTimeout 后直接返回
func (d *Dispatcher) Stop(drainTimeout time.Duration) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("调度器已停止")
	case <-time.After(drainTimeout):
		d.logger.Warn("仍有阶段任务在运行，调度器不再等待")
	}
}
