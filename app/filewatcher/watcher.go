package filewatcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"auto-highlight/app/logger"

	"github.com/fsnotify/fsnotify"
)

// TranscriptWatcher 监控转写目录，转写文档允许在审核之间被人工直接编辑，
// 外部修改会被记录下来方便排查
type TranscriptWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	logger   *logger.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	watching bool
	mu       sync.Mutex
}

// New 创建转写目录监控器
func New(dir string, log *logger.Logger) (*TranscriptWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &TranscriptWatcher{
		dir:     dir,
		watcher: watcher,
		logger:  log,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start 开始监控
func (w *TranscriptWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return nil
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	w.watching = true
	w.wg.Add(1)
	go w.loop()

	w.logger.Infof("转写目录监控已启动: %s", w.dir)
	return nil
}

// Stop 停止监控
func (w *TranscriptWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return nil
	}

	close(w.stopCh)
	w.wg.Wait()
	w.watching = false

	w.logger.Info("转写目录监控已停止")
	return w.watcher.Close()
}

// loop 消费文件系统事件
func (w *TranscriptWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("文件监控错误: %v", err)
		}
	}
}

// handleEvent 只关心转写 JSON 文件的写入和删除
func (w *TranscriptWatcher) handleEvent(event fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
		w.logger.Infof("检测到转写文档变更: %s", event.Name)
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.logger.Warnf("检测到转写文档被移除: %s", event.Name)
	}
}
