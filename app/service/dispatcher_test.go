package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	mu   sync.Mutex
	runs []uint
	done chan struct{}
}

func (r *recordingExecutor) Run(videoID uint) {
	r.mu.Lock()
	r.runs = append(r.runs, videoID)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
}

func (r *recordingExecutor) ids() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.runs...)
}

func TestDispatcherRunsSubmittedPhase(t *testing.T) {
	d := NewDispatcher(newTestLogger(), 2)
	exec := &recordingExecutor{done: make(chan struct{}, 1)}
	d.Register(PhaseDownload, exec)

	require.NoError(t, d.Submit(42, PhaseDownload))

	select {
	case <-exec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("任务未在预期时间内执行")
	}
	assert.Equal(t, []uint{42}, exec.ids())

	d.Stop(time.Second)
}

func TestDispatcherRejectsUnknownPhase(t *testing.T) {
	d := NewDispatcher(newTestLogger(), 1)
	defer d.Stop(time.Second)

	err := d.Submit(1, Phase("analysis"))
	assert.Error(t, err)
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewDispatcher(newTestLogger(), 1)
	d.Register(PhaseDownload, &recordingExecutor{})
	d.Stop(time.Second)

	err := d.Submit(1, PhaseDownload)
	assert.Error(t, err)
}

func TestDispatcherLimitsConcurrency(t *testing.T) {
	d := NewDispatcher(newTestLogger(), 1)
	block := make(chan struct{})
	started := make(chan uint, 2)

	d.Register(PhaseDownload, executorFunc(func(videoID uint) {
		started <- videoID
		<-block
	}))

	require.NoError(t, d.Submit(1, PhaseDownload))
	require.NoError(t, d.Submit(2, PhaseDownload))

	// 只有一个槽位，第二个任务必须等第一个结束
	<-started
	select {
	case id := <-started:
		t.Fatalf("任务 %d 不应在槽位释放前执行", id)
	case <-time.After(100 * time.Millisecond):
	}

	close(block)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("第二个任务未在槽位释放后执行")
	}

	d.Stop(time.Second)
}

type executorFunc func(videoID uint)

func (f executorFunc) Run(videoID uint) { f(videoID) }
