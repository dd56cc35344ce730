package service

import (
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 进程存活但不再产生任何输出时，计时器必须把它杀掉并解除输出消费的阻塞
func TestArmStallTimeoutKillsSilentProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	finish := armStallTimeout(cmd, "sleep", 200*time.Millisecond)
	wait := drainConsume(stdout, func(string) {})

	start := time.Now()
	wait()
	err = finish(cmd.Wait())
	elapsed := time.Since(start)

	require.Error(t, err)
	_, stalled := err.(*errStalled)
	assert.True(t, stalled, "应返回卡死错误，实际: %v", err)
	assert.Contains(t, err.Error(), "强制终止")
	assert.Less(t, elapsed, 2*time.Second, "超时后必须立刻解除阻塞")
}

func TestArmStallTimeoutPassesThroughNormalExit(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())

	finish := armStallTimeout(cmd, "true", 5*time.Second)
	assert.NoError(t, finish(cmd.Wait()))
}

func TestArmStallTimeoutPassesThroughExitError(t *testing.T) {
	cmd := exec.Command("false")
	require.NoError(t, cmd.Start())

	finish := armStallTimeout(cmd, "false", 5*time.Second)
	err := finish(cmd.Wait())
	require.Error(t, err)
	_, stalled := err.(*errStalled)
	assert.False(t, stalled, "非超时退出不应伪装成卡死")
}

func TestDrainLinesKeepsTail(t *testing.T) {
	input := strings.Join([]string{"a", "b", "c", "d", "e"}, "\n")
	wait := drainLines(strings.NewReader(input), 2)
	assert.Equal(t, "d\ne", wait())
}

func TestDrainLinesShortInput(t *testing.T) {
	wait := drainLines(strings.NewReader("only"), 50)
	assert.Equal(t, "only", wait())
}

func TestDrainConsumeCallsPerLine(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	wait := drainConsume(strings.NewReader("x\ny\nz"), func(line string) {
		mu.Lock()
		seen = append(seen, line)
		mu.Unlock()
	})
	wait()
	assert.Equal(t, []string{"x", "y", "z"}, seen)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 10))
	assert.Equal(t, "cdef", tail("abcdef", 4))
	assert.Equal(t, "", tail("", 4))
}
