package service

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// execCommand 可在测试中替换为假命令
var execCommand = exec.Command

// errStalled 外部进程超时被强制终止
type errStalled struct {
	tool    string
	timeout time.Duration
}

func (e *errStalled) Error() string {
	return fmt.Sprintf("%s 在 %s 内未结束，已强制终止", e.tool, e.timeout)
}

// armStallTimeout 在进程启动后立即开始计时，超时则强制终止进程。
// 进程被杀后管道随之关闭，输出消费协程会读到 EOF 并退出，
// 因此即便进程保持存活但不再产生任何输出也无法绕过这个上限。
// 返回的函数在 cmd.Wait 之后调用：发生过超时则返回卡死错误，
// 否则透传 Wait 的结果
func armStallTimeout(cmd *exec.Cmd, tool string, timeout time.Duration) func(waitErr error) error {
	fired := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		close(fired)
		_ = cmd.Process.Kill()
	})

	return func(waitErr error) error {
		if !timer.Stop() {
			<-fired
			return &errStalled{tool: tool, timeout: timeout}
		}
		return waitErr
	}
}

// drainLines 在独立协程中持续消费一个输出流，防止管道写满导致外部进程卡死。
// 返回的函数等待消费结束并给出流的末尾内容
func drainLines(r io.Reader, keep int) func() string {
	var (
		mu    sync.Mutex
		lines []string
		wg    sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			mu.Lock()
			lines = append(lines, scanner.Text())
			if len(lines) > keep {
				lines = lines[len(lines)-keep:]
			}
			mu.Unlock()
		}
	}()

	return func() string {
		wg.Wait()
		mu.Lock()
		defer mu.Unlock()
		return strings.Join(lines, "\n")
	}
}

// drainConsume 在独立协程中逐行消费输出流并回调每一行，
// 返回的函数等待流被读完
func drainConsume(r io.Reader, onLine func(line string)) func() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			onLine(scanner.Text())
		}
	}()
	return wg.Wait
}

// tail 截取字符串末尾 n 个字符，错误信息只保留最后一段
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
