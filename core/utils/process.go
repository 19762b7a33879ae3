package utils

import (
	"errors"
	"os/exec"
	"sync"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited I/O after the process is killed.
const waitDelay = 2 * time.Second

// NewCommand 创建子进程命令。ctx 取消时整个进程组被 kill，
// 避免 yt-dlp 派生的子进程在拆除后残留。
func NewCommand(cmd *exec.Cmd) *exec.Cmd {
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	return cmd
}

// ExitCode 返回进程退出码，无法获取时返回 -1
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// TailBuffer keeps the last Max bytes written to it. Used for child stderr.
type TailBuffer struct {
	Max int

	mu  sync.Mutex
	buf []byte
}

func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	limit := b.Max
	if limit <= 0 {
		limit = 4096
	}
	b.buf = append(b.buf, p...)
	if len(b.buf) > limit {
		b.buf = append(b.buf[:0], b.buf[len(b.buf)-limit:]...)
	}
	return len(p), nil
}

func (b *TailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
