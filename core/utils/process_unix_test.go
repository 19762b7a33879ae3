//go:build unix

package utils

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandKillsGroupOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// shell 打印后台 sleep 的 pid 后等待它
	cmd := NewCommand(exec.CommandContext(ctx, "sh", "-c", "sleep 30 & echo $!; wait"))
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	require.NoError(t, syscall.Kill(pid, 0), "grandchild should be running")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}

	// 只杀 shell 时 sleep 会被 init 收养并继续运行
	assert.Eventually(t, func() bool { return processGone(pid) },
		2*time.Second, 10*time.Millisecond, "grandchild %d survived cancellation", pid)
}

// processGone treats a zombie as gone; a container init may never reap it.
func processGone(pid int) bool {
	if syscall.Kill(pid, 0) != nil {
		return true
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	// 格式为 "pid (comm) state ..."
	i := strings.LastIndexByte(string(stat), ')')
	return i >= 0 && i+2 < len(stat) && stat[i+2] == 'Z'
}
