package utils

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBufferKeepsLastBytes(t *testing.T) {
	b := &TailBuffer{Max: 8}
	_, _ = b.Write([]byte("hello "))
	_, _ = b.Write([]byte("world!"))
	assert.Equal(t, "o world!", b.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	err := exec.Command("sh", "-c", "exit 3").Run()
	assert.Equal(t, 3, ExitCode(err))
}
