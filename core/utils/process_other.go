//go:build !unix

package utils

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
