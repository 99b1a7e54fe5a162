//go:build windows

package sidecar

import (
	"errors"
	"os/exec"
)

func configureProcess(*exec.Cmd) {}

func terminateProcess(int) error {
	return errors.New("graceful termination unsupported on windows")
}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
