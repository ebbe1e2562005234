// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package logsource

import (
	"os"
	"os/exec"
)

func setProcAttrs(cmd *exec.Cmd) {}

func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err == nil {
		return nil
	}
	return cmd.Process.Signal(os.Interrupt)
}
