//go:build windows

package runner

import "os/exec"

func setProcessGroup(_ *exec.Cmd) {}

func setProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
