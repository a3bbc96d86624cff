//go:build !unix

package invoker

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func KillGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func SetProcessGroup(cmd *exec.Cmd) {
	setProcessGroup(cmd)
}
