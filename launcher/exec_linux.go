//go:build linux

package launcher

import (
	"os"
	"os/exec"
	"syscall"
)

func init() {
	allocateCmdOptions = func(cmd *exec.Cmd) {
		if _, isLambda := os.LookupEnv("LAMBDA_TASK_ROOT"); isLambda {
			return
		}
		if cmd.SysProcAttr == nil {
			cmd.SysProcAttr = new(syscall.SysProcAttr)
		}
		cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
	}
}
