//go:build windows

package process

import (
	"context"
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
)

func startInNewGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

func groupID(pid int) int { return pid }

// Windows has no group signals; the per-process walk covers the tree.
func terminateGroup(int) error { return nil }

func stopGroup(int) error { return nil }

func continueGroup(int) error { return nil }

func killGroup(int) error { return nil }

func groupMembers(context.Context, int) []*process.Process { return nil }
