//go:build !windows

package process

import (
	"context"
	"errors"
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// startInNewGroup puts the child in its own process group so the whole tree
// can be signalled at once, including grandchildren whose parent has exited.
func startInNewGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func groupID(pid int) int {
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return pid
	}
	return pgid
}

func signalGroup(pgid int, sig unix.Signal) error {
	if pgid <= 1 || pgid == unix.Getpgrp() {
		return nil
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func terminateGroup(pgid int) error { return signalGroup(pgid, unix.SIGTERM) }

func stopGroup(pgid int) error { return signalGroup(pgid, unix.SIGSTOP) }

func continueGroup(pgid int) error { return signalGroup(pgid, unix.SIGCONT) }

func killGroup(pgid int) error { return signalGroup(pgid, unix.SIGKILL) }

// groupMembers returns the live, non-zombie processes in group pgid. Members
// reparented after their parent exited are found here even though the tree
// walk from the root no longer reaches them.
func groupMembers(ctx context.Context, pgid int) []*process.Process {
	if pgid <= 1 || pgid == unix.Getpgrp() {
		return nil
	}
	if err := unix.Kill(-pgid, 0); errors.Is(err, unix.ESRCH) {
		return nil
	}

	all, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil
	}
	var members []*process.Process
	for _, pid := range all {
		if g, err := unix.Getpgid(int(pid)); err != nil || g != pgid {
			continue
		}
		p, err := process.NewProcessWithContext(ctx, pid)
		if err != nil || !alive(ctx, p) {
			continue
		}
		members = append(members, p)
	}
	return members
}
