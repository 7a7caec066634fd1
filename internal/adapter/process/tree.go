package process

import (
	"context"
	"slices"

	"github.com/shirou/gopsutil/v4/process"
)

// discoverTree returns the root process followed by all of its live
// descendants, parents before children. Members that exit while the tree is
// walked are left out.
func discoverTree(ctx context.Context, pid int) []*process.Process {
	root, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil || !alive(ctx, root) {
		return nil
	}

	members := []*process.Process{root}
	seen := map[int32]bool{root.Pid: true}
	for i := 0; i < len(members); i++ {
		children, err := members[i].ChildrenWithContext(ctx)
		if err != nil {
			continue
		}
		for _, child := range children {
			if seen[child.Pid] || !alive(ctx, child) {
				continue
			}
			seen[child.Pid] = true
			members = append(members, child)
		}
	}
	return members
}

// alive treats zombies as gone: they hold a pid but can no longer run or be
// signalled meaningfully.
func alive(ctx context.Context, p *process.Process) bool {
	running, err := p.IsRunningWithContext(ctx)
	if err != nil || !running {
		return false
	}
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		return true
	}
	return !slices.Contains(status, process.Zombie)
}

func anyAlive(ctx context.Context, members []*process.Process) bool {
	for _, p := range members {
		if alive(ctx, p) {
			return true
		}
	}
	return false
}

func pids(members []*process.Process) []int32 {
	out := make([]int32, len(members))
	for i, p := range members {
		out[i] = p.Pid
	}
	return out
}

// jobMembers merges the tree below root with the rest of process group pgid.
// Tree members come first, parents before children.
func jobMembers(ctx context.Context, root, pgid int) []*process.Process {
	var members []*process.Process
	if root > 0 {
		members = discoverTree(ctx, root)
	}
	seen := make(map[int32]bool, len(members))
	for _, p := range members {
		seen[p.Pid] = true
	}
	for _, p := range groupMembers(ctx, pgid) {
		if !seen[p.Pid] {
			seen[p.Pid] = true
			members = append(members, p)
		}
	}
	return members
}
