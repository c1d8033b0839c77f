package trigger

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// RunningProcesses returns the executable names of all processes. Names
// the kernel truncates (15 bytes on Linux, 16 on macOS) are expanded from
// the command line, so long app names match their trigger keys.
func RunningProcesses() (KeySet, error) {
	return listProcesses(context.Background())
}

func listProcesses(ctx context.Context) (KeySet, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make(KeySet, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			// Exited mid-scan or not readable by this user.
			continue
		}
		out[name] = struct{}{}
	}
	return out, nil
}
