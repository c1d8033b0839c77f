//go:build darwin

package keepawake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	hostErrors "github.com/awake/host/internal/errors"
)

// killGrace is how long Release waits for caffeinate after SIGKILL.
const killGrace = 200 * time.Millisecond

// NewDefaultAdapter returns the caffeinate-backed macOS adapter.
func NewDefaultAdapter() Adapter {
	return &caffeinateAdapter{binary: "caffeinate", ownerPID: os.Getpid()}
}

// caffeinateAdapter holds one caffeinate child per grant. The child
// watches ownerPID with -w and exits on its own if the daemon dies.
type caffeinateAdapter struct {
	binary   string
	ownerPID int
}

// caffeinateArgs maps a policy to assertion flags: -i prevents idle
// system sleep, -d additionally keeps the display on.
func caffeinateArgs(policy DisplaySleepPolicy, ownerPID int) []string {
	assertions := "-i"
	if policy == PolicySystemAndDisplay {
		assertions = "-di"
	}
	return []string{assertions, "-w", strconv.Itoa(ownerPID)}
}

func (a *caffeinateAdapter) Acquire(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error) {
	cmd := exec.Command(a.binary, caffeinateArgs(policy, a.ownerPID)...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, hostErrors.Unsupported("caffeinate is not installed", err)
		}
		return nil, hostErrors.AcquireFailed(label, err)
	}
	return startGrant(cmd), nil
}

// caffeinateGrant is a running caffeinate child.
type caffeinateGrant struct {
	proc   *os.Process
	exited chan struct{}
	stop   sync.Once
}

func startGrant(cmd *exec.Cmd) *caffeinateGrant {
	g := &caffeinateGrant{proc: cmd.Process, exited: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(g.exited)
	}()
	return g
}

// Release sends SIGTERM and waits for the child. When ctx ends first
// the child is killed and the timeout is reported.
func (g *caffeinateGrant) Release(ctx context.Context) error {
	g.stop.Do(func() {
		_ = g.proc.Signal(unix.SIGTERM)
	})

	select {
	case <-g.exited:
		return nil
	case <-ctx.Done():
	}

	_ = g.proc.Kill()
	select {
	case <-g.exited:
	case <-time.After(killGrace):
	}
	return fmt.Errorf("caffeinate did not exit in time: %w", ctx.Err())
}
