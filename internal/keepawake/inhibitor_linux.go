//go:build linux

package keepawake

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	hostErrors "github.com/awake/host/internal/errors"
)

const (
	logindDest   = "org.freedesktop.login1"
	logindPath   = dbus.ObjectPath("/org/freedesktop/login1")
	logindMethod = "org.freedesktop.login1.Manager.Inhibit"
	inhibitWho   = "awake"
)

// NewDefaultAdapter returns the systemd-logind adapter. The grant is an
// inhibitor lock that lives as long as the returned file descriptor.
func NewDefaultAdapter() Adapter {
	return &logindAdapter{connect: dbus.SystemBus}
}

type logindAdapter struct {
	connect func() (*dbus.Conn, error)
}

// inhibitWhat maps policy to the logind lock types. "idle" covers screen
// blanking and dimming in desktop sessions that honor logind.
func inhibitWhat(policy DisplaySleepPolicy) string {
	if policy == PolicySystemAndDisplay {
		return "sleep:idle"
	}
	return "sleep"
}

func (a *logindAdapter) Acquire(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error) {
	conn, err := a.connect()
	if err != nil {
		if os.Getenv("DBUS_SYSTEM_BUS_ADDRESS") == "" {
			if _, statErr := os.Stat("/run/dbus/system_bus_socket"); statErr != nil {
				return nil, hostErrors.Unsupported("system D-Bus is unavailable", err)
			}
		}
		return nil, hostErrors.AcquireFailed(label, err)
	}

	obj := conn.Object(logindDest, logindPath)
	call := obj.CallWithContext(ctx, logindMethod, 0, inhibitWhat(policy), inhibitWho, "Keeping awake: "+label, "block")
	if call.Err != nil {
		var dbusErr dbus.Error
		if errors.As(call.Err, &dbusErr) && dbusErr.Name == "org.freedesktop.DBus.Error.ServiceUnknown" {
			return nil, hostErrors.Unsupported("systemd-logind is not running", call.Err)
		}
		return nil, hostErrors.AcquireFailed(label, call.Err)
	}

	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		return nil, hostErrors.AcquireFailed(label, err)
	}
	return &inhibitorHandle{fd: int(fd)}, nil
}

type inhibitorHandle struct {
	mu sync.Mutex
	fd int
}

// Release closes the inhibitor fd; logind drops the lock when the last
// reference goes away.
func (h *inhibitorHandle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fd < 0 {
		return nil
	}
	fd := h.fd
	h.fd = -1
	return unix.Close(fd)
}
