//go:build unix

package hotkey

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Notify relays SIGUSR1 to ch.
func Notify(ch chan<- os.Signal) bool {
	signal.Notify(ch, unix.SIGUSR1)
	return true
}
