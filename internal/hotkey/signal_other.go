//go:build !unix

package hotkey

import "os"

// Notify reports false: there is no press signal on this platform. Use
// `awake toggle` instead.
func Notify(ch chan<- os.Signal) bool {
	return false
}
