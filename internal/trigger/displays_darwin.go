//go:build darwin

package trigger

import (
	"os/exec"
	"strings"
)

// HasExternalDisplay reports whether system_profiler lists a display
// other than the built-in panel.
func HasExternalDisplay() (bool, error) {
	out, err := exec.Command("system_profiler", "SPDisplaysDataType").Output()
	if err != nil {
		return false, err
	}
	return parseDisplayProfile(string(out)), nil
}

// parseDisplayProfile counts display entries (lines carrying a
// "Resolution:" key). A Mac has at most one built-in panel.
func parseDisplayProfile(output string) bool {
	var displays, builtin int
	for _, line := range strings.Split(output, "\n") {
		l := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(l, "Resolution:"):
			displays++
		case strings.HasPrefix(l, "Connection Type: Internal"), strings.HasPrefix(l, "Display Type: Built-in"), strings.HasPrefix(l, "Built-In: Yes"):
			builtin = 1
		}
	}
	return displays > builtin
}
