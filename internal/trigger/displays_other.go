//go:build !linux && !darwin

package trigger

import hostErrors "github.com/awake/host/internal/errors"

// HasExternalDisplay is unsupported on this platform.
func HasExternalDisplay() (bool, error) {
	return false, hostErrors.Unsupported("display detection is unsupported on this host", nil)
}
