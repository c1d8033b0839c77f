//go:build linux

package trigger

import (
	"os"
	"path/filepath"
	"strings"
)

const drmDir = "/sys/class/drm"

// internalConnectors are panel types built into laptops.
var internalConnectors = []string{"eDP", "LVDS", "DSI"}

// HasExternalDisplay reports whether any non-internal DRM connector is
// connected.
func HasExternalDisplay() (bool, error) {
	return scanDRM(drmDir)
}

func scanDRM(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		// Connectors look like card0-HDMI-A-1.
		name := e.Name()
		dash := strings.IndexByte(name, '-')
		if !strings.HasPrefix(name, "card") || dash < 0 {
			continue
		}
		if isInternalConnector(name[dash+1:]) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, name, "status"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(b)) == "connected" {
			return true, nil
		}
	}
	return false, nil
}

func isInternalConnector(connector string) bool {
	for _, p := range internalConnectors {
		if strings.HasPrefix(connector, p) {
			return true
		}
	}
	return false
}
