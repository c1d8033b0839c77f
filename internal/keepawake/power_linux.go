//go:build linux

package keepawake

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	upowerDest          = "org.freedesktop.UPower"
	upowerPath          = dbus.ObjectPath("/org/freedesktop/UPower")
	upowerDisplayDevice = dbus.ObjectPath("/org/freedesktop/UPower/devices/DisplayDevice")

	defaultPowerSupplyDir = "/sys/class/power_supply"
)

// NewDefaultPowerProvider returns a provider that asks UPower first and
// falls back to reading /sys/class/power_supply.
func NewDefaultPowerProvider() PowerProvider {
	return &linuxPowerProvider{
		connect:   dbus.SystemBus,
		supplyDir: defaultPowerSupplyDir,
	}
}

type linuxPowerProvider struct {
	connect   func() (*dbus.Conn, error)
	supplyDir string
}

func (p *linuxPowerProvider) Snapshot() PowerSnapshot {
	if p.connect != nil {
		if conn, err := p.connect(); err == nil {
			if snap, ok := upowerSnapshot(conn); ok {
				return snap
			}
		}
	}
	return readPowerSupplyDir(p.supplyDir)
}

func upowerSnapshot(conn *dbus.Conn) (PowerSnapshot, bool) {
	snap := PowerSnapshot{}

	daemon := conn.Object(upowerDest, upowerPath)
	onBattery, err := daemon.GetProperty(upowerDest + ".OnBattery")
	if err != nil {
		return snap, false
	}
	if v, ok := onBattery.Value().(bool); ok {
		ext := !v
		snap.OnBattery = &v
		snap.ExternalPower = &ext
	}

	dev := conn.Object(upowerDest, upowerDisplayDevice)
	present, err := dev.GetProperty(upowerDest + ".Device.IsPresent")
	if err != nil {
		return snap, true
	}
	if ok, _ := present.Value().(bool); !ok {
		return snap, true
	}
	pct, err := dev.GetProperty(upowerDest + ".Device.Percentage")
	if err != nil {
		return snap, true
	}
	if v, ok := pct.Value().(float64); ok && v >= 0 && v <= 100 {
		n := int(v + 0.5)
		snap.BatteryPercent = &n
	}
	return snap, true
}

// readPowerSupplyDir builds a snapshot from the kernel power_supply class.
// Mains adapters report "online"; batteries report "capacity" and "status".
func readPowerSupplyDir(dir string) PowerSnapshot {
	snap := PowerSnapshot{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return snap
	}

	var sawMains, mainsOnline, sawBattery, discharging bool
	for _, e := range entries {
		base := filepath.Join(dir, e.Name())
		switch readSysString(filepath.Join(base, "type")) {
		case "Mains", "USB":
			sawMains = true
			if readSysString(filepath.Join(base, "online")) == "1" {
				mainsOnline = true
			}
		case "Battery":
			if readSysString(filepath.Join(base, "scope")) == "Device" {
				continue
			}
			sawBattery = true
			if readSysString(filepath.Join(base, "status")) == "Discharging" {
				discharging = true
			}
			if snap.BatteryPercent == nil {
				if pct, err := strconv.Atoi(readSysString(filepath.Join(base, "capacity"))); err == nil && pct >= 0 && pct <= 100 {
					snap.BatteryPercent = &pct
				}
			}
		}
	}

	switch {
	case sawMains:
		onBattery := !mainsOnline && sawBattery
		snap.ExternalPower = &mainsOnline
		snap.OnBattery = &onBattery
	case sawBattery:
		ext := !discharging
		snap.OnBattery = &discharging
		snap.ExternalPower = &ext
	}
	return snap
}

func readSysString(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
