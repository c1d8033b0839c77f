package ipc

import (
	"github.com/awake/host/internal/keepawake"
)

// Control API routes.
const (
	PathStatus     = "/status"
	PathActivate   = "/activate"
	PathDeactivate = "/deactivate"
	PathToggle     = "/toggle"
	PathEvents     = "/events"
)

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	State keepawake.State `json:"state"`

	// RemainingSeconds is the time left in a timed session, rounded down.
	RemainingSeconds int64 `json:"remaining_seconds,omitempty"`

	Battery  *BatteryStatus `json:"battery,omitempty"`
	Features Features       `json:"features"`

	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// BatteryStatus is the last battery reading and guard configuration.
type BatteryStatus struct {
	Percent          int  `json:"percent"`
	OnBattery        bool `json:"on_battery"`
	GuardEnabled     bool `json:"guard_enabled"`
	ThresholdPercent int  `json:"threshold_percent"`
}

// Features reports which automation families are switched on.
type Features struct {
	Schedules        bool `json:"schedules"`
	AppTriggers      bool `json:"app_triggers"`
	HardwareTriggers bool `json:"hardware_triggers"`
	KeyboardShortcut bool `json:"keyboard_shortcut"`
}

// ActivateRequest is the body of POST /activate. An empty Duration uses
// the configured default; "0" forces an indefinite session. A nil
// AllowDisplaySleep uses the configured policy.
type ActivateRequest struct {
	Duration          string `json:"duration,omitempty"`
	AllowDisplaySleep *bool  `json:"allow_display_sleep,omitempty"`
}

// ChangeResponse is returned by the mutating routes.
type ChangeResponse struct {
	// Changed reports whether the request altered the session.
	Changed bool            `json:"changed"`
	State   keepawake.State `json:"state"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	NextAction string `json:"next_action,omitempty"`
}
