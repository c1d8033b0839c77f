// Package keepawake owns the host's single stay-awake grant.
//
// A Coordinator serializes activation requests from every source
// (manual control, schedules, app and hardware triggers, the keyboard
// shortcut, the battery guard) and holds at most one OS grant at a time
// through the Adapter boundary. Pollers and watchers in sibling packages
// decide when to call it; this package decides what happens.
package keepawake

import (
	"context"
	"time"
)

// SourceKind identifies the family of an activation source.
type SourceKind string

const (
	SourceManual           SourceKind = "manual"
	SourceSchedule         SourceKind = "schedule"
	SourceAppTrigger       SourceKind = "app_trigger"
	SourceHardwareTrigger  SourceKind = "hardware_trigger"
	SourceKeyboardShortcut SourceKind = "keyboard_shortcut"
)

// Source is the logical reason a session holds the grant. Two sources are
// equal iff both Kind and Name match, so Source is usable with ==.
type Source struct {
	Kind SourceKind `json:"kind"`
	// Name is the app label for app triggers and the edge kind for
	// hardware triggers. Empty for other kinds.
	Name string `json:"name,omitempty"`
}

func Manual() Source           { return Source{Kind: SourceManual} }
func Schedule() Source         { return Source{Kind: SourceSchedule} }
func KeyboardShortcut() Source { return Source{Kind: SourceKeyboardShortcut} }

// AppTrigger returns the source for a session started by a watched app.
func AppTrigger(label string) Source {
	return Source{Kind: SourceAppTrigger, Name: label}
}

// HardwareTrigger returns the source for a session started by a hardware edge.
func HardwareTrigger(kind string) Source {
	return Source{Kind: SourceHardwareTrigger, Name: kind}
}

// String returns the user-facing label used in notifications and the
// grant's reason string.
func (s Source) String() string {
	switch s.Kind {
	case SourceManual:
		return "Manual"
	case SourceSchedule:
		return "Schedule"
	case SourceAppTrigger:
		return "App: " + s.Name
	case SourceHardwareTrigger:
		return "Hardware: " + s.Name
	case SourceKeyboardShortcut:
		return "Shortcut"
	case "":
		return ""
	default:
		return string(s.Kind)
	}
}


// DisplaySleepPolicy selects the scope of the grant.
type DisplaySleepPolicy string

const (
	// PolicySystemOnly keeps the system awake but lets the display sleep.
	PolicySystemOnly DisplaySleepPolicy = "system_only"
	// PolicySystemAndDisplay keeps both the system and the display awake.
	PolicySystemAndDisplay DisplaySleepPolicy = "system_and_display"
)

// PolicyFor maps the user-facing "allow display sleep" preference to a policy.
func PolicyFor(allowDisplaySleep bool) DisplaySleepPolicy {
	if allowDisplaySleep {
		return PolicySystemOnly
	}
	return PolicySystemAndDisplay
}

// State is a snapshot of the coordinator. The zero value is Inactive.
type State struct {
	Active bool               `json:"active"`
	Source Source             `json:"source"`
	Policy DisplaySleepPolicy `json:"policy,omitempty"`
	// SessionID changes on every successful activation, including replaces.
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	// Deadline is nil for indefinite sessions.
	Deadline *time.Time `json:"deadline,omitempty"`
	// StoppedByBattery is set when the battery guard ended the last
	// session and cleared by the next successful activation.
	StoppedByBattery bool `json:"stopped_by_battery"`
	// LastError stores the most recent power resource failure.
	LastError string    `json:"last_error,omitempty"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Remaining returns the time left before the deadline, or zero for
// inactive and indefinite sessions.
func (s State) Remaining(now time.Time) time.Duration {
	if !s.Active || s.Deadline == nil {
		return 0
	}
	if d := s.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Handle represents one acquired stay-awake grant.
type Handle interface {
	// Release gives the grant back to the OS.
	Release(ctx context.Context) error
}

// Adapter acquires OS-specific stay-awake grants.
type Adapter interface {
	Acquire(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error)
}

// Notifier receives user-visible session events. Implementations must
// return quickly and must not call back into the Coordinator.
type Notifier interface {
	// NotifySessionWillEnd announces a timed session; the notice is due
	// when durationSeconds have passed.
	NotifySessionWillEnd(durationSeconds int, sourceLabel string)
	// CancelSessionEnd withdraws a pending end notice because the timed
	// session ended early or was replaced.
	CancelSessionEnd()
	NotifyBatteryStopped(level int)
}

// PowerSnapshot is a point-in-time reading of host power state.
// Nil pointer fields indicate unknown/unavailable readings.
type PowerSnapshot struct {
	OnBattery      *bool
	BatteryPercent *int
	ExternalPower  *bool
}

// PowerProvider returns the current power state of the host.
type PowerProvider interface {
	Snapshot() PowerSnapshot
}
