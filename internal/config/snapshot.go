package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/battery"
	hostErrors "github.com/awake/host/internal/errors"
	"github.com/awake/host/internal/keepawake"
	"github.com/awake/host/internal/schedule"
	"github.com/awake/host/internal/trigger"
)

// Snapshot is a validated, immutable view of Config. Evaluators and
// pollers read settings from the current Snapshot on every check, so a
// reload takes effect on the next poll without restarting anything.
type Snapshot struct {
	LogLevel  logrus.Level
	LogFormat string
	Socket    string

	Policy          keepawake.DisplaySleepPolicy
	DefaultDuration time.Duration

	SchedulesEnabled        bool
	AppTriggersEnabled      bool
	HardwareTriggersEnabled bool
	KeyboardShortcutEnabled bool

	NotifyOnTimerEnd    bool
	NotifyOnBatteryStop bool

	Battery battery.GuardConfig

	Schedules        []schedule.Rule
	AppTriggers      []trigger.Rule
	HardwareTriggers []trigger.Rule

	SchedulePoll time.Duration
	BatteryPoll  time.Duration
	ProcessPoll  time.Duration
	HardwarePoll time.Duration

	// Warnings are accepted-but-ineffective settings worth logging.
	Warnings []string
}

// Validate checks the configuration without keeping the result.
func (c *Config) Validate() error {
	_, err := c.Snapshot()
	return err
}

// Snapshot validates c and converts it. Errors are config.invalid and
// name the offending field.
func (c *Config) Snapshot() (*Snapshot, error) {
	s := &Snapshot{
		LogFormat:               strings.ToLower(strings.TrimSpace(c.LogFormat)),
		Socket:                  c.Socket,
		Policy:                  keepawake.PolicyFor(c.AllowDisplaySleep),
		SchedulesEnabled:        c.SchedulesEnabled,
		AppTriggersEnabled:      c.AppTriggersEnabled,
		HardwareTriggersEnabled: c.HardwareTriggersEnabled,
		KeyboardShortcutEnabled: c.KeyboardShortcutEnabled,
		NotifyOnTimerEnd:        c.NotifyOnTimerEnd,
		NotifyOnBatteryStop:     c.NotifyOnBatteryStop,
		Battery: battery.GuardConfig{
			Enabled:          c.Battery.Enabled,
			ThresholdPercent: c.Battery.ThresholdPercent,
		},
	}

	if s.Socket == "" {
		if p, err := DefaultSocketPath(); err == nil {
			s.Socket = p
		}
	}

	level := c.LogLevel
	if level == "" {
		level = DefaultLogLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, invalid("log_level", err)
	}
	s.LogLevel = lvl

	switch s.LogFormat {
	case "":
		s.LogFormat = DefaultLogFormat
	case "text", "json":
	default:
		return nil, invalid("log_format", fmt.Errorf("unknown format %q, want text or json", c.LogFormat))
	}

	if s.DefaultDuration, err = ParseSessionDuration(c.DefaultDuration); err != nil {
		return nil, invalid("default_duration", err)
	}

	if t := c.Battery.ThresholdPercent; t < 0 || t > 100 {
		return nil, invalid("battery.threshold_percent", fmt.Errorf("%d is outside 0..100", t))
	}

	for i, sc := range c.Schedules {
		r, err := scheduleRule(sc)
		if err != nil {
			return nil, invalid(fmt.Sprintf("schedule[%d]", i), err)
		}
		if r.StartMinute >= r.EndMinute {
			s.Warnings = append(s.Warnings, fmt.Sprintf("schedule[%d]: %s-%s crosses midnight and will never match", i, sc.Start, sc.End))
		}
		s.Schedules = append(s.Schedules, r)
	}

	for i, tc := range c.AppTriggers {
		r, err := triggerRule(tc)
		if err != nil {
			return nil, invalid(fmt.Sprintf("app_trigger[%d]", i), err)
		}
		s.AppTriggers = append(s.AppTriggers, r)
	}

	for i, tc := range c.HardwareTriggers {
		r, err := triggerRule(tc)
		if err != nil {
			return nil, invalid(fmt.Sprintf("hardware_trigger[%d]", i), err)
		}
		if !trigger.IsEdgeKind(r.Key) {
			return nil, invalid(fmt.Sprintf("hardware_trigger[%d].key", i), fmt.Errorf("unknown edge %q", r.Key))
		}
		s.HardwareTriggers = append(s.HardwareTriggers, r)
	}

	polls := []struct {
		field string
		value string
		def   string
		dst   *time.Duration
	}{
		{"schedule_poll", c.SchedulePoll, DefaultSchedulePoll, &s.SchedulePoll},
		{"battery_poll", c.BatteryPoll, DefaultBatteryPoll, &s.BatteryPoll},
		{"process_poll", c.ProcessPoll, DefaultProcessPoll, &s.ProcessPoll},
		{"hardware_poll", c.HardwarePoll, DefaultHardwarePoll, &s.HardwarePoll},
	}
	for _, p := range polls {
		v := p.value
		if v == "" {
			v = p.def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, invalid(p.field, err)
		}
		if d < time.Second {
			return nil, invalid(p.field, fmt.Errorf("%s is below the 1s minimum", d))
		}
		*p.dst = d
	}

	return s, nil
}

// ScheduleSettings returns the settings the schedule poller reads.
func (s *Snapshot) ScheduleSettings() schedule.Settings {
	return schedule.Settings{Enabled: s.SchedulesEnabled, Rules: s.Schedules, Policy: s.Policy}
}

// AppSettings returns the settings the app-trigger dispatcher reads.
func (s *Snapshot) AppSettings() trigger.Settings {
	return trigger.Settings{Enabled: s.AppTriggersEnabled, Rules: s.AppTriggers, Policy: s.Policy}
}

// HardwareSettings returns the settings the hardware dispatcher reads.
func (s *Snapshot) HardwareSettings() trigger.Settings {
	return trigger.Settings{Enabled: s.HardwareTriggersEnabled, Rules: s.HardwareTriggers, Policy: s.Policy}
}

// GuardConfig returns the battery guard configuration.
func (s *Snapshot) GuardConfig() battery.GuardConfig {
	return s.Battery
}

// ParseSessionDuration accepts a Go duration; empty and "0" mean
// indefinite.
func ParseSessionDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%s is negative", d)
	}
	return d, nil
}

func scheduleRule(sc ScheduleConfig) (schedule.Rule, error) {
	r := schedule.Rule{Enabled: enabled(sc.Enabled)}
	if len(sc.Days) == 0 {
		return r, fmt.Errorf("days must not be empty")
	}
	for _, name := range sc.Days {
		d, err := schedule.ParseWeekday(name)
		if err != nil {
			return r, err
		}
		r.Days = r.Days.With(d)
	}

	var err error
	if r.StartMinute, err = schedule.ParseClock(sc.Start); err != nil {
		return r, fmt.Errorf("start: %w", err)
	}
	if sc.End == "24:00" {
		r.EndMinute = schedule.MinutesPerDay
	} else if r.EndMinute, err = schedule.ParseClock(sc.End); err != nil {
		return r, fmt.Errorf("end: %w", err)
	}
	return r, nil
}

func triggerRule(tc TriggerConfig) (trigger.Rule, error) {
	key := strings.TrimSpace(tc.Key)
	if key == "" {
		return trigger.Rule{}, fmt.Errorf("key must not be empty")
	}
	label := strings.TrimSpace(tc.Label)
	if label == "" {
		label = key
	}
	return trigger.Rule{Key: key, Label: label, Enabled: enabled(tc.Enabled)}, nil
}

func enabled(v *bool) bool {
	return v == nil || *v
}

func invalid(field string, err error) error {
	return hostErrors.ConfigInvalid(fmt.Sprintf("invalid %s: %v", field, err), err)
}
