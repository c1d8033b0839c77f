package config

// Defaults for values the file may omit.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultBatteryThreshold = 20
	DefaultSchedulePoll     = "60s"
	DefaultBatteryPoll      = "30s"
	DefaultProcessPoll      = "2s"
	DefaultHardwarePoll     = "5s"
)

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		LogLevel:                DefaultLogLevel,
		LogFormat:               DefaultLogFormat,
		KeyboardShortcutEnabled: true,
		NotifyOnTimerEnd:        true,
		NotifyOnBatteryStop:     true,
		Battery: BatteryConfig{
			Enabled:          true,
			ThresholdPercent: DefaultBatteryThreshold,
		},
		SchedulePoll: DefaultSchedulePoll,
		BatteryPoll:  DefaultBatteryPoll,
		ProcessPoll:  DefaultProcessPoll,
		HardwarePoll: DefaultHardwarePoll,
	}
}

const starterConfig = `# awake configuration
# Created by 'awake config init'. Send SIGHUP to the daemon to reload.

log_level = "info"

# Keep only the system awake and let the display sleep.
allow_display_sleep = false

# Duration for the keyboard shortcut and 'awake on' without --duration.
# Empty means indefinite.
default_duration = ""

schedules_enabled = false
app_triggers_enabled = false
hardware_triggers_enabled = false
keyboard_shortcut_enabled = true

notify_on_timer_end = true
notify_on_battery_stop = true

[battery]
enabled = true
threshold_percent = 20

# [[schedule]]
# days = ["mon", "tue", "wed", "thu", "fri"]
# start = "09:00"
# end = "17:00"

# [[app_trigger]]
# key = "zoom"
# label = "Zoom"

# [[hardware_trigger]]
# key = "power_connected"
# label = "Power connected"
`
