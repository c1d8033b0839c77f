// Package config provides configuration file loading and parsing for the
// awake daemon. The file lives at ~/.awake/config.toml by default and can
// be overridden with --config; a .yaml or .yml path is read as YAML. CLI
// flags always take precedence over file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	hostErrors "github.com/awake/host/internal/errors"
)

// Config represents the configuration file structure. Field names use Go
// camelCase internally but map to snake_case keys in both formats.
type Config struct {
	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// LogFormat selects the log encoder: text or json.
	// Default: text
	LogFormat string `toml:"log_format" yaml:"log_format"`

	// Socket is the path of the daemon's control socket.
	// Default: ~/.awake/awake.sock
	Socket string `toml:"socket" yaml:"socket"`

	// AllowDisplaySleep keeps only the system awake and lets the display
	// sleep. Default: false
	AllowDisplaySleep bool `toml:"allow_display_sleep" yaml:"allow_display_sleep"`

	// DefaultDuration is used by the keyboard shortcut and by `awake on`
	// without --duration, as a Go duration ("45m", "2h"). Empty or "0"
	// means indefinite. Default: indefinite
	DefaultDuration string `toml:"default_duration" yaml:"default_duration"`

	// Feature switches for each automation family.
	SchedulesEnabled        bool `toml:"schedules_enabled" yaml:"schedules_enabled"`
	AppTriggersEnabled      bool `toml:"app_triggers_enabled" yaml:"app_triggers_enabled"`
	HardwareTriggersEnabled bool `toml:"hardware_triggers_enabled" yaml:"hardware_triggers_enabled"`
	KeyboardShortcutEnabled bool `toml:"keyboard_shortcut_enabled" yaml:"keyboard_shortcut_enabled"`

	// Notification switches. Default: both true
	NotifyOnTimerEnd    bool `toml:"notify_on_timer_end" yaml:"notify_on_timer_end"`
	NotifyOnBatteryStop bool `toml:"notify_on_battery_stop" yaml:"notify_on_battery_stop"`

	// Battery configures the battery guard.
	Battery BatteryConfig `toml:"battery" yaml:"battery"`

	// Schedules are recurring time windows.
	Schedules []ScheduleConfig `toml:"schedule" yaml:"schedule"`

	// AppTriggers start a session while a named process runs.
	AppTriggers []TriggerConfig `toml:"app_trigger" yaml:"app_trigger"`

	// HardwareTriggers react to power and display edges.
	HardwareTriggers []TriggerConfig `toml:"hardware_trigger" yaml:"hardware_trigger"`

	// Poll intervals as Go durations. Defaults: 60s, 30s, 2s, 5s
	SchedulePoll string `toml:"schedule_poll" yaml:"schedule_poll"`
	BatteryPoll  string `toml:"battery_poll" yaml:"battery_poll"`
	ProcessPoll  string `toml:"process_poll" yaml:"process_poll"`
	HardwarePoll string `toml:"hardware_poll" yaml:"hardware_poll"`
}

// BatteryConfig is the battery guard section.
type BatteryConfig struct {
	Enabled          bool `toml:"enabled" yaml:"enabled"`
	ThresholdPercent int  `toml:"threshold_percent" yaml:"threshold_percent"`
}

// ScheduleConfig is one [[schedule]] entry.
type ScheduleConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `toml:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Days are English day names, full or abbreviated.
	Days  []string `toml:"days" yaml:"days"`
	Start string   `toml:"start" yaml:"start"`
	End   string   `toml:"end" yaml:"end"`
}

// TriggerConfig is one [[app_trigger]] or [[hardware_trigger]] entry.
type TriggerConfig struct {
	// Key is the process name for app triggers and the edge kind for
	// hardware triggers.
	Key   string `toml:"key" yaml:"key"`
	Label string `toml:"label,omitempty" yaml:"label,omitempty"`
	// Enabled defaults to true when omitted.
	Enabled *bool `toml:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// DefaultConfigPath returns the default config file location: ~/.awake/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".awake", "config.toml"), nil
}

// DefaultSocketPath returns the default control socket location: ~/.awake/awake.sock.
func DefaultSocketPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".awake", "awake.sock"), nil
}

// WriteDefault creates a commented starter config at path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// Load reads a config file and returns it layered over Defaults().
//
// Behavior:
//   - If path is empty, attempts to load from the default location.
//     Returns Defaults() without error if the default file doesn't exist.
//   - If path is specified, returns config.not_found if the file doesn't exist.
//   - Returns config.invalid if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, hostErrors.New(hostErrors.CodeConfigNotFound, fmt.Sprintf("config file not found: %s", path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hostErrors.ConfigInvalid(fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, hostErrors.ConfigInvalid(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return nil
}

// EncodeTOML renders cfg as TOML.
func EncodeTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeYAML renders cfg as YAML.
func EncodeYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
