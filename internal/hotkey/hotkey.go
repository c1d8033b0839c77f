// Package hotkey implements the keyboard-shortcut toggle. The desktop
// shortcut runs `awake toggle` or sends SIGUSR1 to the daemon; both land
// on Toggle, which behaves like manual control and always wins over
// automated sessions.
package hotkey

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/awake/host/internal/keepawake"
)

// Coordinator is the subset of keepawake.Coordinator the toggle drives.
type Coordinator interface {
	CurrentState() keepawake.State
	Activate(ctx context.Context, source keepawake.Source, duration time.Duration, policy keepawake.DisplaySleepPolicy) error
	DeactivateUnconditional(ctx context.Context) bool
}

// Toggle starts a shortcut session when inactive and otherwise ends the
// current session whatever its source. It reports whether the toggle
// left the coordinator active.
func Toggle(ctx context.Context, coord Coordinator, defaultDuration time.Duration, policy keepawake.DisplaySleepPolicy) (bool, error) {
	if coord.CurrentState().Active {
		coord.DeactivateUnconditional(ctx)
		return false, nil
	}
	if err := coord.Activate(ctx, keepawake.KeyboardShortcut(), defaultDuration, policy); err != nil {
		return false, err
	}
	return true, nil
}

// Settings is the configuration the listener reads on every press.
type Settings struct {
	Enabled         bool
	DefaultDuration time.Duration
	Policy          keepawake.DisplaySleepPolicy
}

// DefaultDebounce is the minimum spacing between accepted presses.
const DefaultDebounce = 500 * time.Millisecond

// Listener turns press signals into toggles, dropping presses that
// arrive faster than the debounce interval.
type Listener struct {
	coord    Coordinator
	settings func() Settings
	limiter  *rate.Limiter
	log      logrus.FieldLogger
}

// NewListener creates a listener. debounce <= 0 uses DefaultDebounce.
func NewListener(coord Coordinator, settings func() Settings, debounce time.Duration, logger logrus.FieldLogger) *Listener {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Listener{
		coord:    coord,
		settings: settings,
		limiter:  rate.NewLimiter(rate.Every(debounce), 1),
		log:      logger.WithField("component", "hotkey"),
	}
}

// Sentinel results of Trigger for presses that were not acted on.
var (
	ErrDisabled  = errors.New("keyboard shortcut is disabled")
	ErrDebounced = errors.New("shortcut pressed too quickly")
)

// Trigger handles one shortcut press and reports whether the coordinator
// is now active. Presses that are ignored return ErrDisabled or
// ErrDebounced.
func (l *Listener) Trigger(ctx context.Context) (bool, error) {
	s := l.settings()
	if !s.Enabled {
		return false, ErrDisabled
	}
	if !l.limiter.Allow() {
		return false, ErrDebounced
	}
	return Toggle(ctx, l.coord, s.DefaultDuration, s.Policy)
}

// Press is Trigger with the outcome logged. It reports whether the
// press was acted on.
func (l *Listener) Press(ctx context.Context) bool {
	active, err := l.Trigger(ctx)
	switch {
	case errors.Is(err, ErrDisabled):
		l.log.Debug("hotkey: shortcut disabled, ignoring press")
		return false
	case errors.Is(err, ErrDebounced):
		l.log.Debug("hotkey: press debounced")
		return false
	case err != nil:
		l.log.WithError(err).Warn("hotkey: toggle failed")
		return true
	}
	l.log.WithField("active", active).Info("hotkey: toggled")
	return true
}

// Run handles presses from presses until ctx is done or the channel closes.
func (l *Listener) Run(ctx context.Context, presses <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-presses:
			if !ok {
				return
			}
			l.Press(ctx)
		}
	}
}
