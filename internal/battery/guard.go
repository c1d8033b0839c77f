// Package battery implements the battery guard: the one path allowed to
// end any session, including manual ones, when the battery runs low.
package battery

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
	"github.com/awake/host/internal/keepawake"
	"github.com/awake/host/internal/poll"
)

// DefaultInterval is the battery poll cadence.
const DefaultInterval = 30 * time.Second

// GuardConfig is the user's battery protection preference.
type GuardConfig struct {
	Enabled          bool
	ThresholdPercent int
}

// Reading is one battery measurement.
type Reading struct {
	Percent   int
	OnBattery bool
}

// MustStop reports whether the guard requires ending the session: the
// guard is enabled, the host runs on battery and the level is at or
// below the threshold.
func MustStop(r Reading, cfg GuardConfig) bool {
	if !cfg.Enabled || !r.OnBattery {
		return false
	}
	if r.Percent < 0 || r.Percent > 100 {
		return false
	}
	return r.Percent <= cfg.ThresholdPercent
}

// ReadingFrom converts a power snapshot to a Reading. It reports false
// when the level or power source is unknown.
func ReadingFrom(s keepawake.PowerSnapshot) (Reading, bool) {
	if s.BatteryPercent == nil || s.OnBattery == nil {
		return Reading{}, false
	}
	return Reading{Percent: *s.BatteryPercent, OnBattery: *s.OnBattery}, true
}

// Coordinator is the subset of keepawake.Coordinator the guard drives.
type Coordinator interface {
	CurrentState() keepawake.State
	OnBatteryCritical(ctx context.Context, level int) bool
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   logrus.FieldLogger
}

// Poller reads the battery on a fixed cadence and fires the guard while
// a session is active. It never starts sessions.
type Poller struct {
	coord    Coordinator
	power    keepawake.PowerProvider
	settings func() GuardConfig
	log      logrus.FieldLogger
	loop     *poll.Poller

	mu   sync.Mutex
	last *Reading
}

// NewPoller creates a stopped guard poller.
func NewPoller(coord Coordinator, power keepawake.PowerProvider, settings func() GuardConfig, opts PollerOptions) *Poller {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		coord:    coord,
		power:    power,
		settings: settings,
		log:      logger.WithField("component", "battery"),
	}
	p.loop = poll.New(poll.Config{
		Interval: interval,
		Clock:    opts.Clock,
		Func:     func(time.Time) { p.Check(context.Background()) },
	})
	return p
}

func (p *Poller) Start() { p.loop.Start() }
func (p *Poller) Stop()  { p.loop.Stop() }

// LastReading returns the most recent known reading.
func (p *Poller) LastReading() (Reading, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Reading{}, false
	}
	return *p.last, true
}

// Check reads the battery once and fires the guard when required. It
// reports whether the session was stopped.
func (p *Poller) Check(ctx context.Context) bool {
	r, ok := ReadingFrom(p.power.Snapshot())
	if !ok {
		return false
	}
	p.mu.Lock()
	p.last = &r
	p.mu.Unlock()

	cfg := p.settings()
	if !p.coord.CurrentState().Active || !MustStop(r, cfg) {
		return false
	}

	p.log.WithFields(logrus.Fields{
		"level":     r.Percent,
		"threshold": cfg.ThresholdPercent,
	}).Warn("battery: level at or below threshold, stopping session")
	return p.coord.OnBatteryCritical(ctx, r.Percent)
}
