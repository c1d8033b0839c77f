package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
	"github.com/awake/host/internal/keepawake"
	"github.com/awake/host/internal/poll"
)

// DefaultInterval is the schedule poll cadence.
const DefaultInterval = time.Minute

// Coordinator is the subset of keepawake.Coordinator the poller drives.
type Coordinator interface {
	ActivateIfInactive(ctx context.Context, source keepawake.Source, duration time.Duration, policy keepawake.DisplaySleepPolicy) (bool, error)
	DeactivateIfSource(ctx context.Context, source keepawake.Source) bool
}

// Settings is the slice of configuration the poller reads on every check.
type Settings struct {
	Enabled bool
	Rules   []Rule
	Policy  keepawake.DisplaySleepPolicy
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   logrus.FieldLogger
}

// Poller evaluates the schedule on a fixed cadence and acts only on
// edges: it starts a Schedule session when the window opens and ends it
// when the window closes.
type Poller struct {
	coord    Coordinator
	settings func() Settings
	log      logrus.FieldLogger
	loop     *poll.Poller

	mu        sync.Mutex
	wasActive bool
}

// NewPoller creates a stopped poller. settings is called on every check
// so configuration reloads take effect on the next poll.
func NewPoller(coord Coordinator, settings func() Settings, opts PollerOptions) *Poller {
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
		settings: settings,
		log:      logger.WithField("component", "schedule"),
	}
	p.loop = poll.New(poll.Config{
		Interval: interval,
		Clock:    opts.Clock,
		Func: func(now time.Time) {
			p.Check(context.Background(), now)
		},
	})
	return p
}

// Start begins polling; the first check runs immediately.
func (p *Poller) Start() { p.loop.Start() }

// Stop halts polling and waits for an in-flight check.
func (p *Poller) Stop() { p.loop.Stop() }

// Check evaluates the schedule at now and applies any edge.
func (p *Poller) Check(ctx context.Context, now time.Time) {
	s := p.settings()
	active := s.Enabled && IsActive(s.Rules, now)

	p.mu.Lock()
	was := p.wasActive
	p.wasActive = active
	p.mu.Unlock()

	switch {
	case active && !was:
		started, err := p.coord.ActivateIfInactive(ctx, keepawake.Schedule(), 0, s.Policy)
		if err != nil {
			p.log.WithError(err).Warn("schedule: activation failed")
			return
		}
		if !started {
			p.log.Debug("schedule: window opened while another session is active, skipping")
			return
		}
		p.log.Info("schedule: window opened")
	case !active && was:
		if p.coord.DeactivateIfSource(ctx, keepawake.Schedule()) {
			p.log.Info("schedule: window closed")
		}
	}
}
