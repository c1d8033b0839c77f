package keepawake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
	hostErrors "github.com/awake/host/internal/errors"
)

// DefaultTickInterval is the countdown resolution.
const DefaultTickInterval = time.Second

// Options configures coordinator behavior.
type Options struct {
	// Clock supplies time and the countdown ticker; defaults to clock.Real().
	Clock clock.Clock
	// Notifier receives session events; defaults to a no-op.
	Notifier Notifier
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
	// TickInterval defaults to DefaultTickInterval.
	TickInterval time.Duration
}

// Coordinator owns the single activation state and the grant behind it.
//
// Every mutating operation takes opMu for its whole duration, including
// the Adapter round-trip, so transitions never interleave. Snapshot reads
// take only mu and never wait on OS calls.
type Coordinator struct {
	opMu sync.Mutex

	adapter  Adapter
	clock    clock.Clock
	notifier Notifier
	log      logrus.FieldLogger
	tick     time.Duration

	// Guarded by opMu.
	handle        Handle
	closed        bool
	countdownGen  uint64
	countdownStop chan struct{}
	countdownTick *clock.Ticker

	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int
}

// NewCoordinator creates an Inactive coordinator driving adapter.
func NewCoordinator(adapter Adapter, opts Options) *Coordinator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}

	return &Coordinator{
		adapter:  adapter,
		clock:    clk,
		notifier: notifier,
		log:      logger.WithField("component", "coordinator"),
		tick:     tick,
		state:    State{UpdatedAt: clk.Now()},
		subs:     make(map[int]chan State),
	}
}

// CurrentState returns a copy of the current state.
func (c *Coordinator) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate replaces any current session with a new one held by source.
// A zero duration starts an indefinite session. On acquire failure the
// coordinator is left Inactive and the coded error is returned.
func (c *Coordinator) Activate(ctx context.Context, source Source, duration time.Duration, policy DisplaySleepPolicy) error {
	_, err := c.activate(ctx, source, duration, policy, false)
	return err
}

// ActivateIfInactive starts a session only when no session is held. The
// check and the activation happen in one serialized step, so automation
// can never preempt a session that started in between. It reports
// whether a session was started.
func (c *Coordinator) ActivateIfInactive(ctx context.Context, source Source, duration time.Duration, policy DisplaySleepPolicy) (bool, error) {
	return c.activate(ctx, source, duration, policy, true)
}

func (c *Coordinator) activate(ctx context.Context, source Source, duration time.Duration, policy DisplaySleepPolicy, onlyIfInactive bool) (bool, error) {
	if duration < 0 {
		return false, hostErrors.InvalidDuration(int64(duration / time.Second))
	}
	if policy == "" {
		policy = PolicySystemAndDisplay
	}

	c.opMu.Lock()
	if c.closed {
		c.opMu.Unlock()
		return false, hostErrors.CoordinatorClosed()
	}
	if onlyIfInactive && c.handle != nil {
		c.opMu.Unlock()
		return false, nil
	}

	c.stopCountdownLocked()

	// The grant type may not support two holders, so the old handle goes
	// first. Observers keep seeing the old session until the new acquire
	// settles.
	var lastErr string
	if c.handle != nil {
		prev := c.CurrentState()
		if prev.Deadline != nil {
			c.notifier.CancelSessionEnd()
		}
		if err := c.handle.Release(ctx); err != nil {
			lastErr = c.releaseFailed(prev.Source, err)
		}
		c.handle = nil
	}

	label := source.String()
	h, err := c.adapter.Acquire(ctx, policy, label)
	if err == nil && h == nil {
		err = hostErrors.New(hostErrors.CodePowerAcquireFailed, "adapter returned no grant")
	}
	if err != nil {
		err = classifyAcquireError(label, err)
		c.publish(func(s *State) {
			*s = State{StoppedByBattery: s.StoppedByBattery, LastError: err.Error(), Revision: s.Revision}
		})
		c.opMu.Unlock()
		c.log.WithError(err).WithField("source", label).Warn("coordinator: activation failed")
		return false, err
	}

	c.handle = h
	now := c.clock.Now()
	next := State{
		Active:    true,
		Source:    source,
		Policy:    policy,
		SessionID: uuid.NewString(),
		StartedAt: now,
		LastError: lastErr,
	}
	if duration > 0 {
		deadline := now.Add(duration)
		next.Deadline = &deadline
		c.startCountdownLocked()
	}
	c.publish(func(s *State) {
		next.Revision = s.Revision
		*s = next
	})
	if duration > 0 {
		c.notifier.NotifySessionWillEnd(noticeSeconds(duration), label)
	}
	c.opMu.Unlock()

	entry := c.log.WithFields(logrus.Fields{
		"source":  label,
		"policy":  string(policy),
		"session": next.SessionID,
	})
	if duration > 0 {
		entry.WithField("duration", duration.String()).Info("coordinator: timed session started")
	} else {
		entry.Info("coordinator: session started")
	}
	return true, nil
}

// DeactivateIfSource ends the current session only when it is held by
// source. It reports whether a session was ended.
func (c *Coordinator) DeactivateIfSource(ctx context.Context, source Source) bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	st := c.CurrentState()
	if c.closed || !st.Active || st.Source != source {
		return false
	}
	c.deactivateLocked(ctx, false, false)
	c.log.WithField("source", source.String()).Info("coordinator: session ended by its source")
	return true
}

// DeactivateUnconditional ends the current session whatever its source.
// It reports whether a session was ended.
func (c *Coordinator) DeactivateUnconditional(ctx context.Context) bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	st := c.CurrentState()
	if c.closed || !st.Active {
		return false
	}
	c.deactivateLocked(ctx, false, false)
	c.log.WithField("source", st.Source.String()).Info("coordinator: session ended")
	return true
}

// OnTick expires the current session when now has reached its deadline.
// Calls without an armed deadline are no-ops.
func (c *Coordinator) OnTick(now time.Time) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.expireLocked(now)
}

// OnBatteryCritical force-ends the current session regardless of its
// source and marks it as stopped by the battery guard. The caller is
// responsible for evaluating the guard condition.
func (c *Coordinator) OnBatteryCritical(ctx context.Context, level int) bool {
	c.opMu.Lock()
	st := c.CurrentState()
	if c.closed || !st.Active {
		c.opMu.Unlock()
		return false
	}
	c.deactivateLocked(ctx, true, false)
	c.opMu.Unlock()

	c.log.WithFields(logrus.Fields{
		"source": st.Source.String(),
		"level":  level,
	}).Warn("coordinator: session stopped by battery guard")
	c.notifier.NotifyBatteryStopped(level)
	return true
}

// Subscribe returns a channel that receives every published state. Slow
// receivers only see the latest state. The returned func unsubscribes.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close releases any held grant, closes subscriber channels and rejects
// further activations.
func (c *Coordinator) Close(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.stopCountdownLocked()
	if c.CurrentState().Deadline != nil {
		c.notifier.CancelSessionEnd()
	}

	var err error
	if h := c.handle; h != nil {
		c.handle = nil
		if rerr := h.Release(ctx); rerr != nil {
			err = hostErrors.ReleaseFailed(rerr)
		}
	}

	c.publish(func(s *State) {
		next := State{StoppedByBattery: s.StoppedByBattery, Revision: s.Revision}
		if err != nil {
			next.LastError = err.Error()
		}
		*s = next
	})

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	if err != nil {
		c.log.WithError(err).Warn("coordinator: release on shutdown failed")
	}
	return err
}

func (c *Coordinator) expireLocked(now time.Time) {
	st := c.CurrentState()
	if !st.Active || st.Deadline == nil || now.Before(*st.Deadline) {
		return
	}
	c.deactivateLocked(context.Background(), false, true)
	c.log.WithField("source", st.Source.String()).Info("coordinator: timed session expired")
}

// deactivateLocked releases the handle, disarms the countdown and
// publishes Inactive. A release failure is recorded but never blocks
// the transition. A pending end notice survives only natural expiry.
func (c *Coordinator) deactivateLocked(ctx context.Context, byBattery, expired bool) {
	c.stopCountdownLocked()

	prev := c.CurrentState()
	if prev.Deadline != nil && !expired {
		c.notifier.CancelSessionEnd()
	}
	var lastErr string
	if h := c.handle; h != nil {
		c.handle = nil
		if err := h.Release(ctx); err != nil {
			lastErr = c.releaseFailed(prev.Source, err)
		}
	}

	c.publish(func(s *State) {
		*s = State{
			StoppedByBattery: s.StoppedByBattery || byBattery,
			LastError:        lastErr,
			Revision:         s.Revision,
		}
	})
}

func (c *Coordinator) releaseFailed(source Source, err error) string {
	coded := hostErrors.ReleaseFailed(err)
	c.log.WithError(err).WithField("source", source.String()).Warn("coordinator: release failed, grant may linger until exit")
	return coded.Error()
}

func (c *Coordinator) startCountdownLocked() {
	c.stopCountdownLocked()

	c.countdownGen++
	gen := c.countdownGen
	stop := make(chan struct{})
	ticker := c.clock.NewTicker(c.tick)
	c.countdownStop = stop
	c.countdownTick = ticker

	go c.runCountdown(ticker, stop, gen)
}

// stopCountdownLocked never waits for the countdown goroutine, which may
// itself be blocked on opMu.
func (c *Coordinator) stopCountdownLocked() {
	if c.countdownStop == nil {
		return
	}
	c.countdownTick.Stop()
	close(c.countdownStop)
	c.countdownStop = nil
	c.countdownTick = nil
}

func (c *Coordinator) runCountdown(ticker *clock.Ticker, stop <-chan struct{}, gen uint64) {
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			c.opMu.Lock()
			if c.countdownGen == gen && c.countdownStop != nil {
				c.expireLocked(now)
			}
			c.opMu.Unlock()
		}
	}
}

// publish applies mutate to the state, bumps the revision and fans the
// result out to subscribers.
func (c *Coordinator) publish(mutate func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mutate(&c.state)
	c.state.Revision++
	c.state.UpdatedAt = c.clock.Now()

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.state:
		default:
		}
	}
}

// noticeSeconds rounds a session length up to whole seconds so the end
// notice never fires before the countdown expires the session.
func noticeSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func classifyAcquireError(label string, err error) error {
	switch hostErrors.GetCode(err) {
	case hostErrors.CodePowerAcquireFailed, hostErrors.CodePowerUnsupportedEnvironment:
		return err
	}
	return hostErrors.AcquireFailed(label, err)
}

type nopNotifier struct{}

func (nopNotifier) NotifySessionWillEnd(int, string) {}
func (nopNotifier) CancelSessionEnd()                {}
func (nopNotifier) NotifyBatteryStopped(int)         {}
