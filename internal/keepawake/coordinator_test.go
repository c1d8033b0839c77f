package keepawake

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
	hostErrors "github.com/awake/host/internal/errors"
)

var testEpoch = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

type fakeAdapter struct {
	mu      sync.Mutex
	acquire func(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error)

	live   int
	events []string
}

func (a *fakeAdapter) Acquire(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error) {
	if a.acquire != nil {
		h, err := a.acquire(ctx, policy, label)
		if err != nil || h == nil {
			return h, err
		}
		a.record("acquire:" + label)
		return h, nil
	}
	a.mu.Lock()
	a.live++
	a.events = append(a.events, "acquire:"+label)
	a.mu.Unlock()
	return &fakeHandle{adapter: a}, nil
}

func (a *fakeAdapter) record(ev string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *fakeAdapter) snapshot() (int, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live, append([]string(nil), a.events...)
}

type fakeHandle struct {
	adapter  *fakeAdapter
	release  func(context.Context) error
	released int
}

func (h *fakeHandle) Release(ctx context.Context) error {
	h.released++
	if h.adapter != nil {
		h.adapter.mu.Lock()
		h.adapter.live--
		h.adapter.events = append(h.adapter.events, "release")
		h.adapter.mu.Unlock()
	}
	if h.release != nil {
		return h.release(ctx)
	}
	return nil
}

type recordingNotifier struct {
	mu           sync.Mutex
	willEnd      []int
	labels       []string
	cancels      int
	batteryLevel []int
}

func (n *recordingNotifier) CancelSessionEnd() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancels++
}

func (n *recordingNotifier) NotifySessionWillEnd(seconds int, label string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.willEnd = append(n.willEnd, seconds)
	n.labels = append(n.labels, label)
}

func (n *recordingNotifier) NotifyBatteryStopped(level int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batteryLevel = append(n.batteryLevel, level)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestCoordinator(adapter Adapter, clk clock.Clock, notifier Notifier) *Coordinator {
	return NewCoordinator(adapter, Options{
		Clock:    clk,
		Notifier: notifier,
		Logger:   quietLogger(),
	})
}

func TestSourceEqualityIncludesPayload(t *testing.T) {
	if AppTrigger("Zoom") != AppTrigger("Zoom") {
		t.Fatal("AppTrigger values with the same name should be equal")
	}
	if AppTrigger("Zoom") == AppTrigger("Other") {
		t.Fatal("AppTrigger values with different names should differ")
	}
	if HardwareTrigger("power_connected") == AppTrigger("power_connected") {
		t.Fatal("sources of different kinds should differ")
	}
}

func TestSourceString(t *testing.T) {
	tests := []struct {
		src  Source
		want string
	}{
		{Manual(), "Manual"},
		{Schedule(), "Schedule"},
		{AppTrigger("Zoom"), "App: Zoom"},
		{HardwareTrigger("power_connected"), "Hardware: power_connected"},
		{KeyboardShortcut(), "Shortcut"},
		{Source{}, ""},
	}
	for _, tt := range tests {
		if got := tt.src.String(); got != tt.want {
			t.Errorf("%#v.String() = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestInitialStateInactive(t *testing.T) {
	c := newTestCoordinator(&fakeAdapter{}, clock.Fake(testEpoch), nil)
	st := c.CurrentState()
	if st.Active {
		t.Fatal("new coordinator should be inactive")
	}
	if st.StoppedByBattery {
		t.Fatal("new coordinator should not be stopped by battery")
	}
}

func TestActivateIndefinite(t *testing.T) {
	adapter := &fakeAdapter{}
	notifier := &recordingNotifier{}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), notifier)

	if err := c.Activate(context.Background(), Manual(), 0, PolicySystemOnly); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	st := c.CurrentState()
	if !st.Active || st.Source != Manual() {
		t.Fatalf("state = %+v, want Active{Manual}", st)
	}
	if st.Policy != PolicySystemOnly {
		t.Fatalf("policy = %s, want system_only", st.Policy)
	}
	if st.Deadline != nil {
		t.Fatal("indefinite session should have no deadline")
	}
	if st.SessionID == "" {
		t.Fatal("expected session id")
	}
	if len(notifier.willEnd) != 0 {
		t.Fatalf("indefinite session should not notify, got %v", notifier.willEnd)
	}
}

func TestActivateTimedSetsFutureDeadlineAndNotifies(t *testing.T) {
	clk := clock.Fake(testEpoch)
	notifier := &recordingNotifier{}
	c := newTestCoordinator(&fakeAdapter{}, clk, notifier)

	if err := c.Activate(context.Background(), Manual(), 30*time.Minute, PolicySystemAndDisplay); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	st := c.CurrentState()
	if st.Deadline == nil {
		t.Fatal("timed session should have a deadline")
	}
	if !st.Deadline.After(clk.Now()) {
		t.Fatalf("deadline %v not in the future of %v", st.Deadline, clk.Now())
	}
	if got := st.Remaining(clk.Now()); got != 30*time.Minute {
		t.Fatalf("Remaining = %v, want 30m", got)
	}
	if len(notifier.willEnd) != 1 || notifier.willEnd[0] != 1800 || notifier.labels[0] != "Manual" {
		t.Fatalf("notifications = %v %v, want one 1800s for Manual", notifier.willEnd, notifier.labels)
	}
}

func TestEndNoticeRoundsUpSubSecondDurations(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     int
	}{
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{90 * time.Second, 90},
	}
	for _, tt := range tests {
		t.Run(tt.duration.String(), func(t *testing.T) {
			notifier := &recordingNotifier{}
			c := newTestCoordinator(&fakeAdapter{}, clock.Fake(testEpoch), notifier)
			if err := c.Activate(context.Background(), Manual(), tt.duration, PolicySystemOnly); err != nil {
				t.Fatalf("Activate: %v", err)
			}
			notifier.mu.Lock()
			defer notifier.mu.Unlock()
			if len(notifier.willEnd) != 1 || notifier.willEnd[0] != tt.want {
				t.Fatalf("notice seconds = %v, want [%d]", notifier.willEnd, tt.want)
			}
		})
	}
}

func TestActivateRejectsNegativeDuration(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)

	err := c.Activate(context.Background(), Manual(), -5*time.Second, PolicySystemOnly)
	if !hostErrors.IsCode(err, hostErrors.CodeCoordinatorInvalidDuration) {
		t.Fatalf("err = %v, want invalid duration", err)
	}
	if _, events := adapter.snapshot(); len(events) != 0 {
		t.Fatalf("adapter should not be touched, got %v", events)
	}
}

func TestReplaceIsNetNeutral(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	if err := c.Activate(ctx, Manual(), 0, PolicySystemOnly); err != nil {
		t.Fatalf("Activate A: %v", err)
	}
	first := c.CurrentState().SessionID

	if err := c.Activate(ctx, AppTrigger("Zoom"), 0, PolicySystemOnly); err != nil {
		t.Fatalf("Activate B: %v", err)
	}

	live, events := adapter.snapshot()
	want := []string{"acquire:Manual", "release", "acquire:App: Zoom"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	if live != 1 {
		t.Fatalf("live handles = %d, want 1", live)
	}

	st := c.CurrentState()
	if st.Source != AppTrigger("Zoom") {
		t.Fatalf("source = %v, want App: Zoom", st.Source)
	}
	if st.SessionID == first {
		t.Fatal("replace should start a new session id")
	}
}

func TestReplaceNeverObservedInactive(t *testing.T) {
	adapter := &fakeAdapter{}
	var c *Coordinator
	var observed []State
	adapter.acquire = func(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error) {
		observed = append(observed, c.CurrentState())
		return &fakeHandle{}, nil
	}
	c = newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	_ = c.Activate(ctx, Schedule(), 0, PolicySystemOnly)

	if len(observed) != 2 {
		t.Fatalf("acquire called %d times, want 2", len(observed))
	}
	if !observed[1].Active || observed[1].Source != Manual() {
		t.Fatalf("observer saw %+v during replace, want Active{Manual}", observed[1])
	}
}

func TestExclusivityAcrossOperations(t *testing.T) {
	adapter := &fakeAdapter{}
	var c *Coordinator
	adapter.acquire = func(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error) {
		adapter.mu.Lock()
		defer adapter.mu.Unlock()
		if adapter.live != 0 {
			t.Errorf("acquire with %d live handles", adapter.live)
		}
		adapter.live++
		return &fakeHandle{adapter: adapter}, nil
	}
	c = newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	ops := []func(){
		func() { _ = c.Activate(ctx, Manual(), 0, PolicySystemOnly) },
		func() { _ = c.Activate(ctx, AppTrigger("Zoom"), time.Minute, PolicySystemOnly) },
		func() { c.DeactivateIfSource(ctx, AppTrigger("Other")) },
		func() { _ = c.Activate(ctx, Schedule(), 0, PolicySystemAndDisplay) },
		func() { c.DeactivateIfSource(ctx, Schedule()) },
		func() { c.DeactivateUnconditional(ctx) },
		func() { _ = c.Activate(ctx, KeyboardShortcut(), time.Second, PolicySystemOnly) },
		func() { c.OnTick(testEpoch.Add(time.Hour)) },
		func() { c.OnBatteryCritical(ctx, 5) },
	}
	for round := 0; round < 3; round++ {
		for _, op := range ops {
			op()
			live, _ := adapter.snapshot()
			if live > 1 {
				t.Fatalf("live handles = %d, want <= 1", live)
			}
			if st := c.CurrentState(); st.Active != (live == 1) {
				t.Fatalf("active=%v but live handles=%d", st.Active, live)
			}
		}
	}
}

func TestDeactivateIfSourceSelfMatching(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	_ = c.Activate(ctx, AppTrigger("Zoom"), 0, PolicySystemOnly)
	before := c.CurrentState()

	if c.DeactivateIfSource(ctx, AppTrigger("Other")) {
		t.Fatal("mismatched source should not deactivate")
	}
	if after := c.CurrentState(); after != before {
		t.Fatalf("state changed on mismatch: %+v -> %+v", before, after)
	}

	if !c.DeactivateIfSource(ctx, AppTrigger("Zoom")) {
		t.Fatal("matching source should deactivate")
	}
	if c.CurrentState().Active {
		t.Fatal("expected inactive")
	}
	if live, _ := adapter.snapshot(); live != 0 {
		t.Fatalf("live handles = %d, want 0", live)
	}
}

func TestDeactivateUnconditional(t *testing.T) {
	c := newTestCoordinator(&fakeAdapter{}, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	if c.DeactivateUnconditional(ctx) {
		t.Fatal("deactivate from inactive should be a no-op")
	}

	_ = c.Activate(ctx, Schedule(), 0, PolicySystemOnly)
	if !c.DeactivateUnconditional(ctx) {
		t.Fatal("expected deactivation")
	}
	if c.CurrentState().Active {
		t.Fatal("expected inactive")
	}
}

func TestAcquireFailureLeavesInactive(t *testing.T) {
	var fail bool
	adapter := &fakeAdapter{}
	adapter.acquire = func(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &fakeHandle{}, nil
	}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	fail = true

	err := c.Activate(ctx, Schedule(), 0, PolicySystemOnly)
	if !hostErrors.IsCode(err, hostErrors.CodePowerAcquireFailed) {
		t.Fatalf("err code = %s, want %s", hostErrors.GetCode(err), hostErrors.CodePowerAcquireFailed)
	}
	st := c.CurrentState()
	if st.Active {
		t.Fatal("failed replace should leave inactive")
	}
	if st.LastError == "" {
		t.Fatal("expected last error")
	}
}

func TestAcquireUnsupportedKeepsCode(t *testing.T) {
	adapter := &fakeAdapter{acquire: func(context.Context, DisplaySleepPolicy, string) (Handle, error) {
		return nil, hostErrors.Unsupported("unsupported", nil)
	}}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)

	err := c.Activate(context.Background(), Manual(), 0, PolicySystemOnly)
	if !hostErrors.IsCode(err, hostErrors.CodePowerUnsupportedEnvironment) {
		t.Fatalf("err code = %s, want %s", hostErrors.GetCode(err), hostErrors.CodePowerUnsupportedEnvironment)
	}
}

func TestReleaseFailureStillCompletesTransition(t *testing.T) {
	adapter := &fakeAdapter{acquire: func(context.Context, DisplaySleepPolicy, string) (Handle, error) {
		return &fakeHandle{release: func(context.Context) error { return errors.New("release failed") }}, nil
	}}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	if !c.DeactivateUnconditional(ctx) {
		t.Fatal("expected deactivation despite release failure")
	}
	st := c.CurrentState()
	if st.Active {
		t.Fatal("expected inactive")
	}
	if st.LastError == "" {
		t.Fatal("expected release error to be recorded")
	}

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	if err := c.Activate(ctx, Schedule(), 0, PolicySystemOnly); err != nil {
		t.Fatalf("replace should succeed despite release failure: %v", err)
	}
	st = c.CurrentState()
	if !st.Active || st.Source != Schedule() {
		t.Fatalf("state = %+v, want Active{Schedule}", st)
	}
	if st.LastError == "" {
		t.Fatal("expected release error on replaced session")
	}
}

func TestBatteryOverrideEndsManualSession(t *testing.T) {
	notifier := &recordingNotifier{}
	c := newTestCoordinator(&fakeAdapter{}, clock.Fake(testEpoch), notifier)
	ctx := context.Background()

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	if c.DeactivateIfSource(ctx, Schedule()) {
		t.Fatal("manual session should not yield to automation")
	}

	if !c.OnBatteryCritical(ctx, 15) {
		t.Fatal("battery critical should end the session")
	}
	st := c.CurrentState()
	if st.Active {
		t.Fatal("expected inactive")
	}
	if !st.StoppedByBattery {
		t.Fatal("expected StoppedByBattery")
	}
	if len(notifier.batteryLevel) != 1 || notifier.batteryLevel[0] != 15 {
		t.Fatalf("battery notifications = %v, want [15]", notifier.batteryLevel)
	}

	if c.OnBatteryCritical(ctx, 14) {
		t.Fatal("battery critical while inactive should be a no-op")
	}
	if len(notifier.batteryLevel) != 1 {
		t.Fatal("no second notification expected")
	}

	c.DeactivateUnconditional(ctx)
	if !c.CurrentState().StoppedByBattery {
		t.Fatal("StoppedByBattery should persist until the next activation")
	}

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	if c.CurrentState().StoppedByBattery {
		t.Fatal("successful activation should clear StoppedByBattery")
	}
}

func TestStoppedByBatterySurvivesFailedActivation(t *testing.T) {
	var fail bool
	adapter := &fakeAdapter{}
	adapter.acquire = func(context.Context, DisplaySleepPolicy, string) (Handle, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &fakeHandle{}, nil
	}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	c.OnBatteryCritical(ctx, 10)
	fail = true
	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)

	if !c.CurrentState().StoppedByBattery {
		t.Fatal("only a successful activation clears StoppedByBattery")
	}
}

func TestCountdownDeterminism(t *testing.T) {
	adapter := &fakeAdapter{}
	clk := clock.Fake(testEpoch)
	c := newTestCoordinator(adapter, clk, nil)

	if err := c.Activate(context.Background(), Manual(), 5*time.Second, PolicySystemOnly); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	for i := 1; i <= 4; i++ {
		c.OnTick(testEpoch.Add(time.Duration(i) * time.Second))
		if !c.CurrentState().Active {
			t.Fatalf("expired early at tick %d", i)
		}
	}

	c.OnTick(testEpoch.Add(5 * time.Second))
	if c.CurrentState().Active {
		t.Fatal("expected expiry at tick 5")
	}

	rev := c.CurrentState().Revision
	c.OnTick(testEpoch.Add(6 * time.Second))
	c.OnTick(testEpoch.Add(7 * time.Second))
	if c.CurrentState().Revision != rev {
		t.Fatal("ticks after expiry should be no-ops")
	}
	if _, events := adapter.snapshot(); len(events) != 2 || events[1] != "release" {
		t.Fatalf("events = %v, want exactly one release", events)
	}
}

func TestOnTickWithoutDeadlineIsNoop(t *testing.T) {
	c := newTestCoordinator(&fakeAdapter{}, clock.Fake(testEpoch), nil)
	c.OnTick(testEpoch.Add(time.Hour))
	_ = c.Activate(context.Background(), Manual(), 0, PolicySystemOnly)
	c.OnTick(testEpoch.Add(24 * time.Hour))
	if !c.CurrentState().Active {
		t.Fatal("indefinite session should not expire")
	}
}

func TestCountdownDrivenByClock(t *testing.T) {
	clk := clock.Fake(testEpoch)
	c := newTestCoordinator(&fakeAdapter{}, clk, nil)

	if err := c.Activate(context.Background(), Manual(), 3*time.Second, PolicySystemOnly); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if clk.PendingCount() != 1 {
		t.Fatalf("pending tickers = %d, want 1", clk.PendingCount())
	}

	clk.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if !c.CurrentState().Active {
		t.Fatal("expired before deadline")
	}

	clk.Advance(time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for c.CurrentState().Active {
		if time.Now().After(deadline) {
			t.Fatal("countdown did not expire the session")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if clk.PendingCount() != 0 {
		t.Fatalf("pending tickers after expiry = %d, want 0", clk.PendingCount())
	}
}

func TestSingleCountdownAcrossReplaceAndDeactivate(t *testing.T) {
	clk := clock.Fake(testEpoch)
	c := newTestCoordinator(&fakeAdapter{}, clk, nil)
	ctx := context.Background()

	_ = c.Activate(ctx, Manual(), time.Minute, PolicySystemOnly)
	_ = c.Activate(ctx, KeyboardShortcut(), 2*time.Minute, PolicySystemOnly)
	if clk.PendingCount() != 1 {
		t.Fatalf("pending tickers after timed replace = %d, want 1", clk.PendingCount())
	}

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	if clk.PendingCount() != 0 {
		t.Fatalf("indefinite replace should disarm countdown, pending = %d", clk.PendingCount())
	}

	_ = c.Activate(ctx, Manual(), time.Minute, PolicySystemOnly)
	c.DeactivateUnconditional(ctx)
	if clk.PendingCount() != 0 {
		t.Fatalf("deactivate should disarm countdown, pending = %d", clk.PendingCount())
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	c := newTestCoordinator(&fakeAdapter{}, clock.Fake(testEpoch), nil)
	ch, cancel := c.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Active {
		t.Fatal("initial subscription state should be inactive")
	}

	_ = c.Activate(context.Background(), Manual(), 0, PolicySystemOnly)
	select {
	case st := <-ch:
		if !st.Active || st.Source != Manual() {
			t.Fatalf("got %+v, want Active{Manual}", st)
		}
	case <-time.After(time.Second):
		t.Fatal("no state published")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestCloseReleasesAndRejects(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	_ = c.Activate(ctx, Manual(), time.Minute, PolicySystemOnly)
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if live, _ := adapter.snapshot(); live != 0 {
		t.Fatalf("live handles after close = %d", live)
	}
	if err := c.Activate(ctx, Manual(), 0, PolicySystemOnly); !hostErrors.IsCode(err, hostErrors.CodeCoordinatorClosed) {
		t.Fatalf("Activate after Close err = %v, want closed", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
}

func TestConcurrentOperationsNoPanic(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 4 {
			case 0:
				_ = c.Activate(ctx, Manual(), time.Minute, PolicySystemOnly)
			case 1:
				c.DeactivateIfSource(ctx, Manual())
			case 2:
				c.DeactivateUnconditional(ctx)
			default:
				_ = c.CurrentState()
			}
		}(i)
	}
	wg.Wait()

	live, _ := adapter.snapshot()
	if st := c.CurrentState(); st.Active != (live == 1) || live > 1 {
		t.Fatalf("active=%v live=%d", st.Active, live)
	}
}

func TestActivateIfInactiveDoesNotPreempt(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestCoordinator(adapter, clock.Fake(testEpoch), nil)
	ctx := context.Background()

	started, err := c.ActivateIfInactive(ctx, AppTrigger("Zoom"), 0, PolicySystemOnly)
	if err != nil || !started {
		t.Fatalf("ActivateIfInactive from inactive = %v, %v; want started", started, err)
	}

	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	started, err = c.ActivateIfInactive(ctx, Schedule(), 0, PolicySystemOnly)
	if err != nil || started {
		t.Fatalf("ActivateIfInactive while active = %v, %v; want skipped", started, err)
	}
	if st := c.CurrentState(); st.Source != Manual() {
		t.Fatalf("source = %v, want Manual", st.Source)
	}
	if _, events := adapter.snapshot(); len(events) != 3 {
		t.Fatalf("events = %v, want no adapter call for the skipped activation", events)
	}
}

func TestEndNoticeCancelledUnlessExpired(t *testing.T) {
	clk := clock.Fake(testEpoch)
	notifier := &recordingNotifier{}
	c := newTestCoordinator(&fakeAdapter{}, clk, notifier)
	ctx := context.Background()

	// Indefinite sessions never have a notice to withdraw.
	_ = c.Activate(ctx, Manual(), 0, PolicySystemOnly)
	c.DeactivateUnconditional(ctx)
	if notifier.cancels != 0 {
		t.Fatalf("cancels = %d after indefinite session, want 0", notifier.cancels)
	}

	_ = c.Activate(ctx, Manual(), time.Hour, PolicySystemOnly)
	c.DeactivateUnconditional(ctx)
	if notifier.cancels != 1 {
		t.Fatalf("cancels = %d after early stop, want 1", notifier.cancels)
	}

	_ = c.Activate(ctx, Manual(), time.Hour, PolicySystemOnly)
	_ = c.Activate(ctx, KeyboardShortcut(), 0, PolicySystemOnly)
	if notifier.cancels != 2 {
		t.Fatalf("cancels = %d after replace, want 2", notifier.cancels)
	}
	c.DeactivateUnconditional(ctx)

	_ = c.Activate(ctx, Manual(), time.Minute, PolicySystemOnly)
	c.OnTick(clk.Now().Add(time.Minute))
	if c.CurrentState().Active {
		t.Fatal("session should have expired")
	}
	if notifier.cancels != 2 {
		t.Fatalf("cancels = %d after expiry, want still 2", notifier.cancels)
	}
}
