package battery

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
	"github.com/awake/host/internal/keepawake"
)

func TestMustStop(t *testing.T) {
	guard := GuardConfig{Enabled: true, ThresholdPercent: 20}
	tests := []struct {
		name    string
		reading Reading
		cfg     GuardConfig
		want    bool
	}{
		{"below threshold", Reading{Percent: 15, OnBattery: true}, guard, true},
		{"at threshold", Reading{Percent: 20, OnBattery: true}, guard, true},
		{"above threshold", Reading{Percent: 21, OnBattery: true}, guard, false},
		{"on AC power", Reading{Percent: 5, OnBattery: false}, guard, false},
		{"guard disabled", Reading{Percent: 5, OnBattery: true}, GuardConfig{ThresholdPercent: 20}, false},
		{"bogus reading", Reading{Percent: -1, OnBattery: true}, guard, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MustStop(tt.reading, tt.cfg); got != tt.want {
				t.Errorf("MustStop(%+v, %+v) = %v, want %v", tt.reading, tt.cfg, got, tt.want)
			}
		})
	}
}

func TestReadingFrom(t *testing.T) {
	pct, on := 42, true
	r, ok := ReadingFrom(keepawake.PowerSnapshot{BatteryPercent: &pct, OnBattery: &on})
	if !ok || r.Percent != 42 || !r.OnBattery {
		t.Fatalf("ReadingFrom = %+v, %v", r, ok)
	}
	if _, ok := ReadingFrom(keepawake.PowerSnapshot{BatteryPercent: &pct}); ok {
		t.Fatal("unknown power source should not produce a reading")
	}
}

type staticPower struct {
	percent   int
	onBattery bool
}

func (p *staticPower) Snapshot() keepawake.PowerSnapshot {
	pct, on := p.percent, p.onBattery
	return keepawake.PowerSnapshot{BatteryPercent: &pct, OnBattery: &on}
}

type stubHandle struct{}

func (stubHandle) Release(context.Context) error { return nil }

type stubAdapter struct{ acquired int }

func (a *stubAdapter) Acquire(context.Context, keepawake.DisplaySleepPolicy, string) (keepawake.Handle, error) {
	a.acquired++
	return stubHandle{}, nil
}

type countingNotifier struct{ levels []int }

func (n *countingNotifier) NotifySessionWillEnd(int, string) {}
func (n *countingNotifier) CancelSessionEnd()                {}
func (n *countingNotifier) NotifyBatteryStopped(level int)   { n.levels = append(n.levels, level) }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPollerOverridesManualSession(t *testing.T) {
	adapter := &stubAdapter{}
	notifier := &countingNotifier{}
	coord := keepawake.NewCoordinator(adapter, keepawake.Options{
		Clock:    clock.Fake(clock.Real().Now()),
		Notifier: notifier,
		Logger:   quietLogger(),
	})
	power := &staticPower{percent: 15, onBattery: true}
	guard := func() GuardConfig { return GuardConfig{Enabled: true, ThresholdPercent: 20} }
	p := NewPoller(coord, power, guard, PollerOptions{Logger: quietLogger()})
	ctx := context.Background()

	if p.Check(ctx) {
		t.Fatal("guard should not fire while inactive")
	}

	_ = coord.Activate(ctx, keepawake.Manual(), 0, keepawake.PolicySystemOnly)
	if !p.Check(ctx) {
		t.Fatal("guard should stop the manual session")
	}
	st := coord.CurrentState()
	if st.Active || !st.StoppedByBattery {
		t.Fatalf("state = %+v, want Inactive with StoppedByBattery", st)
	}
	if len(notifier.levels) != 1 || notifier.levels[0] != 15 {
		t.Fatalf("notified levels = %v, want [15]", notifier.levels)
	}

	if p.Check(ctx) || adapter.acquired != 1 {
		t.Fatal("guard must not re-arm or re-activate")
	}
	if r, ok := p.LastReading(); !ok || r.Percent != 15 {
		t.Fatalf("LastReading = %+v, %v", r, ok)
	}
}

func TestPollerRespectsThresholdAndACPower(t *testing.T) {
	coord := keepawake.NewCoordinator(&stubAdapter{}, keepawake.Options{
		Clock:  clock.Fake(clock.Real().Now()),
		Logger: quietLogger(),
	})
	power := &staticPower{percent: 50, onBattery: true}
	guard := func() GuardConfig { return GuardConfig{Enabled: true, ThresholdPercent: 20} }
	p := NewPoller(coord, power, guard, PollerOptions{Logger: quietLogger()})
	ctx := context.Background()

	_ = coord.Activate(ctx, keepawake.Schedule(), 0, keepawake.PolicySystemOnly)
	if p.Check(ctx) {
		t.Fatal("guard fired above threshold")
	}

	power.percent, power.onBattery = 10, false
	if p.Check(ctx) {
		t.Fatal("guard fired on AC power")
	}
	if !coord.CurrentState().Active {
		t.Fatal("session should survive")
	}
}
