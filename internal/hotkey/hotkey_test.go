package hotkey

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
	"github.com/awake/host/internal/keepawake"
)

type stubHandle struct{}

func (stubHandle) Release(context.Context) error { return nil }

type stubAdapter struct{}

func (stubAdapter) Acquire(context.Context, keepawake.DisplaySleepPolicy, string) (keepawake.Handle, error) {
	return stubHandle{}, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newCoordinator() *keepawake.Coordinator {
	return keepawake.NewCoordinator(stubAdapter{}, keepawake.Options{
		Clock:  clock.Fake(clock.Real().Now()),
		Logger: quietLogger(),
	})
}

func TestToggleFromInactiveStartsShortcutSession(t *testing.T) {
	coord := newCoordinator()
	active, err := Toggle(context.Background(), coord, time.Hour, keepawake.PolicySystemOnly)
	if err != nil || !active {
		t.Fatalf("Toggle = %v, %v; want active", active, err)
	}
	st := coord.CurrentState()
	if st.Source != keepawake.KeyboardShortcut() || st.Deadline == nil {
		t.Fatalf("state = %+v, want timed Shortcut session", st)
	}
}

func TestToggleWinsOverAutomation(t *testing.T) {
	coord := newCoordinator()
	ctx := context.Background()
	_ = coord.Activate(ctx, keepawake.AppTrigger("Zoom"), 0, keepawake.PolicySystemOnly)

	active, err := Toggle(ctx, coord, time.Hour, keepawake.PolicySystemOnly)
	if err != nil || active {
		t.Fatalf("Toggle = %v, %v; want inactive", active, err)
	}
	if coord.CurrentState().Active {
		t.Fatal("shortcut should end an app session")
	}
}

func TestListenerDebounceAndDisabled(t *testing.T) {
	coord := newCoordinator()
	enabled := true
	l := NewListener(coord, func() Settings {
		return Settings{Enabled: enabled, Policy: keepawake.PolicySystemOnly}
	}, time.Hour, quietLogger())
	ctx := context.Background()

	if !l.Press(ctx) {
		t.Fatal("first press should toggle")
	}
	if l.Press(ctx) {
		t.Fatal("second press inside the debounce window should be dropped")
	}
	if !coord.CurrentState().Active {
		t.Fatal("expected active after one accepted press")
	}

	enabled = false
	l2 := NewListener(coord, func() Settings { return Settings{Enabled: enabled} }, 0, quietLogger())
	if l2.Press(ctx) {
		t.Fatal("disabled shortcut should ignore presses")
	}
}

func TestListenerRun(t *testing.T) {
	coord := newCoordinator()
	l := NewListener(coord, func() Settings {
		return Settings{Enabled: true, Policy: keepawake.PolicySystemOnly}
	}, time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	presses := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		l.Run(ctx, presses)
		close(done)
	}()

	presses <- os.Interrupt
	deadline := time.Now().Add(2 * time.Second)
	for !coord.CurrentState().Active {
		if time.Now().After(deadline) {
			t.Fatal("press did not toggle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTriggerReportsIgnoredPresses(t *testing.T) {
	coord := newCoordinator()
	ctx := context.Background()
	settings := Settings{Enabled: false}
	l := NewListener(coord, func() Settings { return settings }, time.Hour, quietLogger())

	if _, err := l.Trigger(ctx); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Trigger err = %v, want ErrDisabled", err)
	}

	settings.Enabled = true
	active, err := l.Trigger(ctx)
	if err != nil || !active {
		t.Fatalf("Trigger = %v, %v; want active", active, err)
	}
	if _, err := l.Trigger(ctx); !errors.Is(err, ErrDebounced) {
		t.Fatalf("Trigger err = %v, want ErrDebounced", err)
	}
	if !coord.CurrentState().Active {
		t.Fatal("debounced press must not toggle")
	}
}
