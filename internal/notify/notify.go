// Package notify delivers user-visible session notices: the end of a
// timed session and a battery-guard stop. Delivery goes through a Sink
// (desktop notification service, log, or both); the Notifier decides
// what to send and when.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
)

// AppName is the application name shown by desktop notification services.
const AppName = "awake"

// sendTimeout bounds one delivery attempt.
const sendTimeout = 5 * time.Second

// Message is one notification.
type Message struct {
	Title string
	Body  string
}

// Sink delivers a message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Toggles gates the two notice kinds. They are read at delivery time so
// a config reload applies to notices already scheduled.
type Toggles struct {
	TimerEnd    bool
	BatteryStop bool
}

// Options configures a Notifier.
type Options struct {
	Clock  clock.Clock
	Logger logrus.FieldLogger
}

// Notifier implements keepawake.Notifier. End notices are scheduled for
// when the session's duration elapses and withdrawn if the session ends
// early. All delivery happens off the caller's goroutine.
type Notifier struct {
	sink    Sink
	toggles func() Toggles
	clock   clock.Clock
	log     logrus.FieldLogger

	mu      sync.Mutex
	pending chan struct{}

	wg sync.WaitGroup
}

// New creates a Notifier. toggles may be nil to send everything.
func New(sink Sink, toggles func() Toggles, opts Options) *Notifier {
	if toggles == nil {
		toggles = func() Toggles { return Toggles{TimerEnd: true, BatteryStop: true} }
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Notifier{
		sink:    sink,
		toggles: toggles,
		clock:   clk,
		log:     logger.WithField("component", "notify"),
	}
}

// TimerEndedMessage is the notice sent when a timed session runs out.
func TimerEndedMessage(sourceLabel string) Message {
	return Message{
		Title: "Timer Ended",
		Body:  fmt.Sprintf("%s timer completed. The system can now sleep normally.", sourceLabel),
	}
}

// BatteryStoppedMessage is the notice sent when the battery guard ends a session.
func BatteryStoppedMessage(level int) Message {
	return Message{
		Title: "Battery Protection Activated",
		Body:  fmt.Sprintf("Sleep prevention stopped at %d%% battery to preserve power.", level),
	}
}

// NotifySessionWillEnd schedules the end notice, replacing any pending one.
func (n *Notifier) NotifySessionWillEnd(durationSeconds int, sourceLabel string) {
	cancel := make(chan struct{})
	due := n.clock.After(time.Duration(durationSeconds) * time.Second)

	n.mu.Lock()
	if n.pending != nil {
		close(n.pending)
	}
	n.pending = cancel
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-cancel:
			return
		case <-due:
		}

		n.mu.Lock()
		if n.pending != cancel {
			n.mu.Unlock()
			return
		}
		n.pending = nil
		n.mu.Unlock()

		if !n.toggles().TimerEnd {
			return
		}
		n.deliver(TimerEndedMessage(sourceLabel))
	}()
}

// CancelSessionEnd withdraws the pending end notice, if any.
func (n *Notifier) CancelSessionEnd() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending != nil {
		close(n.pending)
		n.pending = nil
	}
}

// NotifyBatteryStopped sends the battery notice right away.
func (n *Notifier) NotifyBatteryStopped(level int) {
	if !n.toggles().BatteryStop {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(BatteryStoppedMessage(level))
	}()
}

// Close withdraws any pending notice and waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.CancelSessionEnd()
	n.wg.Wait()
}

func (n *Notifier) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := n.sink.Send(ctx, msg); err != nil {
		n.log.WithError(err).WithField("title", msg.Title).Warn("notify: delivery failed")
	}
}

// LogSink writes notices to the log. It is the fallback when no desktop
// notification service is reachable.
type LogSink struct {
	Logger logrus.FieldLogger
}

// Send implements Sink.
func (s LogSink) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("title", msg.Title).Info("notify: " + msg.Body)
	return nil
}

// MultiSink delivers to every sink and returns the first error.
type MultiSink []Sink

// Send implements Sink.
func (m MultiSink) Send(ctx context.Context, msg Message) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Default returns the desktop sink for this OS joined with a log sink.
// When the desktop service is unavailable only the log sink is used.
func Default(logger logrus.FieldLogger) Sink {
	logSink := LogSink{Logger: logger}
	desktop, err := Desktop()
	if err != nil {
		if logger != nil {
			logger.WithError(err).Debug("notify: desktop notifications unavailable, logging only")
		}
		return logSink
	}
	return MultiSink{desktop, logSink}
}
