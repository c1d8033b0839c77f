package trigger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/clock"
	"github.com/awake/host/internal/keepawake"
	"github.com/awake/host/internal/poll"
)

const (
	// DefaultProcessInterval is the process scan cadence.
	DefaultProcessInterval = 2 * time.Second
	// DefaultHardwareInterval is the hardware scan cadence.
	DefaultHardwareInterval = 5 * time.Second
)

// ProcessSink receives process edges. AppDispatcher implements it.
type ProcessSink interface {
	ProcessStarted(ctx context.Context, key string)
	ProcessEnded(ctx context.Context, key string)
	Reconcile(ctx context.Context, running KeySet)
}

// WatcherOptions configures a watcher.
type WatcherOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   logrus.FieldLogger
}

// ProcessWatcher diffs the set of running process names on each poll and
// reports starts and ends. The first successful scan is handed to
// Reconcile instead of producing start edges.
type ProcessWatcher struct {
	list func() (KeySet, error)
	sink ProcessSink
	log  logrus.FieldLogger
	loop *poll.Poller

	mu       sync.Mutex
	previous KeySet
	failing  bool
}

// NewProcessWatcher creates a stopped watcher using the platform process
// lister.
func NewProcessWatcher(sink ProcessSink, opts WatcherOptions) *ProcessWatcher {
	return newProcessWatcher(RunningProcesses, sink, opts)
}

func newProcessWatcher(list func() (KeySet, error), sink ProcessSink, opts WatcherOptions) *ProcessWatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultProcessInterval
	}
	w := &ProcessWatcher{
		list: list,
		sink: sink,
		log:  logger.WithField("component", "process_watcher"),
	}
	w.loop = poll.New(poll.Config{
		Interval: interval,
		Clock:    opts.Clock,
		Func:     func(time.Time) { w.Scan(context.Background()) },
	})
	return w
}

func (w *ProcessWatcher) Start() { w.loop.Start() }
func (w *ProcessWatcher) Stop()  { w.loop.Stop() }

// Scan lists processes once and emits edges against the previous scan.
func (w *ProcessWatcher) Scan(ctx context.Context) {
	running, err := w.list()
	w.mu.Lock()
	if err != nil {
		if !w.failing {
			w.log.WithError(err).Warn("process_watcher: listing processes failed")
		}
		w.failing = true
		w.mu.Unlock()
		return
	}
	w.failing = false
	prev := w.previous
	w.previous = running
	w.mu.Unlock()

	if prev == nil {
		w.sink.Reconcile(ctx, running)
		return
	}

	for _, k := range sortedDiff(prev, running) {
		w.sink.ProcessEnded(ctx, k)
	}
	for _, k := range sortedDiff(running, prev) {
		w.sink.ProcessStarted(ctx, k)
	}
}

// sortedDiff returns the keys of a missing from b in sorted order so
// edges are emitted deterministically.
func sortedDiff(a, b KeySet) []string {
	var out []string
	for k := range a {
		if !b.Has(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// EdgeSink receives hardware edges. HardwareDispatcher implements it.
type EdgeSink interface {
	OnEdge(ctx context.Context, edge string)
}

// HardwareWatcher tracks external power and external display presence
// and reports connect/disconnect edges. The first scan only records a
// baseline.
type HardwareWatcher struct {
	power    keepawake.PowerProvider
	displays func() (bool, error)
	sink     EdgeSink
	log      logrus.FieldLogger
	loop     *poll.Poller

	mu         sync.Mutex
	haveBase   bool
	onPower    *bool
	hasDisplay *bool
}

// NewHardwareWatcher creates a stopped watcher using power for the
// adapter state and the platform display detector.
func NewHardwareWatcher(power keepawake.PowerProvider, sink EdgeSink, opts WatcherOptions) *HardwareWatcher {
	return newHardwareWatcher(power, HasExternalDisplay, sink, opts)
}

func newHardwareWatcher(power keepawake.PowerProvider, displays func() (bool, error), sink EdgeSink, opts WatcherOptions) *HardwareWatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultHardwareInterval
	}
	w := &HardwareWatcher{
		power:    power,
		displays: displays,
		sink:     sink,
		log:      logger.WithField("component", "hardware_watcher"),
	}
	w.loop = poll.New(poll.Config{
		Interval: interval,
		Clock:    opts.Clock,
		Func:     func(time.Time) { w.Scan(context.Background()) },
	})
	return w
}

func (w *HardwareWatcher) Start() { w.loop.Start() }
func (w *HardwareWatcher) Stop()  { w.loop.Stop() }

// Scan reads hardware state once and emits edges against the previous
// reading. Unknown readings neither produce edges nor reset the baseline.
func (w *HardwareWatcher) Scan(ctx context.Context) {
	var power *bool
	if w.power != nil {
		power = w.power.Snapshot().ExternalPower
	}
	var display *bool
	if w.displays != nil {
		if v, err := w.displays(); err == nil {
			display = &v
		} else {
			w.log.WithError(err).Debug("hardware_watcher: display detection failed")
		}
	}

	var edges []string
	w.mu.Lock()
	if w.haveBase {
		edges = append(edges, edgeFor(w.onPower, power, EdgePowerConnected, EdgePowerDisconnected)...)
		edges = append(edges, edgeFor(w.hasDisplay, display, EdgeExternalDisplayConnected, EdgeExternalDisplayDisconnected)...)
	}
	w.haveBase = true
	if power != nil {
		w.onPower = power
	}
	if display != nil {
		w.hasDisplay = display
	}
	w.mu.Unlock()

	for _, e := range edges {
		w.log.WithField("edge", e).Debug("hardware_watcher: edge observed")
		w.sink.OnEdge(ctx, e)
	}
}

func edgeFor(prev, cur *bool, up, down string) []string {
	if prev == nil || cur == nil || *prev == *cur {
		return nil
	}
	if *cur {
		return []string{up}
	}
	return []string{down}
}
