package trigger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awake/host/internal/keepawake"
)

// Coordinator is the subset of keepawake.Coordinator triggers drive.
type Coordinator interface {
	ActivateIfInactive(ctx context.Context, source keepawake.Source, duration time.Duration, policy keepawake.DisplaySleepPolicy) (bool, error)
	DeactivateIfSource(ctx context.Context, source keepawake.Source) bool
}

// Settings is the configuration a dispatcher reads on every event.
type Settings struct {
	Enabled bool
	Rules   []Rule
	Policy  keepawake.DisplaySleepPolicy
}

// AppDispatcher turns process start/end edges into app-trigger sessions.
type AppDispatcher struct {
	coord    Coordinator
	settings func() Settings
	log      logrus.FieldLogger

	mu sync.Mutex
	// started maps a process key to the label its session was started
	// under, so a reload that renames the rule can still end it.
	started map[string]string
}

// NewAppDispatcher creates a dispatcher. settings is read on every event.
func NewAppDispatcher(coord Coordinator, settings func() Settings, logger logrus.FieldLogger) *AppDispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AppDispatcher{
		coord:    coord,
		settings: settings,
		log:      logger.WithField("component", "app_trigger"),
		started:  make(map[string]string),
	}
}

// ProcessStarted handles a process-start edge for key.
func (d *AppDispatcher) ProcessStarted(ctx context.Context, key string) {
	s := d.settings()
	r, ok := Match(NewKeySet(key), s.Rules, s.Enabled)
	if !ok {
		return
	}
	d.activate(ctx, r, s.Policy)
}

// ProcessEnded handles a process-end edge for key. It ends the session
// only when it is held under the label key started it with, or under
// any rule label configured for key.
func (d *AppDispatcher) ProcessEnded(ctx context.Context, key string) {
	d.mu.Lock()
	label, ok := d.started[key]
	delete(d.started, key)
	d.mu.Unlock()

	var labels []string
	if ok {
		labels = append(labels, label)
	}
	for _, l := range labelsFor(d.settings().Rules, key) {
		if !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}

	for _, l := range labels {
		if d.coord.DeactivateIfSource(ctx, keepawake.AppTrigger(l)) {
			d.log.WithField("app", l).Info("app_trigger: app exited, session ended")
			return
		}
	}
}

// Reconcile evaluates the processes already running at startup.
func (d *AppDispatcher) Reconcile(ctx context.Context, running KeySet) {
	s := d.settings()
	r, ok := Match(running, s.Rules, s.Enabled)
	if !ok {
		return
	}
	d.activate(ctx, r, s.Policy)
}

func (d *AppDispatcher) activate(ctx context.Context, r Rule, policy keepawake.DisplaySleepPolicy) {
	started, err := d.coord.ActivateIfInactive(ctx, keepawake.AppTrigger(r.Label), 0, policy)
	entry := d.log.WithField("app", r.Label)
	switch {
	case err != nil:
		entry.WithError(err).Warn("app_trigger: activation failed")
	case started:
		d.mu.Lock()
		d.started[r.Key] = r.Label
		d.mu.Unlock()
		entry.Info("app_trigger: app running, session started")
	default:
		entry.Debug("app_trigger: another session is active, skipping")
	}
}

// Hardware edge kinds.
const (
	EdgePowerConnected              = "power_connected"
	EdgePowerDisconnected           = "power_disconnected"
	EdgeExternalDisplayConnected    = "external_display_connected"
	EdgeExternalDisplayDisconnected = "external_display_disconnected"
)

// counterpart maps a disconnect edge to the connect edge whose session it ends.
var counterpart = map[string]string{
	EdgePowerDisconnected:           EdgePowerConnected,
	EdgeExternalDisplayDisconnected: EdgeExternalDisplayConnected,
}

// IsEdgeKind reports whether v names a known hardware edge.
func IsEdgeKind(v string) bool {
	switch v {
	case EdgePowerConnected, EdgePowerDisconnected, EdgeExternalDisplayConnected, EdgeExternalDisplayDisconnected:
		return true
	}
	return false
}

// HardwareDispatcher turns hardware edges into hardware-trigger sessions.
// Rules keyed by a connect edge are "activate on" rules; rules keyed by a
// disconnect edge are "deactivate on" rules that end the session started
// by the matching connect edge.
type HardwareDispatcher struct {
	coord    Coordinator
	settings func() Settings
	log      logrus.FieldLogger
}

// NewHardwareDispatcher creates a dispatcher. settings is read on every edge.
func NewHardwareDispatcher(coord Coordinator, settings func() Settings, logger logrus.FieldLogger) *HardwareDispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HardwareDispatcher{
		coord:    coord,
		settings: settings,
		log:      logger.WithField("component", "hardware_trigger"),
	}
}

// OnEdge handles one hardware edge.
func (d *HardwareDispatcher) OnEdge(ctx context.Context, edge string) {
	s := d.settings()
	entry := d.log.WithField("edge", edge)

	if connect, ok := counterpart[edge]; ok {
		// Deactivation rules stay honored when the feature is switched off
		// so a hardware session can still end itself.
		if !hasEnabled(s.Rules, edge) {
			return
		}
		if d.coord.DeactivateIfSource(ctx, keepawake.HardwareTrigger(connect)) {
			entry.Info("hardware_trigger: session ended")
		}
		return
	}

	if _, ok := Match(NewKeySet(edge), s.Rules, s.Enabled); !ok {
		return
	}
	started, err := d.coord.ActivateIfInactive(ctx, keepawake.HardwareTrigger(edge), 0, s.Policy)
	switch {
	case err != nil:
		entry.WithError(err).Warn("hardware_trigger: activation failed")
	case started:
		entry.Info("hardware_trigger: session started")
	default:
		entry.Debug("hardware_trigger: another session is active, skipping")
	}
}
