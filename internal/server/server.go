// Package server implements the daemon's control API: status, manual
// activation, deactivation, the shortcut toggle and a websocket stream
// of state changes. It is served over the Unix socket from package ipc.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/awake/host/internal/battery"
	"github.com/awake/host/internal/clock"
	"github.com/awake/host/internal/ipc"
	"github.com/awake/host/internal/keepawake"
)

// Default mutation rate: a burst of 10, then 5 per second.
const (
	DefaultMutationRate  = rate.Limit(5)
	DefaultMutationBurst = 10
)

// Coordinator is the subset of keepawake.Coordinator the API drives.
type Coordinator interface {
	CurrentState() keepawake.State
	Activate(ctx context.Context, source keepawake.Source, duration time.Duration, policy keepawake.DisplaySleepPolicy) error
	DeactivateUnconditional(ctx context.Context) bool
	Subscribe() (<-chan keepawake.State, func())
}

// Toggler presses the keyboard shortcut. hotkey.Listener implements it.
type Toggler interface {
	Trigger(ctx context.Context) (bool, error)
}

// Settings is the configuration the handlers read per request.
type Settings struct {
	DefaultDuration time.Duration
	Policy          keepawake.DisplaySleepPolicy
	Features        ipc.Features
	Battery         battery.GuardConfig
}

// Options configures a Server.
type Options struct {
	Settings func() Settings
	// Battery returns the last battery reading; nil omits battery status.
	Battery func() (battery.Reading, bool)
	// Toggler handles POST /toggle; nil disables the route.
	Toggler Toggler
	Clock   clock.Clock
	Logger  logrus.FieldLogger
	Version string

	MutationRate  rate.Limit
	MutationBurst int
}

// Server is the control API handler.
type Server struct {
	coord    Coordinator
	settings func() Settings
	battery  func() (battery.Reading, bool)
	toggler  Toggler
	clock    clock.Clock
	log      logrus.FieldLogger
	version  string
	started  time.Time

	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	streamsMu sync.Mutex
	streams   map[*websocket.Conn]struct{}
}

// New creates the control API handler.
func New(coord Coordinator, opts Options) *Server {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	settings := opts.Settings
	if settings == nil {
		settings = func() Settings { return Settings{Policy: keepawake.PolicySystemAndDisplay} }
	}
	limit, burst := opts.MutationRate, opts.MutationBurst
	if limit <= 0 {
		limit = DefaultMutationRate
	}
	if burst <= 0 {
		burst = DefaultMutationBurst
	}

	s := &Server{
		coord:    coord,
		settings: settings,
		battery:  opts.Battery,
		toggler:  opts.Toggler,
		clock:    clk,
		log:      logger.WithField("component", "control"),
		version:  opts.Version,
		started:  clk.Now(),
		limiter:  rate.NewLimiter(limit, burst),
		upgrader: websocket.Upgrader{
			// The socket is 0600; only the owning user can reach it.
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		streams: make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(ipc.PathStatus, s.handleStatus)
	mux.HandleFunc(ipc.PathActivate, s.mutation(s.handleActivate))
	mux.HandleFunc(ipc.PathDeactivate, s.mutation(s.handleDeactivate))
	mux.HandleFunc(ipc.PathToggle, s.mutation(s.handleToggle))
	mux.HandleFunc(ipc.PathEvents, s.handleEvents)
	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("control: request")
	s.mux.ServeHTTP(w, r)
}

// StreamCount returns the number of open event streams.
func (s *Server) StreamCount() int {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	return len(s.streams)
}
