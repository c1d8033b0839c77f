package config

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Store holds the current Snapshot and swaps it on reload. Readers call
// Current on every check and never block a reload.
type Store struct {
	path      string
	static    bool
	overrides func(*Config)
	log       logrus.FieldLogger

	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// NewStore loads path (empty means the default location), applies
// overrides and validates the result. overrides may be nil; it runs on
// every reload so CLI flags keep precedence over the file.
func NewStore(path string, overrides func(*Config), logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Store{
		path:      path,
		overrides: overrides,
		log:       logger.WithField("component", "config"),
	}
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	s.logWarnings(snap)
	return s, nil
}

// NewStaticStore wraps an already validated snapshot. Reload keeps it.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{static: true, log: logrus.StandardLogger().WithField("component", "config")}
	s.current.Store(snap)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// OnReload registers fn to run after each successful reload.
func (s *Store) OnReload(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the file. On error the previous snapshot stays active.
func (s *Store) Reload() error {
	snap, err := s.load()
	if err != nil {
		s.log.WithError(err).Warn("config: reload failed, keeping previous settings")
		return err
	}
	s.current.Store(snap)
	s.logWarnings(snap)
	s.log.Info("config: reloaded")

	s.mu.Lock()
	listeners := append([]func(*Snapshot){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

// WatchSignals reloads on every value received from signals until ctx
// is done. Callers typically pass a channel registered for SIGHUP.
func (s *Store) WatchSignals(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			_ = s.Reload()
		}
	}
}

func (s *Store) load() (*Snapshot, error) {
	if s.static {
		return s.current.Load(), nil
	}
	cfg, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	if s.overrides != nil {
		s.overrides(cfg)
	}
	return cfg.Snapshot()
}

func (s *Store) logWarnings(snap *Snapshot) {
	for _, w := range snap.Warnings {
		s.log.Warn("config: " + w)
	}
}
