// Package poll runs a function on a fixed cadence with a restartable
// Start/Stop lifecycle. The schedule, battery and watcher pollers are
// built on it.
package poll

import (
	"sync"
	"time"

	"github.com/awake/host/internal/clock"
)

// Config holds configuration for a Poller.
type Config struct {
	// Interval is how often Func runs. Values <= 0 default to one second.
	Interval time.Duration

	// Clock drives the ticker; defaults to clock.Real().
	Clock clock.Clock

	// Func is called once immediately on Start and then on every tick.
	Func func(now time.Time)
}

// Poller calls Config.Func on every tick until stopped.
type Poller struct {
	config   Config        // Immutable config for polling behavior.
	stopCh   chan struct{} // Signals the poll loop to stop.
	doneCh   chan struct{} // Closes when the poll loop exits.
	mu       sync.Mutex    // Guards lifecycle state.
	running  bool          // True while a pollLoop goroutine is active.
	stopping bool          // True while Stop is waiting for pollLoop to exit.
}

// New creates a stopped poller.
func New(config Config) *Poller {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	done := make(chan struct{})
	close(done)
	return &Poller{
		config: config,
		stopCh: make(chan struct{}),
		doneCh: done,
	}
}

// Start begins polling in a goroutine. Start is a no-op while running
// and is safe to call again after Stop.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running || p.stopping {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.pollLoop(stopCh, doneCh)
}

// Stop halts the poll loop and waits for the in-flight call to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running || p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.mu.Unlock()

	close(stopCh)
	<-doneCh

	p.mu.Lock()
	p.running = false
	p.stopping = false
	p.mu.Unlock()
}

// Done returns a channel that closes when the current run has stopped.
// The channel is recreated on each Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCh
}

func (p *Poller) pollLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := p.config.Clock.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.config.Func(p.config.Clock.Now())

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			p.config.Func(now)
		}
	}
}
