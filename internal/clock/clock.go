// Package clock abstracts time so the countdown and pollers can be
// driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake(initial) and move time
// forward with Advance; tickers created from a fake clock fire only
// when Advance crosses their deadline.
package clock

import "time"

// Clock provides the current time and repeating tick subscriptions.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker that delivers ticks on its C channel
	// at the given interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// After returns a channel that receives the current time once d
	// has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Ticker delivers periodic ticks. C is buffered with capacity 1; ticks
// are dropped when the receiver falls behind, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks are sent after Stop returns.
func (t *Ticker) Stop() { t.stopFunc() }
