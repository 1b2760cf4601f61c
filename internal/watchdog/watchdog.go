// Package watchdog detects a stalled foreground loop.
package watchdog

import (
	"context"
	"errors"
	"time"
)

// ErrStarved is returned by Run when no kick arrived within the timeout.
var ErrStarved = errors.New("watchdog starved")

// Watchdog must be kicked at least once per timeout.
type Watchdog struct {
	timeout  time.Duration
	kicks    chan struct{}
	onStarve func(timeout time.Duration)
}

// New returns a watchdog; onStarve may be nil.
func New(timeout time.Duration, onStarve func(timeout time.Duration)) *Watchdog {
	return &Watchdog{
		timeout:  timeout,
		kicks:    make(chan struct{}, 1),
		onStarve: onStarve,
	}
}

// Kick signals that the loop is alive. It never blocks.
func (w *Watchdog) Kick() {
	select {
	case w.kicks <- struct{}{}:
	default:
	}
}

// Run monitors kicks until ctx is done or the watchdog starves. The first
// timeout starts when Run is called.
func (w *Watchdog) Run(ctx context.Context) error {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.kicks:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.timeout)
		case <-timer.C:
			if w.onStarve != nil {
				w.onStarve(w.timeout)
			}
			return ErrStarved
		}
	}
}
