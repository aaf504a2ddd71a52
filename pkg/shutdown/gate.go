// Package shutdown runs the one-time exit sequence of the overlay: warn the
// user, tear down every sprite, persist state and optionally power off.
package shutdown

import (
	"context"
	"sync"
)

// Gate is a latch that fires once. The zero value is not usable; use
// NewGate.
type Gate struct {
	once sync.Once
	done chan struct{}
}

// NewGate returns an unfired gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Fire opens the gate. Only the first call returns true.
func (g *Gate) Fire() bool {
	fired := false
	g.once.Do(func() {
		close(g.done)
		fired = true
	})
	return fired
}

// Done returns a channel closed when the gate fires.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Fired reports whether the gate has fired.
func (g *Gate) Fired() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate fires or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
