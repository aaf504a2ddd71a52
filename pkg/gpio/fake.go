package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeSource is an in-memory Source for tests and off-device runs. Edges
// are injected with Press, Release and ChargeEdge.
type FakeSource struct {
	mu      sync.Mutex
	levels  map[Line]bool
	pending chan Edge
	closed  bool
}

// NewFakeSource returns a source with the button released.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		levels:  map[Line]bool{ChargeChanged: true, PowerButton: true},
		pending: make(chan Edge, 64),
	}
}

// Inject sets the level of e.Line and queues the edge.
func (f *FakeSource) Inject(e Edge) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	f.mu.Lock()
	f.levels[e.Line] = e.High
	f.mu.Unlock()
	f.pending <- e
}

// Press pulls the button line low.
func (f *FakeSource) Press() { f.Inject(Edge{Line: PowerButton, High: false}) }

// Release lets the button line go high.
func (f *FakeSource) Release() { f.Inject(Edge{Line: PowerButton, High: true}) }

// ChargeEdge signals a charge change.
func (f *FakeSource) ChargeEdge() { f.Inject(Edge{Line: ChargeChanged, High: false}) }

// SetLevel changes a level without producing an edge.
func (f *FakeSource) SetLevel(line Line, high bool) {
	f.mu.Lock()
	f.levels[line] = high
	f.mu.Unlock()
}

// Run forwards injected edges until ctx is done.
func (f *FakeSource) Run(ctx context.Context, out chan<- Edge) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-f.pending:
			select {
			case out <- e:
			default:
			}
		}
	}
}

// Level returns the last injected level.
func (f *FakeSource) Level(line Line) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, fmt.Errorf("%s: source closed", line)
	}
	return f.levels[line], nil
}

// Close marks the source closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
