package render

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// MockRenderer implements Renderer for testing. It records every spawn and
// hands out MockProcess handles with sequential fake pids.
type MockRenderer struct {
	mu      sync.Mutex
	spawns  []MockSpawn
	nextPid atomic.Int64

	// Err, if set, is returned by every Spawn.
	Err error

	// FailImage, if non-empty, makes Spawn fail for that image only.
	FailImage string
}

// MockSpawn records one Spawn call.
type MockSpawn struct {
	Image   string
	Options Options
	Process *MockProcess
}

// NewMockRenderer returns a renderer whose first pid is 1000.
func NewMockRenderer() *MockRenderer {
	m := &MockRenderer{}
	m.nextPid.Store(999)
	return m
}

// Spawn records the call and returns a live MockProcess.
func (m *MockRenderer) Spawn(image string, opts Options) (Process, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailImage != "" && image == m.FailImage {
		return nil, fmt.Errorf("mock spawn %s failed", image)
	}
	p := &MockProcess{pid: int(m.nextPid.Add(1))}

	m.mu.Lock()
	m.spawns = append(m.spawns, MockSpawn{Image: image, Options: opts, Process: p})
	m.mu.Unlock()
	return p, nil
}

// Spawns returns a copy of all recorded spawns in call order.
func (m *MockRenderer) Spawns() []MockSpawn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSpawn, len(m.spawns))
	copy(out, m.spawns)
	return out
}

// Live returns the spawned processes that have not been terminated.
func (m *MockRenderer) Live() []*MockProcess {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live []*MockProcess
	for _, s := range m.spawns {
		if !s.Process.Terminated() {
			live = append(live, s.Process)
		}
	}
	return live
}

// MockProcess is a fake renderer process.
type MockProcess struct {
	pid        int
	terminates atomic.Int32
}

// Pid returns the fake pid.
func (p *MockProcess) Pid() int { return p.pid }

// Terminate records the call. Repeated calls succeed.
func (p *MockProcess) Terminate() error {
	p.terminates.Add(1)
	return nil
}

// Terminated reports whether Terminate was called at least once.
func (p *MockProcess) Terminated() bool { return p.terminates.Load() > 0 }

// TerminateCount returns how often Terminate was called.
func (p *MockProcess) TerminateCount() int { return int(p.terminates.Load()) }
