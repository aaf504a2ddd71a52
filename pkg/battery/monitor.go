package battery

import "sync"

// Crossing flags a threshold crossed by one observation.
type Crossing uint8

const (
	LowCrossed Crossing = 1 << iota
	CriticalCrossed
)

// Has reports whether c includes flag.
func (c Crossing) Has(flag Crossing) bool { return c&flag != 0 }

// Monitor remembers the previous charge so a warning fires once per descent
// through a threshold rather than on every reading below it.
type Monitor struct {
	Low      int
	Critical int

	mu       sync.Mutex
	previous int
}

// NewMonitor returns a Monitor whose previous charge is 100.
func NewMonitor(low, critical int) *Monitor {
	return &Monitor{Low: low, Critical: critical, previous: 100}
}

// Observe records a reading and reports which thresholds it crossed. A
// threshold is crossed only while discharging, by moving from above it to
// at or below it.
func (m *Monitor) Observe(charge int, discharging bool) Crossing {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c Crossing
	if discharging {
		if charge <= m.Low && m.previous > m.Low {
			c |= LowCrossed
		}
		if charge <= m.Critical && m.previous > m.Critical {
			c |= CriticalCrossed
		}
	}
	m.previous = charge
	return c
}

// Previous returns the last observed charge.
func (m *Monitor) Previous() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}
