package gpio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Pins names the GPIO of each line, e.g. "GPIO5".
type Pins struct {
	ChargeChanged string
	PowerButton   string
}

// pollTimeout bounds each WaitForEdge call so Run notices cancellation.
const pollTimeout = 250 * time.Millisecond

// PeriphSource reads edges from real pins through periph.io.
type PeriphSource struct {
	pins    map[Line]gpio.PinIO
	logger  *slog.Logger
	dropped atomic.Uint64
}

// OpenPeriph initializes the host drivers and configures both lines as
// inputs with edge detection: falling edges on the charge line, both edges
// on the pulled-up button.
func OpenPeriph(p Pins, logger *slog.Logger) (*PeriphSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	s := &PeriphSource{pins: make(map[Line]gpio.PinIO), logger: logger}
	setup := []struct {
		line Line
		name string
		pull gpio.Pull
		edge gpio.Edge
	}{
		{ChargeChanged, p.ChargeChanged, gpio.PullNoChange, gpio.FallingEdge},
		{PowerButton, p.PowerButton, gpio.PullUp, gpio.BothEdges},
	}
	for _, st := range setup {
		pin := gpioreg.ByName(st.name)
		if pin == nil {
			s.Close()
			return nil, fmt.Errorf("%s: no such pin %q", st.line, st.name)
		}
		if err := pin.In(st.pull, st.edge); err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: configure %s: %w", st.line, st.name, err)
		}
		s.pins[st.line] = pin
	}
	return s, nil
}

// Run starts one watcher goroutine per line and returns when ctx is done
// and all watchers have exited.
func (s *PeriphSource) Run(ctx context.Context, out chan<- Edge) error {
	var wg sync.WaitGroup
	for line, pin := range s.pins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if !pin.WaitForEdge(pollTimeout) {
					continue
				}
				s.deliver(out, Edge{Line: line, High: bool(pin.Read()), Time: time.Now()})
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (s *PeriphSource) deliver(out chan<- Edge, e Edge) {
	select {
	case out <- e:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("edge queue full, dropping edge", "line", e.Line, "dropped", n)
	}
}

// Level reads the current level of line.
func (s *PeriphSource) Level(line Line) (bool, error) {
	pin, ok := s.pins[line]
	if !ok {
		return false, fmt.Errorf("%s not configured", line)
	}
	return bool(pin.Read()), nil
}

// Dropped returns the number of edges lost to a full queue.
func (s *PeriphSource) Dropped() uint64 {
	return s.dropped.Load()
}

// Close disables edge detection on every configured line.
func (s *PeriphSource) Close() error {
	var first error
	for line, pin := range s.pins {
		if err := pin.Halt(); err != nil && first == nil {
			first = fmt.Errorf("%s: halt: %w", line, err)
		}
	}
	return first
}
