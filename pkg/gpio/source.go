// Package gpio delivers edges of the charge-changed and power-button lines
// to the overlay's dispatch loop.
package gpio

import (
	"context"
	"fmt"
	"time"
)

// Line identifies an input line.
type Line int

const (
	// ChargeChanged is the fuel gauge GPOUT interrupt.
	ChargeChanged Line = iota
	// PowerButton is the momentary power switch, high while released.
	PowerButton
)

func (l Line) String() string {
	switch l {
	case ChargeChanged:
		return "charge_changed"
	case PowerButton:
		return "power_button"
	default:
		return fmt.Sprintf("line(%d)", int(l))
	}
}

// Edge is one observed transition.
type Edge struct {
	Line Line
	High bool
	Time time.Time
}

// Source produces edges.
type Source interface {
	// Run delivers edges into out until ctx is done. It never blocks on a
	// full channel; such edges are dropped.
	Run(ctx context.Context, out chan<- Edge) error
	// Level reads the current level of a line.
	Level(Line) (bool, error)
	// Close releases the lines.
	Close() error
}

// QueueSize is the capacity used for the edge channel.
const QueueSize = 16
