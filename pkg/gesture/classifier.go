// Package gesture turns power-button edges into short and long presses and
// defines what a short press does to HUD visibility.
package gesture

import (
	"context"
	"sync"
	"time"
)

// Defaults for the power button.
const (
	Debounce           = 75 * time.Millisecond
	LongPressThreshold = 500 * time.Millisecond
)

// Gesture is the result of classifying one edge.
type Gesture int

const (
	None Gesture = iota
	ShortPress
	LongPress
)

func (g Gesture) String() string {
	switch g {
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	default:
		return "none"
	}
}

// State is the classifier state.
type State int

const (
	Idle State = iota
	Pressed
)

// Classifier tracks press/release edges of a pull-up button: the line reads
// high while released and low while held. It is safe for concurrent use.
type Classifier struct {
	long time.Duration

	mu        sync.Mutex
	state     State
	pressedAt time.Time
}

// NewClassifier returns a Classifier that reports holds of at least long as
// LongPress. A non-positive long uses LongPressThreshold.
func NewClassifier(long time.Duration) *Classifier {
	if long <= 0 {
		long = LongPressThreshold
	}
	return &Classifier{long: long}
}

// Edge feeds the debounced line level sampled at now. It returns the gesture
// completed by this edge, if any. A release with no recorded press is
// ignored, as is a second press while already pressed.
func (c *Classifier) Edge(high bool, now time.Time) Gesture {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !high {
		if c.state == Idle {
			c.state = Pressed
			c.pressedAt = now
		}
		return None
	}

	if c.state != Pressed {
		return None
	}
	c.state = Idle
	if now.Sub(c.pressedAt) < c.long {
		return ShortPress
	}
	return LongPress
}

// State returns the current state.
func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SampleAfter waits for the debounce period and then reads the line.
func SampleAfter(ctx context.Context, debounce time.Duration, read func() bool) (bool, error) {
	if debounce > 0 {
		t := time.NewTimer(debounce)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.C:
		}
	}
	return read(), nil
}
