package gesture

import (
	"sync"
	"time"
)

// Visibility is the HUD visibility the Flasher drives.
type Visibility interface {
	Visible() bool
	SetVisibility(bool)
}

// Flasher shows a hidden HUD for a fixed duration and then hides it again.
type Flasher struct {
	target   Visibility
	duration time.Duration

	afterFunc func(time.Duration, func()) *time.Timer

	mu    sync.Mutex
	timer *time.Timer
}

// NewFlasher returns a Flasher for target.
func NewFlasher(target Visibility, duration time.Duration) *Flasher {
	return &Flasher{target: target, duration: duration, afterFunc: time.AfterFunc}
}

// Flash shows the HUD and schedules it to hide after the flash duration. It
// does nothing if the HUD is already visible, including while a previous
// flash is still running. Reports whether a flash started.
func (f *Flasher) Flash() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.target.Visible() {
		return false
	}
	f.target.SetVisibility(true)
	f.timer = f.afterFunc(f.duration, f.end)
	return true
}

func (f *Flasher) end() {
	f.mu.Lock()
	f.timer = nil
	f.mu.Unlock()
	f.target.SetVisibility(false)
}

// Stop cancels a pending hide. Reports whether one was pending.
func (f *Flasher) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer == nil {
		return false
	}
	stopped := f.timer.Stop()
	f.timer = nil
	return stopped
}
