// Package notify shows centered, self-expiring notification images above the
// HUD.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/status-overlay/pkg/render"
	"gitlab.com/tinyland/lab/status-overlay/pkg/sprite"
)

// Notification keys.
const (
	LowBattery      = "low_battery"
	CriticalBattery = "crit_battery"
	Snapshot        = "snapshot"
)

// Spawner draws an image without tracking it. *sprite.Registry satisfies it.
type Spawner interface {
	Spawn(image string, opts render.Options) (render.Process, error)
	Base() render.Options
}

var _ Spawner = (*sprite.Registry)(nil)

type entry struct {
	proc  render.Process
	timer stopper
}

type stopper interface{ Stop() bool }

// Scheduler keeps at most one notification per key on screen. Each one is
// removed when its duration elapses unless a newer notification has replaced
// it under the same key.
type Scheduler struct {
	spawner Spawner
	layer   int
	logger  *slog.Logger

	// afterFunc schedules expiry; replaced in tests.
	afterFunc func(time.Duration, func()) stopper

	mu     sync.Mutex
	active map[string]entry
}

// NewScheduler returns a Scheduler drawing on layer.
func NewScheduler(spawner Spawner, layer int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		spawner: spawner,
		layer:   layer,
		logger:  logger,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		active: make(map[string]entry),
	}
}

// Notify draws image centered on screen under key for duration. A
// notification already shown under key is killed once the new one is up.
func (s *Scheduler) Notify(key, image string, duration time.Duration) error {
	opts := s.spawner.Base()
	opts.X, opts.Y = nil, nil
	opts.Layer = s.layer

	proc, err := s.spawner.Spawn(image, opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev, had := s.active[key]
	s.active[key] = entry{
		proc:  proc,
		timer: s.afterFunc(duration, func() { s.expire(key, proc) }),
	}
	s.mu.Unlock()

	if had {
		prev.timer.Stop()
		s.terminate(key, prev.proc)
	}
	s.logger.Debug("notification shown", "key", key, "image", image, "duration", duration)
	return nil
}

// expire removes the notification under key if it is still proc.
func (s *Scheduler) expire(key string, proc render.Process) {
	s.mu.Lock()
	cur, ok := s.active[key]
	if !ok || cur.proc != proc {
		s.mu.Unlock()
		return
	}
	delete(s.active, key)
	s.mu.Unlock()

	s.terminate(key, proc)
}

// Clear kills every notification on screen and cancels pending expiries.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	entries := s.active
	s.active = make(map[string]entry)
	s.mu.Unlock()

	for key, e := range entries {
		e.timer.Stop()
		s.terminate(key, e.proc)
	}
	return len(entries)
}

// Active returns the number of notifications on screen.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shown reports whether a notification is on screen under key.
func (s *Scheduler) Shown(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key]
	return ok
}

func (s *Scheduler) terminate(key string, p render.Process) {
	if err := p.Terminate(); err != nil {
		s.logger.Warn("failed to terminate notification", "key", key, "pid", p.Pid(), "err", err)
	}
}
