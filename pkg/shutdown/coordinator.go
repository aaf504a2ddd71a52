package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Reason says why the overlay is shutting down.
type Reason int

const (
	// CriticalBattery powers the device off after warning the user.
	CriticalBattery Reason = iota + 1
	// Requested powers the device off on an explicit request.
	Requested
	// FatalDisplay exits after cleanup when the HUD cannot be drawn.
	FatalDisplay
	// Signal exits after cleanup on SIGINT or SIGTERM.
	Signal
	// Quit exits after cleanup on an explicit request.
	Quit
	// GaugeFailure exits after cleanup when the fuel gauge cannot be read.
	GaugeFailure
)

func (r Reason) String() string {
	switch r {
	case CriticalBattery:
		return "critical_battery"
	case Requested:
		return "requested"
	case FatalDisplay:
		return "fatal_display"
	case Signal:
		return "signal"
	case Quit:
		return "quit"
	case GaugeFailure:
		return "gauge_failure"
	default:
		return "unknown"
	}
}

// Fatal reports whether the sequence was started by an unrecoverable error.
func (r Reason) Fatal() bool {
	return r == FatalDisplay || r == GaugeFailure
}

// PowersOff reports whether the sequence ends by powering the device off.
func (r Reason) PowersOff() bool {
	return r == CriticalBattery || r == Requested
}

// Notifier shows the critical battery warning.
type Notifier interface {
	NotifyCritical(d time.Duration) error
}

// Sounder plays the shutdown sound, blocking until it finishes.
type Sounder interface {
	Play(ctx context.Context, name string) error
}

// Config holds the sequence parameters.
type Config struct {
	// NotifyDuration is how long the critical warning stays up.
	NotifyDuration time.Duration
	// Sound is the file played during the warning.
	Sound string
	// Grace is the pause between the warning and teardown.
	Grace time.Duration
	// PowerOff is the command line run last, e.g. "sudo shutdown -h now".
	PowerOff string
}

// Coordinator collects shutdown triggers from any goroutine and runs the
// exit sequence exactly once on the goroutine that calls Run.
type Coordinator struct {
	cfg      Config
	notifier Notifier
	sounder  Sounder
	teardown func() error
	logger   *slog.Logger

	// runCommand executes the power-off command; replaced in tests.
	runCommand func(ctx context.Context, cmdline string) error
	// sleep waits out the grace period; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)

	gate *Gate

	mu     sync.Mutex
	reason Reason
}

// NewCoordinator returns a Coordinator. notifier and sounder may be nil.
// teardown releases every resource the overlay holds and must be safe to
// call once.
func NewCoordinator(cfg Config, notifier Notifier, sounder Sounder, teardown func() error, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:        cfg,
		notifier:   notifier,
		sounder:    sounder,
		teardown:   teardown,
		logger:     logger,
		runCommand: runCommand,
		sleep:      sleepCtx,
		gate:       NewGate(),
	}
}

// Trigger requests shutdown. Only the first trigger counts; later calls
// return false and change nothing.
func (c *Coordinator) Trigger(reason Reason) bool {
	c.mu.Lock()
	if c.gate.Fired() {
		c.mu.Unlock()
		c.logger.Debug("shutdown already triggered", "reason", reason)
		return false
	}
	c.reason = reason
	c.gate.Fire()
	c.mu.Unlock()

	c.logger.Info("shutdown triggered", "reason", reason)
	return true
}

// Triggered reports whether shutdown was requested.
func (c *Coordinator) Triggered() bool {
	return c.gate.Fired()
}

// Reason returns the first trigger's reason, or 0 if not triggered.
func (c *Coordinator) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Done is closed once shutdown has been triggered.
func (c *Coordinator) Done() <-chan struct{} {
	return c.gate.Done()
}

// Run blocks until shutdown is triggered or ctx is done, then runs the
// sequence. A cancelled ctx counts as Signal. The returned error is the
// power-off failure, if any; other steps log and continue.
func (c *Coordinator) Run(ctx context.Context) (Reason, error) {
	if err := c.gate.Wait(ctx); err != nil {
		c.Trigger(Signal)
	}
	reason := c.Reason()
	log := c.logger.With("reason", reason)

	// The sequence must finish even when ctx is already cancelled.
	seqCtx := context.WithoutCancel(ctx)

	if reason == CriticalBattery {
		if c.notifier != nil {
			if err := c.notifier.NotifyCritical(c.cfg.NotifyDuration); err != nil {
				log.Error("critical notification failed", "err", err)
			}
		}
		if c.sounder != nil && c.cfg.Sound != "" {
			if err := c.sounder.Play(seqCtx, c.cfg.Sound); err != nil {
				log.Warn("shutdown sound failed", "err", err)
			}
		}
		log.Info("shutting down after grace period", "grace", c.cfg.Grace)
		c.sleep(seqCtx, c.cfg.Grace)
	}

	if c.teardown != nil {
		if err := c.teardown(); err != nil {
			log.Error("teardown failed", "err", err)
		}
	}

	if !reason.PowersOff() {
		log.Info("exiting without power-off")
		return reason, nil
	}
	if c.cfg.PowerOff == "" {
		return reason, errors.New("no power-off command configured")
	}
	log.Info("powering off", "command", c.cfg.PowerOff)
	if err := c.runCommand(seqCtx, c.cfg.PowerOff); err != nil {
		return reason, fmt.Errorf("power off: %w", err)
	}
	return reason, nil
}

func runCommand(ctx context.Context, cmdline string) error {
	if strings.TrimSpace(cmdline) == "" {
		return errors.New("empty command")
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", cmdline).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", cmdline, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
