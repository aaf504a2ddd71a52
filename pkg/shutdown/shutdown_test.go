package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --- Gate ---

func TestGateFiresOnce(t *testing.T) {
	g := NewGate()
	if g.Fired() {
		t.Fatal("new gate already fired")
	}
	if !g.Fire() {
		t.Error("first Fire returned false")
	}
	if g.Fire() {
		t.Error("second Fire returned true")
	}
	if err := g.Wait(context.Background()); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestGateConcurrentFire(t *testing.T) {
	g := NewGate()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Fire() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("Fire won %d times, want 1", wins.Load())
	}
}

func TestGateWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewGate().Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}
}

// --- Coordinator ---

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func (r *recorder) NotifyCritical(d time.Duration) error {
	r.add("notify")
	return nil
}

func (r *recorder) Play(ctx context.Context, name string) error {
	r.add("play " + name)
	return nil
}

func newTestCoordinator(rec *recorder) *Coordinator {
	c := NewCoordinator(Config{
		NotifyDuration: 10 * time.Second,
		Sound:          "shutdown.mp3",
		Grace:          5 * time.Second,
		PowerOff:       "sudo shutdown -h now",
	}, rec, rec, func() error { rec.add("teardown"); return nil }, nil)
	c.sleep = func(ctx context.Context, d time.Duration) { rec.add("grace " + d.String()) }
	c.runCommand = func(ctx context.Context, cmd string) error { rec.add("run " + cmd); return nil }
	return c
}

func TestCriticalBatterySequence(t *testing.T) {
	rec := &recorder{}
	c := newTestCoordinator(rec)
	c.Trigger(CriticalBattery)

	reason, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reason != CriticalBattery {
		t.Errorf("reason = %v", reason)
	}
	want := []string{"notify", "play shutdown.mp3", "grace 5s", "teardown", "run sudo shutdown -h now"}
	got := rec.get()
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSecondTriggerIgnored(t *testing.T) {
	rec := &recorder{}
	c := newTestCoordinator(rec)
	if !c.Trigger(CriticalBattery) {
		t.Fatal("first Trigger returned false")
	}
	if c.Trigger(Signal) {
		t.Error("second Trigger returned true")
	}
	if c.Reason() != CriticalBattery {
		t.Errorf("reason = %v, want first trigger's", c.Reason())
	}

	c.Run(context.Background())
	teardowns := 0
	for _, s := range rec.get() {
		if s == "teardown" {
			teardowns++
		}
	}
	if teardowns != 1 {
		t.Errorf("teardown ran %d times", teardowns)
	}
}

func TestConcurrentTriggersRunOnce(t *testing.T) {
	rec := &recorder{}
	c := newTestCoordinator(rec)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Trigger(CriticalBattery)
		}()
	}
	wg.Wait()
	c.Run(context.Background())

	runs := 0
	for _, s := range rec.get() {
		if s == "run sudo shutdown -h now" {
			runs++
		}
	}
	if runs != 1 {
		t.Errorf("power-off ran %d times, want 1", runs)
	}
}

func TestSignalSkipsPowerOff(t *testing.T) {
	for _, reason := range []Reason{Signal, FatalDisplay, Quit} {
		rec := &recorder{}
		c := newTestCoordinator(rec)
		c.Trigger(reason)
		if _, err := c.Run(context.Background()); err != nil {
			t.Fatalf("%v: Run: %v", reason, err)
		}
		got := rec.get()
		if len(got) != 1 || got[0] != "teardown" {
			t.Errorf("%v: steps = %v, want teardown only", reason, got)
		}
	}
}

func TestRequestedPowersOffWithoutWarning(t *testing.T) {
	rec := &recorder{}
	c := newTestCoordinator(rec)
	c.Trigger(Requested)
	c.Run(context.Background())

	got := rec.get()
	if len(got) != 2 || got[0] != "teardown" || got[1] != "run sudo shutdown -h now" {
		t.Errorf("steps = %v", got)
	}
}

func TestRunContextCancelledCountsAsSignal(t *testing.T) {
	rec := &recorder{}
	c := newTestCoordinator(rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reason != Signal {
		t.Errorf("reason = %v, want signal", reason)
	}
	if !c.Triggered() {
		t.Error("coordinator not marked triggered")
	}
}

func TestRunBlocksUntilTrigger(t *testing.T) {
	rec := &recorder{}
	c := newTestCoordinator(rec)
	done := make(chan Reason)
	go func() {
		r, _ := c.Run(context.Background())
		done <- r
	}()

	select {
	case <-done:
		t.Fatal("Run returned before trigger")
	case <-time.After(20 * time.Millisecond):
	}
	c.Trigger(Quit)
	select {
	case r := <-done:
		if r != Quit {
			t.Errorf("reason = %v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after trigger")
	}
}

func TestStepFailuresContinue(t *testing.T) {
	rec := &recorder{}
	c := newTestCoordinator(rec)
	c.teardown = func() error { rec.add("teardown"); return errors.New("gpio busy") }
	c.runCommand = func(ctx context.Context, cmd string) error { return errors.New("sudo: no tty") }
	c.Trigger(CriticalBattery)

	_, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected power-off error")
	}
	found := false
	for _, s := range rec.get() {
		if s == "teardown" {
			found = true
		}
	}
	if !found {
		t.Error("teardown skipped")
	}
}

func TestRunCommandEmpty(t *testing.T) {
	if err := runCommand(context.Background(), "  "); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestReasonString(t *testing.T) {
	if CriticalBattery.String() != "critical_battery" || Reason(0).String() != "unknown" {
		t.Error("unexpected Reason strings")
	}
	if GaugeFailure.String() != "gauge_failure" {
		t.Errorf("GaugeFailure = %q", GaugeFailure.String())
	}
}

func TestReasonClasses(t *testing.T) {
	tests := []struct {
		r         Reason
		fatal     bool
		powersOff bool
	}{
		{CriticalBattery, false, true},
		{Requested, false, true},
		{FatalDisplay, true, false},
		{GaugeFailure, true, false},
		{Signal, false, false},
		{Quit, false, false},
	}
	for _, tt := range tests {
		if tt.r.Fatal() != tt.fatal || tt.r.PowersOff() != tt.powersOff {
			t.Errorf("%v: Fatal=%v PowersOff=%v", tt.r, tt.r.Fatal(), tt.r.PowersOff())
		}
	}
}

func TestRunCommandShell(t *testing.T) {
	if err := runCommand(context.Background(), "true && exit 0"); err != nil {
		t.Errorf("runCommand: %v", err)
	}
	if err := runCommand(context.Background(), "exit 3"); err == nil {
		t.Error("expected error for failing command")
	}
}
