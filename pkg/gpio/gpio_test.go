package gpio

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestLineString(t *testing.T) {
	if ChargeChanged.String() != "charge_changed" || PowerButton.String() != "power_button" {
		t.Error("unexpected line names")
	}
	if Line(9).String() != "line(9)" {
		t.Errorf("Line(9) = %s", Line(9))
	}
}

// --- PeriphSource ---

func TestDeliverDropsWhenFull(t *testing.T) {
	s := &PeriphSource{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	out := make(chan Edge, 1)

	s.deliver(out, Edge{Line: PowerButton})
	s.deliver(out, Edge{Line: PowerButton, High: true})
	s.deliver(out, Edge{Line: ChargeChanged})

	if s.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", s.Dropped())
	}
	if e := <-out; e.High {
		t.Error("queue kept a later edge instead of the first")
	}
}

func TestPeriphLevelUnconfigured(t *testing.T) {
	s := &PeriphSource{}
	if _, err := s.Level(PowerButton); err == nil {
		t.Error("expected error for unconfigured line")
	}
}

// --- FakeSource ---

func TestFakeSourceForwards(t *testing.T) {
	f := NewFakeSource()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Edge, QueueSize)
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, out) }()

	f.Press()
	f.Release()
	f.ChargeEdge()

	want := []Edge{{Line: PowerButton, High: false}, {Line: PowerButton, High: true}, {Line: ChargeChanged}}
	for i, w := range want {
		select {
		case e := <-out:
			if e.Line != w.Line || e.High != w.High {
				t.Errorf("edge %d = %+v, want %+v", i, e, w)
			}
			if e.Time.IsZero() {
				t.Errorf("edge %d has no timestamp", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("edge %d not delivered", i)
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestFakeSourceLevels(t *testing.T) {
	f := NewFakeSource()
	high, err := f.Level(PowerButton)
	if err != nil || !high {
		t.Errorf("initial button level = %v, %v; want released", high, err)
	}
	f.SetLevel(PowerButton, false)
	if high, _ := f.Level(PowerButton); high {
		t.Error("SetLevel not applied")
	}
	f.Close()
	if _, err := f.Level(PowerButton); err == nil {
		t.Error("expected error after Close")
	}
}
