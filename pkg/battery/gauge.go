// Package battery reads the fuel gauge and detects low and critical charge
// crossings.
package battery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrBadReading is returned when the gauge answers with something that is
// not a charge value.
var ErrBadReading = errors.New("bad fuel gauge reading")

// Gauge reports the battery state.
type Gauge interface {
	// StateOfCharge returns the charge in percent.
	StateOfCharge(ctx context.Context) (int, error)
	// Discharging reports whether the device runs from the battery.
	Discharging(ctx context.Context) (bool, error)
}

// Reading is one sample of the gauge.
type Reading struct {
	StateOfCharge int       `json:"state_of_charge"`
	Discharging   bool      `json:"discharging"`
	Time          time.Time `json:"time"`
}

// Charging reports whether external power is connected.
func (r Reading) Charging() bool { return !r.Discharging }

// Read samples both values from g.
func Read(ctx context.Context, g Gauge) (Reading, error) {
	soc, err := g.StateOfCharge(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("state of charge: %w", err)
	}
	dis, err := g.Discharging(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("discharging: %w", err)
	}
	return Reading{StateOfCharge: soc, Discharging: dis, Time: time.Now()}, nil
}

// ScriptGauge reads the gauge through the bq27441 shell library. Each call
// sources the library with the bus and device address and runs one of its
// functions.
type ScriptGauge struct {
	Script  string
	Bus     int
	Address int
}

func (g *ScriptGauge) call(ctx context.Context, fn string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	line := fmt.Sprintf(". %q %d %d; %s", g.Script, g.Bus, g.Address, fn)
	out, err := exec.CommandContext(ctx, "bash", "-c", line).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", fn, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// StateOfCharge runs get_battery_percentage.
func (g *ScriptGauge) StateOfCharge(ctx context.Context) (int, error) {
	out, err := g.call(ctx, "get_battery_percentage")
	if err != nil {
		return 0, err
	}
	return ParseCharge(out)
}

// Discharging runs is_discharging, which prints True or False.
func (g *ScriptGauge) Discharging(ctx context.Context) (bool, error) {
	out, err := g.call(ctx, "is_discharging")
	if err != nil {
		return false, err
	}
	return out == "True", nil
}

// ParseCharge parses a base ten charge percentage.
func ParseCharge(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadReading, s)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%w: %d out of range", ErrBadReading, n)
	}
	return n, nil
}

// StaticGauge returns fixed values. Used by previews and tests.
type StaticGauge struct {
	Charge    int
	OnBattery bool
	Err       error
}

func (g *StaticGauge) StateOfCharge(context.Context) (int, error) { return g.Charge, g.Err }
func (g *StaticGauge) Discharging(context.Context) (bool, error)  { return g.OnBattery, g.Err }
