package layout

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"gitlab.com/tinyland/lab/status-overlay/pkg/asset"
	"gitlab.com/tinyland/lab/status-overlay/pkg/render"
	"gitlab.com/tinyland/lab/status-overlay/pkg/sprite"
)

// assetDir writes a full set of HUD images: backdrop 60x20, battery 24x12,
// percent 8x10, every digit 6x10.
func assetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name string, w, h int) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		defer f.Close()
		if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
			t.Fatalf("encode %s: %v", name, err)
		}
	}
	write("backdrop.png", 60, 20)
	write("percent.png", 8, 10)
	for d := 0; d <= 9; d++ {
		write("num"+strconv.Itoa(d)+".png", 6, 10)
	}
	for _, tier := range asset.Tiers {
		write(asset.BatteryName(tier, false), 24, 12)
		write(asset.BatteryName(tier, true), 24, 12)
	}
	return dir
}

func newTestEngine(t *testing.T) *Engine {
	return NewEngine(asset.Catalog{Dir: assetDir(t)}, nil, DefaultLayers())
}

// --- BatteryTier ---

func TestBatteryTier(t *testing.T) {
	tests := []struct {
		charge int
		want   int
	}{
		{100, 100}, {96, 100}, {95, 90}, {91, 90}, {90, 75}, {76, 75},
		{75, 50}, {51, 50}, {50, 25}, {26, 25}, {25, 10}, {11, 10},
		{10, 0}, {5, 0}, {0, 0},
	}
	for _, tt := range tests {
		if got := BatteryTier(tt.charge); got != tt.want {
			t.Errorf("BatteryTier(%d) = %d, want %d", tt.charge, got, tt.want)
		}
	}
}

func TestBatteryImage(t *testing.T) {
	if got := BatteryImage(95, false); got != "battery90p.png" {
		t.Errorf("BatteryImage(95) = %q", got)
	}
	if got := BatteryImage(96, true); got != "battery100pcharging.png" {
		t.Errorf("BatteryImage(96, charging) = %q", got)
	}
}

// --- Digits ---

func TestDigits(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{0, []int{0}},
		{7, []int{7}},
		{42, []int{4, 2}},
		{100, []int{1, 0, 0}},
	}
	for _, tt := range tests {
		if got := Digits(tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Digits(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 55: 55, 100: 100, 140: 100} {
		if got := Clamp(in); got != want {
			t.Errorf("Clamp(%d) = %d, want %d", in, got, want)
		}
	}
}

// --- Plan ---

func TestPlanPositions(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Plan(render.Screen{Width: 320, Height: 240}, 57, false)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	type pos struct {
		key   sprite.Key
		layer int
		x, y  int
	}
	var got []pos
	for _, pl := range p.Placements {
		got = append(got, pos{pl.Key, pl.Layer, pl.X, pl.Y})
	}
	// cursor: 320 -> battery 294 -> percent 284 -> digit0 (7) 278 -> digit1 (5) 272
	want := []pos{
		{sprite.Backdrop, 14990, 260, 0},
		{sprite.Battery, 15005, 294, 2},
		{sprite.Percent, 15010, 284, 2},
		{sprite.DigitKey(0), 15010, 278, 2},
		{sprite.DigitKey(1), 15010, 272, 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("placements =\n%v\nwant\n%v", got, want)
	}
	if p.DigitCount != 2 {
		t.Errorf("DigitCount = %d, want 2", p.DigitCount)
	}
	if filepath.Base(p.Placements[1].Image) != "battery50p.png" {
		t.Errorf("battery image = %s", p.Placements[1].Image)
	}
	if filepath.Base(p.Placements[3].Image) != "num7.png" || filepath.Base(p.Placements[4].Image) != "num5.png" {
		t.Errorf("digit images = %s, %s", p.Placements[3].Image, p.Placements[4].Image)
	}
}

func TestPlanClampsCharge(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Plan(render.Screen{Width: 320, Height: 240}, 250, true)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if p.Charge != 100 || p.DigitCount != 3 {
		t.Errorf("Charge = %d DigitCount = %d, want 100 and 3", p.Charge, p.DigitCount)
	}
	if filepath.Base(p.Placements[1].Image) != "battery100pcharging.png" {
		t.Errorf("battery image = %s", p.Placements[1].Image)
	}
}

func TestPlanMissingAsset(t *testing.T) {
	dir := assetDir(t)
	os.Remove(filepath.Join(dir, "num3.png"))
	e := NewEngine(asset.Catalog{Dir: dir}, nil, DefaultLayers())

	if _, err := e.Plan(render.Screen{Width: 320, Height: 240}, 38, false); err == nil {
		t.Fatal("expected error for missing digit image")
	}
}

func TestPlanMalformedAsset(t *testing.T) {
	dir := assetDir(t)
	if err := os.WriteFile(filepath.Join(dir, "percent.png"), []byte("garbage garbage garbage!"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := NewEngine(asset.Catalog{Dir: dir}, nil, DefaultLayers())

	_, err := e.Plan(render.Screen{Width: 320, Height: 240}, 38, false)
	if !errors.Is(err, asset.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

// --- RetiredDigits ---

func TestRetiredDigits(t *testing.T) {
	registered := map[sprite.Key]bool{
		sprite.DigitKey(0): true,
		sprite.DigitKey(1): true,
		sprite.DigitKey(2): true,
	}
	has := func(k sprite.Key) bool { return registered[k] }

	got := RetiredDigits(1, has)
	want := []sprite.Key{sprite.DigitKey(1), sprite.DigitKey(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RetiredDigits(1) = %v, want %v", got, want)
	}
	if got := RetiredDigits(3, has); len(got) != 0 {
		t.Errorf("RetiredDigits(3) = %v, want none", got)
	}
}

func TestRetiredDigitsAfterRedraw(t *testing.T) {
	e := newTestEngine(t)
	m := render.NewMockRenderer()
	reg := sprite.NewRegistry(m, sprite.Options{})
	screen := render.Screen{Width: 320, Height: 240}

	draw := func(charge int) {
		p, err := e.Plan(screen, charge, false)
		if err != nil {
			t.Fatalf("Plan(%d): %v", charge, err)
		}
		for _, pl := range p.Placements {
			if _, err := reg.Show(pl.Key, pl.Image, pl.Layer, pl.X, pl.Y); err != nil {
				t.Fatalf("Show: %v", err)
			}
		}
		for _, k := range RetiredDigits(p.DigitCount, reg.Has) {
			reg.Hide(k)
		}
	}

	draw(100)
	draw(7)
	if reg.Has(sprite.DigitKey(1)) || reg.Has(sprite.DigitKey(2)) {
		t.Errorf("stale digits remain: %v", reg.Keys())
	}
	if !reg.Has(sprite.DigitKey(0)) {
		t.Error("digit0 missing")
	}
	if live := len(m.Live()); live != 4 {
		t.Errorf("live processes = %d, want 4", live)
	}
}
