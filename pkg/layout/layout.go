// Package layout computes where each HUD sprite goes for a given charge
// reading. The HUD is packed right-to-left from the top-right corner of the
// screen: backdrop, battery icon, percent sign, then the digits.
package layout

import (
	"fmt"

	"gitlab.com/tinyland/lab/status-overlay/pkg/asset"
	"gitlab.com/tinyland/lab/status-overlay/pkg/render"
	"gitlab.com/tinyland/lab/status-overlay/pkg/sprite"
)

// Padding between HUD elements, in pixels.
const (
	HPadding = 2
	VPadding = 2
)

// Layers holds the renderer layer of each sprite class.
type Layers struct {
	Backdrop     int
	Battery      int
	Number       int
	Notification int
}

// DefaultLayers places the HUD just above a 15000 base layer.
func DefaultLayers() Layers {
	return Layers{Backdrop: 14990, Battery: 15005, Number: 15010, Notification: 15015}
}

// Placement is one sprite draw instruction.
type Placement struct {
	Key   sprite.Key
	Image string
	Layer int
	X     int
	Y     int
	Size  asset.Size
}

// Plan is the ordered list of draws for one HUD update.
type Plan struct {
	Screen     render.Screen
	Charge     int
	Charging   bool
	Placements []Placement
	// DigitCount is the number of digit sprites in the plan.
	DigitCount int
}

// Engine turns a charge reading into a Plan.
type Engine struct {
	Catalog asset.Catalog
	Sizer   *asset.Sizer
	Layers  Layers
}

// NewEngine returns an Engine reading images from catalog.
func NewEngine(catalog asset.Catalog, sizer *asset.Sizer, layers Layers) *Engine {
	if sizer == nil {
		sizer = asset.NewSizer()
	}
	return &Engine{Catalog: catalog, Sizer: sizer, Layers: layers}
}

// Plan lays out the HUD for charge on screen. charge is clamped to 0..100.
// Any unreadable asset aborts the plan.
func (e *Engine) Plan(screen render.Screen, charge int, charging bool) (Plan, error) {
	charge = Clamp(charge)
	p := Plan{Screen: screen, Charge: charge, Charging: charging}

	place := func(key sprite.Key, image string, layer int, x func(asset.Size) int, y int) error {
		sz, err := e.Sizer.Size(image)
		if err != nil {
			return fmt.Errorf("layout %s: %w", key, err)
		}
		p.Placements = append(p.Placements, Placement{
			Key: key, Image: image, Layer: layer, X: x(sz), Y: y, Size: sz,
		})
		return nil
	}

	cursor := screen.Width
	if err := place(sprite.Backdrop, e.Catalog.Backdrop(), e.Layers.Backdrop,
		func(sz asset.Size) int { return screen.Width - sz.Width }, 0); err != nil {
		return Plan{}, err
	}
	if err := place(sprite.Battery, e.Catalog.Battery(BatteryTier(charge), charging), e.Layers.Battery,
		func(sz asset.Size) int { cursor -= sz.Width + HPadding; return cursor }, VPadding); err != nil {
		return Plan{}, err
	}
	if err := place(sprite.Percent, e.Catalog.Percent(), e.Layers.Number,
		func(sz asset.Size) int { cursor -= sz.Width + HPadding; return cursor }, VPadding); err != nil {
		return Plan{}, err
	}

	digits := Digits(charge)
	for i := len(digits) - 1; i >= 0; i-- {
		idx := len(digits) - 1 - i
		if err := place(sprite.DigitKey(idx), e.Catalog.Digit(digits[i]), e.Layers.Number,
			func(sz asset.Size) int { cursor -= sz.Width; return cursor }, VPadding); err != nil {
			return Plan{}, err
		}
	}
	p.DigitCount = len(digits)
	return p, nil
}

// Clamp limits a charge reading to 0..100.
func Clamp(charge int) int {
	return max(0, min(100, charge))
}

// BatteryTier maps a charge to the battery artwork tier. Bounds are
// exclusive: 95 is tier 90, 96 is tier 100.
func BatteryTier(charge int) int {
	switch {
	case charge > 95:
		return 100
	case charge > 90:
		return 90
	case charge > 75:
		return 75
	case charge > 50:
		return 50
	case charge > 25:
		return 25
	case charge > 10:
		return 10
	default:
		return 0
	}
}

// BatteryImage returns the battery image name for a reading.
func BatteryImage(charge int, charging bool) string {
	return asset.BatteryName(BatteryTier(charge), charging)
}

// Digits returns the decimal digits of n, most significant first. Digits(0)
// is [0].
func Digits(n int) []int {
	if n < 0 {
		n = -n
	}
	var out []int
	for {
		out = append([]int{n % 10}, out...)
		n /= 10
		if n == 0 {
			return out
		}
	}
}

// RetiredDigits returns the digit keys left over from a longer previous
// reading: digitN for N counting up from digitCount while has reports the
// key as registered.
func RetiredDigits(digitCount int, has func(sprite.Key) bool) []sprite.Key {
	var out []sprite.Key
	for i := digitCount; has(sprite.DigitKey(i)); i++ {
		out = append(out, sprite.DigitKey(i))
	}
	return out
}
