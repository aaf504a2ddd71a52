// Package preview composes a layout plan into a still image, so the HUD can
// be checked without a Pi display.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sort"

	"github.com/fogleman/gg"

	"gitlab.com/tinyland/lab/status-overlay/pkg/layout"
)

// Options controls the composed image.
type Options struct {
	// Background fills the screen before sprites are painted. Nil leaves it
	// transparent.
	Background color.Color

	// Notification, if set, is painted centered above the HUD the way the
	// renderer draws notifications.
	Notification string
}

// Compose paints the plan's sprites onto a screen-sized canvas in layer
// order. Sprites on the same layer keep plan order.
func Compose(plan layout.Plan, opts Options) (image.Image, error) {
	if plan.Screen.Width <= 0 || plan.Screen.Height <= 0 {
		return nil, errors.New("preview needs a screen size")
	}
	dc := gg.NewContext(plan.Screen.Width, plan.Screen.Height)
	if opts.Background != nil {
		dc.SetColor(opts.Background)
		dc.Clear()
	}

	placements := append([]layout.Placement(nil), plan.Placements...)
	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].Layer < placements[j].Layer
	})
	for _, p := range placements {
		img, err := gg.LoadPNG(p.Image)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p.Key, err)
		}
		dc.DrawImage(img, p.X, p.Y)
	}

	if opts.Notification != "" {
		img, err := gg.LoadPNG(opts.Notification)
		if err != nil {
			return nil, fmt.Errorf("load notification: %w", err)
		}
		dc.DrawImageAnchored(img, plan.Screen.Width/2, plan.Screen.Height/2, 0.5, 0.5)
	}
	return dc.Image(), nil
}

// Render composes the plan and writes it to w as PNG.
func Render(plan layout.Plan, opts Options, w io.Writer) error {
	img, err := Compose(plan, opts)
	if err != nil {
		return err
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}
