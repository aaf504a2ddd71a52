package main

import (
	"fmt"
	"image/color"
	"os"

	"gitlab.com/tinyland/lab/status-overlay/pkg/asset"
	"gitlab.com/tinyland/lab/status-overlay/pkg/config"
	"gitlab.com/tinyland/lab/status-overlay/pkg/layout"
	"gitlab.com/tinyland/lab/status-overlay/pkg/preview"
	"gitlab.com/tinyland/lab/status-overlay/pkg/render"
)

// previewScreen is used when the config pins no resolution.
var previewScreen = render.Screen{Width: 640, Height: 480}

func layersFromConfig(cfg *config.Config) layout.Layers {
	return layout.Layers{
		Backdrop:     cfg.Display.LayerBackdrop,
		Battery:      cfg.Display.LayerBattery,
		Number:       cfg.Display.LayerNumber,
		Notification: cfg.Display.LayerNotification,
	}
}

// runPreview renders the HUD for charge to a PNG at out. Charges at or
// below the configured thresholds also show the matching warning.
func runPreview(cfg *config.Config, out string, charge int, charging bool) error {
	screen := render.Screen{Width: cfg.Display.Width, Height: cfg.Display.Height}
	if screen.Width == 0 {
		screen = previewScreen
	}
	catalog := asset.Catalog{Dir: cfg.ImageDir()}
	plan, err := layout.NewEngine(catalog, nil, layersFromConfig(cfg)).Plan(screen, charge, charging)
	if err != nil {
		return err
	}

	opts := preview.Options{Background: color.RGBA{0x20, 0x20, 0x20, 0xff}}
	switch {
	case charging:
	case plan.Charge <= cfg.Battery.CriticalThreshold:
		opts.Notification = catalog.Path(asset.CriticalBatteryImage)
	case plan.Charge <= cfg.Battery.LowThreshold:
		opts.Notification = catalog.Path(asset.LowBatteryImage)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := preview.Render(plan, opts, f); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s, %d%%)\n", out, screen, plan.Charge)
	return nil
}
