package asset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Notification images.
const (
	LowBatteryImage      = "low_battery_warning.png"
	CriticalBatteryImage = "critical_battery.png"
	SnapshotImage        = "snapshot_notification.png"
)

// Sounds.
const (
	LowBatterySound = "low_battery.mp3"
	ShutdownSound   = "shutdown.mp3"
)

// Tiers lists the battery artwork tiers in ascending order.
var Tiers = []int{0, 10, 25, 50, 75, 90, 100}

// Catalog resolves asset names inside an image directory.
type Catalog struct {
	Dir string
}

// Path joins name onto the catalog directory.
func (c Catalog) Path(name string) string {
	return filepath.Join(c.Dir, name)
}

func (c Catalog) Backdrop() string { return c.Path("backdrop.png") }
func (c Catalog) Percent() string  { return c.Path("percent.png") }

// Digit returns the image for a single decimal digit.
func (c Catalog) Digit(d int) string {
	return c.Path("num" + strconv.Itoa(d) + ".png")
}

// Battery returns the battery image for a tier, e.g. battery75pcharging.png.
func (c Catalog) Battery(tier int, charging bool) string {
	return c.Path(BatteryName(tier, charging))
}

// BatteryName returns the file name of the battery image for a tier.
func BatteryName(tier int, charging bool) string {
	name := "battery" + strconv.Itoa(tier) + "p"
	if charging {
		name += "charging"
	}
	return name + ".png"
}

// Required lists every image the HUD and its notifications may draw.
func Required() []string {
	names := []string{"backdrop.png", "percent.png"}
	for d := 0; d <= 9; d++ {
		names = append(names, "num"+strconv.Itoa(d)+".png")
	}
	for _, tier := range Tiers {
		names = append(names, BatteryName(tier, false), BatteryName(tier, true))
	}
	return append(names, LowBatteryImage, CriticalBatteryImage, SnapshotImage)
}

// Verify checks that every required image exists in the catalog directory
// and has a readable PNG header.
func (c Catalog) Verify(sizer *Sizer) error {
	var errs []error
	for _, name := range Required() {
		path := c.Path(name)
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("missing %s", name))
			continue
		}
		if _, err := sizer.Size(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
