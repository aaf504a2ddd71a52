package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/status-overlay/pkg/config"
)

// LegacyConfig is the decoded legacy JSON object.
type LegacyConfig map[string]any

// parseLegacy reads the legacy JSON object at path.
func parseLegacy(path string) (LegacyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading legacy config: %w", err)
	}
	var cfg LegacyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding legacy config: %w", err)
	}
	return cfg, nil
}

// legacyScript is the fuel gauge library sourced from FUEL_GAUGE_SCRIPT_PATH.
const legacyScript = "bq27441_lib.sh"

// boardToBCM maps 40-pin header positions to Broadcom GPIO numbers. The
// legacy config addressed pins by board position.
var boardToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27, 15: 22, 16: 23,
	18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8, 26: 7, 27: 0, 28: 1, 29: 5,
	31: 6, 32: 12, 33: 13, 35: 19, 36: 16, 37: 26, 38: 20, 40: 21,
}

// BoardPin returns the GPIO name of a header position, e.g. 36 -> "GPIO16".
func BoardPin(board int) (string, bool) {
	bcm, ok := boardToBCM[board]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("GPIO%d", bcm), true
}

// ignoredKeys are legacy keys with no TOML equivalent. IS_VISIBLE stays in
// the legacy file, which remains the state file.
var ignoredKeys = map[string]bool{
	"CONFIG_FILE_PATH": true,
	"IS_VISIBLE":       true,
	"LIB_PATH":         true,
}

// transform applies legacy values onto cfg and returns the changes made and
// warnings for keys it could not use.
func transform(legacy LegacyConfig, cfg *config.Config) ([]ConfigChange, []string) {
	t := &transformer{legacy: legacy}

	if v, ok := t.lookupInt("LAYER_DEFAULT"); ok {
		t.setInt("display.layer_backdrop", "LAYER_DEFAULT", &cfg.Display.LayerBackdrop, v-10)
		t.setInt("display.layer_battery", "LAYER_DEFAULT", &cfg.Display.LayerBattery, v+5)
		t.setInt("display.layer_number", "LAYER_DEFAULT", &cfg.Display.LayerNumber, v+10)
		t.setInt("display.layer_notification", "LAYER_DEFAULT", &cfg.Display.LayerNotification, v+15)
	}
	t.intKey("LAYER_BACKDROP", "display.layer_backdrop", &cfg.Display.LayerBackdrop)
	t.intKey("LAYER_BATTERY", "display.layer_battery", &cfg.Display.LayerBattery)
	t.intKey("LAYER_NUMBER", "display.layer_number", &cfg.Display.LayerNumber)
	t.intKey("LAYER_NOTIFICATION", "display.layer_notification", &cfg.Display.LayerNotification)
	t.intKey("DISPLAY_ID", "display.id", &cfg.Display.ID)
	t.stringKey("IMAGE_PATH", "display.asset_dir", &cfg.Display.AssetDir)
	t.stringKey("PNGVIEW_PATH", "display.pngview", &cfg.Display.Pngview)

	t.stringKey("SOUND_PATH", "audio.sound_dir", &cfg.Audio.SoundDir)

	if v, ok := t.lookupString("POWER_SWITCH_BEHAVIOR"); ok {
		t.setString("button.behavior", "POWER_SWITCH_BEHAVIOR", &cfg.Button.Behavior, strings.ToUpper(v))
	}
	t.secondsKey("POWER_SWITCH_FLASH_DURATION", "button.flash_duration", &cfg.Button.FlashDuration)
	if v, ok := t.lookupString("SCREENSHOT_PATH"); ok {
		t.setString("button.screenshot_dir", "SCREENSHOT_PATH", &cfg.Button.ScreenshotDir, expandHome(v))
	}
	t.pinKey("BATTERY_POWER_PIN", "button.pin", &cfg.Button.Pin)

	if v, ok := t.lookupString("FUEL_GAUGE_SCRIPT_PATH"); ok {
		t.setString("battery.script", "FUEL_GAUGE_SCRIPT_PATH", &cfg.Battery.Script, filepath.Join(v, legacyScript))
	}
	t.intKey("FUEL_GAUGE_I2C_BUS_ID", "battery.bus", &cfg.Battery.Bus)
	t.intKey("FUEL_GAUGE_I2C_DEVICE_ID", "battery.address", &cfg.Battery.Address)
	t.pinKey("BATTERY_GPOUT_PIN", "battery.gpout_pin", &cfg.Battery.GPOUTPin)
	t.intKey("LOW_BATTERY_THRESHOLD", "battery.low_threshold", &cfg.Battery.LowThreshold)
	t.intKey("CRITICAL_BATTERY_THRESHOLD", "battery.critical_threshold", &cfg.Battery.CriticalThreshold)
	t.secondsKey("LOW_BATTERY_NOTIFICATION_DURATION", "battery.low_duration", &cfg.Battery.LowDuration)
	t.secondsKey("CRITICAL_BATTERY_NOTIFICATION_DURATION", "battery.critical_duration", &cfg.Battery.CriticalDuration)

	var unknown []string
	for k := range legacy {
		if !t.used[k] && !ignoredKeys[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		t.warn("unknown legacy key %s ignored", k)
	}
	return t.changes, t.warnings
}

type transformer struct {
	legacy   LegacyConfig
	used     map[string]bool
	changes  []ConfigChange
	warnings []string
}

func (t *transformer) warn(format string, args ...any) {
	t.warnings = append(t.warnings, fmt.Sprintf(format, args...))
}

func (t *transformer) mark(key string) {
	if t.used == nil {
		t.used = make(map[string]bool)
	}
	t.used[key] = true
}

func (t *transformer) lookupString(key string) (string, bool) {
	raw, ok := t.legacy[key]
	if !ok {
		return "", false
	}
	t.mark(key)
	s, ok := raw.(string)
	if !ok {
		t.warn("%s: want string, got %T", key, raw)
	}
	return s, ok
}

// lookupNumber accepts JSON numbers, and numeric strings as the legacy writer
// sometimes produced them.
func (t *transformer) lookupNumber(key string) (float64, bool) {
	raw, ok := t.legacy[key]
	if !ok {
		return 0, false
	}
	t.mark(key)
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			return f, true
		}
	}
	t.warn("%s: want number, got %v", key, raw)
	return 0, false
}

func (t *transformer) lookupInt(key string) (int, bool) {
	f, ok := t.lookupNumber(key)
	if !ok {
		return 0, false
	}
	if f != float64(int(f)) {
		t.warn("%s: %v truncated to %d", key, f, int(f))
	}
	return int(f), true
}

func (t *transformer) stringKey(key, field string, dst *string) {
	if v, ok := t.lookupString(key); ok {
		t.setString(field, key, dst, v)
	}
}

func (t *transformer) intKey(key, field string, dst *int) {
	if v, ok := t.lookupInt(key); ok {
		t.setInt(field, key, dst, v)
	}
}

func (t *transformer) secondsKey(key, field string, dst *config.Duration) {
	f, ok := t.lookupNumber(key)
	if !ok {
		return
	}
	if f < 0 {
		t.warn("%s: negative duration %v ignored", key, f)
		return
	}
	d := config.D(time.Duration(f * float64(time.Second)))
	if d != *dst {
		t.record(field, key, dst.String(), d.String())
		*dst = d
	}
}

func (t *transformer) pinKey(key, field string, dst *string) {
	board, ok := t.lookupInt(key)
	if !ok {
		return
	}
	name, ok := BoardPin(board)
	if !ok {
		t.warn("%s: board pin %d is not a GPIO", key, board)
		return
	}
	t.setString(field, key, dst, name)
}

func (t *transformer) setString(field, key string, dst *string, v string) {
	if *dst != v {
		t.record(field, key, *dst, v)
		*dst = v
	}
}

func (t *transformer) setInt(field, key string, dst *int, v int) {
	if *dst != v {
		t.record(field, key, fmt.Sprint(*dst), fmt.Sprint(v))
		*dst = v
	}
}

func (t *transformer) record(field, key, from, to string) {
	t.changes = append(t.changes, ConfigChange{Field: field, LegacyKey: key, OldValue: from, NewValue: to})
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
