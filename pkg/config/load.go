package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// SystemPath is the system-wide config location used when no user config
// exists. The daemon normally runs as root under systemd.
const SystemPath = "/etc/status-overlay/config.toml"

// Behaviors lists the accepted button.behavior values.
var Behaviors = []string{"INITIAL_ON", "INITIAL_OFF", "SAVED", "FLASH", "FLASH_INITIAL_ON"}

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/status-overlay/config.toml
//  2. ~/.config/status-overlay/config.toml
//  3. /etc/status-overlay/config.toml
//
// If no file exists, returns DefaultConfig().
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads configuration from an io.Reader. Keys absent from the
// input keep their DefaultConfig values.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultConfig returns the default configuration. Values match the
// layout of a stock Raspberry Pi handheld build with a BQ27441 gauge.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	runDir := "/run/status-overlay"
	const layerDefault = 15000

	return &Config{
		General: GeneralConfig{
			LogLevel:   "info",
			LogFile:    filepath.Join(xdgStateHome(home), "status-overlay", "status-overlay.log"),
			PIDFile:    filepath.Join(runDir, "status-overlay.pid"),
			Socket:     filepath.Join(runDir, "status-overlay.sock"),
			HealthFile: filepath.Join(runDir, "health.json"),
			StateFile:  filepath.Join(home, ".status_overlay_config"),
		},
		Display: DisplayConfig{
			ID:                0,
			Pngview:           "pngview",
			Tvservice:         "tvservice",
			FlickerPause:      Duration{25 * time.Millisecond},
			AssetDir:          "images",
			AssetScale:        1,
			PreparedDir:       filepath.Join(xdgCacheHome(home), "status-overlay", "images"),
			LayerBackdrop:     layerDefault - 10,
			LayerBattery:      layerDefault + 5,
			LayerNumber:       layerDefault + 10,
			LayerNotification: layerDefault + 15,
			ReapStale:         true,
		},
		Button: ButtonConfig{
			Pin:           "GPIO16",
			Debounce:      Duration{75 * time.Millisecond},
			LongPress:     Duration{500 * time.Millisecond},
			Behavior:      "SAVED",
			FlashDuration: Duration{3 * time.Second},
			Screenshot:    "raspi2png",
			ScreenshotDir: filepath.Join(home, "screenshots"),
		},
		Battery: BatteryConfig{
			Gauge:             "script",
			Script:            "lib/bq27441_lib/bq27441_lib.sh",
			Bus:               1,
			Address:           0x55,
			GPOUTPin:          "GPIO5",
			LowThreshold:      10,
			CriticalThreshold: 5,
			LowDuration:       Duration{5 * time.Second},
			CriticalDuration:  Duration{10 * time.Second},
		},
		Audio: AudioConfig{
			Backend:  "beep",
			SoundDir: "sounds",
			Command:  "omxplayer",
		},
		Shutdown: ShutdownConfig{
			Grace:   Duration{5 * time.Second},
			Command: "sudo shutdown -h now",
		},
	}
}

// Validate reports the first configuration problem found, if any.
func (c *Config) Validate() error {
	var errs []error

	if !validBehavior(c.Button.Behavior) {
		errs = append(errs, fmt.Errorf("button.behavior %q: want one of %s",
			c.Button.Behavior, strings.Join(Behaviors, ", ")))
	}
	if c.Button.LongPress.Duration <= 0 {
		errs = append(errs, errors.New("button.long_press must be positive"))
	}

	switch c.Battery.Gauge {
	case "script", "i2c":
	default:
		errs = append(errs, fmt.Errorf("battery.gauge %q: want script or i2c", c.Battery.Gauge))
	}
	if c.Battery.CriticalThreshold < 0 || c.Battery.CriticalThreshold > 100 ||
		c.Battery.LowThreshold < 0 || c.Battery.LowThreshold > 100 {
		errs = append(errs, errors.New("battery thresholds must be within 0..100"))
	}
	if c.Battery.CriticalThreshold > c.Battery.LowThreshold {
		errs = append(errs, fmt.Errorf("battery.critical_threshold (%d) above low_threshold (%d)",
			c.Battery.CriticalThreshold, c.Battery.LowThreshold))
	}

	switch c.Audio.Backend {
	case "beep", "command", "none":
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q: want beep, command or none", c.Audio.Backend))
	}

	if c.Display.AssetScale < 1 {
		errs = append(errs, errors.New("display.asset_scale must be at least 1"))
	}
	if (c.Display.Width == 0) != (c.Display.Height == 0) {
		errs = append(errs, errors.New("display.width and display.height must be set together"))
	}
	if !(c.Display.LayerBackdrop < c.Display.LayerBattery &&
		c.Display.LayerBattery <= c.Display.LayerNumber &&
		c.Display.LayerNumber < c.Display.LayerNotification) {
		errs = append(errs, errors.New("display layers must order backdrop < battery <= number < notification"))
	}

	return errors.Join(errs...)
}

// Resolve makes relative asset, script and sound paths absolute against base
// (normally the directory holding the binary).
func (c *Config) Resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Display.AssetDir = abs(c.Display.AssetDir)
	c.Battery.Script = abs(c.Battery.Script)
	c.Audio.SoundDir = abs(c.Audio.SoundDir)
}

// ImageDir returns the directory sprites are drawn from: the prepared copy
// when scaling is enabled, the source directory otherwise.
func (c *Config) ImageDir() string {
	if c.Display.AssetScale > 1 {
		return c.Display.PreparedDir
	}
	return c.Display.AssetDir
}

func validBehavior(b string) bool {
	for _, v := range Behaviors {
		if v == b {
			return true
		}
	}
	return false
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STATUS_OVERLAY_BEHAVIOR"); v != "" {
		cfg.Button.Behavior = strings.ToUpper(v)
	}
	if v := os.Getenv("STATUS_OVERLAY_DISPLAY"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Display.ID = id
		}
	}
	if v := os.Getenv("STATUS_OVERLAY_ASSETS"); v != "" {
		cfg.Display.AssetDir = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "status-overlay", "config.toml"))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "status-overlay", "config.toml"))
	}

	return append(paths, SystemPath)
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}

// xdgStateHome returns XDG_STATE_HOME or ~/.local/state as fallback.
func xdgStateHome(home string) string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".local", "state")
}
