package config

// Config is the top-level status-overlay configuration.
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Display  DisplayConfig  `toml:"display"`
	Button   ButtonConfig   `toml:"button"`
	Battery  BatteryConfig  `toml:"battery"`
	Audio    AudioConfig    `toml:"audio"`
	Shutdown ShutdownConfig `toml:"shutdown"`
}

// GeneralConfig holds daemon-wide file locations and logging.
type GeneralConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// LogFile receives a copy of everything written to stderr.
	LogFile string `toml:"log_file"`

	// PIDFile guards against two overlays fighting over the same sprites.
	PIDFile string `toml:"pid_file"`

	// Socket is the Unix socket for the IPC control channel.
	Socket string `toml:"socket"`

	// HealthFile is rewritten after every HUD update.
	HealthFile string `toml:"health_file"`

	// StateFile is the flat JSON record holding the persisted visibility.
	StateFile string `toml:"state_file"`
}

// DisplayConfig controls how sprites reach the screen.
type DisplayConfig struct {
	// ID is the DispmanX display number passed to pngview and tvservice.
	ID int `toml:"id"`

	// Pngview is the renderer binary spawned once per sprite.
	Pngview string `toml:"pngview"`

	// Tvservice is the resolution query tool.
	Tvservice string `toml:"tvservice"`

	// Width and Height, when both non-zero, bypass the tvservice query.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// FlickerPause is slept after every spawn before the previous process is
	// killed, giving the new layer time to claim the frame buffer.
	FlickerPause Duration `toml:"flicker_pause"`

	// AssetDir holds the PNG (or SVG) sprite images.
	AssetDir string `toml:"asset_dir"`

	// AssetScale > 1 renders a scaled copy of AssetDir into PreparedDir at
	// startup and draws from there.
	AssetScale  int    `toml:"asset_scale"`
	PreparedDir string `toml:"prepared_dir"`

	// Layers. Backdrop < Battery < Number < Notification.
	LayerBackdrop     int `toml:"layer_backdrop"`
	LayerBattery      int `toml:"layer_battery"`
	LayerNumber       int `toml:"layer_number"`
	LayerNotification int `toml:"layer_notification"`

	// ReapStale kills orphaned renderer processes left behind by a crash.
	ReapStale bool `toml:"reap_stale"`
}

// ButtonConfig controls the power button gesture handling.
type ButtonConfig struct {
	// Pin is the periph.io GPIO name of the power button line.
	Pin string `toml:"pin"`

	Debounce  Duration `toml:"debounce"`
	LongPress Duration `toml:"long_press"`

	// Behavior is one of INITIAL_ON, INITIAL_OFF, SAVED, FLASH,
	// FLASH_INITIAL_ON.
	Behavior      string   `toml:"behavior"`
	FlashDuration Duration `toml:"flash_duration"`

	// Screenshot is the capture tool invoked on a long press.
	Screenshot    string `toml:"screenshot"`
	ScreenshotDir string `toml:"screenshot_dir"`
}

// BatteryConfig controls the fuel gauge and thresholds.
type BatteryConfig struct {
	// Gauge selects the backend: "script" or "i2c".
	Gauge string `toml:"gauge"`

	// Script is the bq27441 shell library sourced by the script backend.
	Script string `toml:"script"`

	Bus     int `toml:"bus"`
	Address int `toml:"address"`

	// GPOUTPin is the periph.io GPIO name of the charge-changed interrupt.
	GPOUTPin string `toml:"gpout_pin"`

	LowThreshold      int      `toml:"low_threshold"`
	CriticalThreshold int      `toml:"critical_threshold"`
	LowDuration       Duration `toml:"low_duration"`
	CriticalDuration  Duration `toml:"critical_duration"`

	// PollInterval, when non-zero, re-reads the gauge periodically in
	// addition to the GPOUT interrupt.
	PollInterval Duration `toml:"poll_interval"`
}

// AudioConfig controls warning sounds.
type AudioConfig struct {
	// Backend is "beep", "command" or "none".
	Backend  string `toml:"backend"`
	SoundDir string `toml:"sound_dir"`

	// Command is the external player used by the command backend.
	Command string `toml:"command"`
}

// ShutdownConfig controls the critical-battery power off.
type ShutdownConfig struct {
	Grace Duration `toml:"grace"`

	// Command is run through sh -c after teardown.
	Command string `toml:"command"`
}
