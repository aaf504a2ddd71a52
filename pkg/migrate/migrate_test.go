package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	"gitlab.com/tinyland/lab/status-overlay/pkg/config"
)

// ---------- helpers ----------

const mgLegacySample = `{
  "CONFIG_FILE_PATH": "~/.status_overlay_config",
  "IMAGE_PATH": "/opt/status-overlay/images/",
  "SOUND_PATH": "/opt/status-overlay/sounds/",
  "PNGVIEW_PATH": "/usr/local/bin/pngview",
  "SCREENSHOT_PATH": "/data/screenshots",
  "LAYER_DEFAULT": 20000,
  "DISPLAY_ID": 2,
  "IS_VISIBLE": false,
  "POWER_SWITCH_BEHAVIOR": "flash",
  "POWER_SWITCH_FLASH_DURATION": 4,
  "FUEL_GAUGE_SCRIPT_PATH": "/opt/status-overlay/lib/bq27441_lib/",
  "FUEL_GAUGE_I2C_BUS_ID": 0,
  "FUEL_GAUGE_I2C_DEVICE_ID": 85,
  "BATTERY_GPOUT_PIN": 31,
  "BATTERY_POWER_PIN": 37,
  "LOW_BATTERY_NOTIFICATION_DURATION": 7,
  "CRITICAL_BATTERY_NOTIFICATION_DURATION": 12.5,
  "LOW_BATTERY_THRESHOLD": 15,
  "CRITICAL_BATTERY_THRESHOLD": 3
}`

func mgWriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file %s: %v", path, err)
	}
	return path
}

func loadTOML(path string, cfg *config.Config) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func mgAssertChange(t *testing.T, changes []ConfigChange, field, newValue string) {
	t.Helper()
	for _, c := range changes {
		if c.Field == field && c.NewValue == newValue {
			return
		}
	}
	t.Errorf("no change %s -> %q in %+v", field, newValue, changes)
}

// ---------- Format Detection ----------

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    Format
		wantErr bool
	}{
		{"legacy", mgLegacySample, FormatLegacyJSON, false},
		{"toml", "[battery]\nlow_threshold = 12\n", FormatTOML, false},
		{"empty", "", FormatUnknown, true},
		{"whitespace", "  \n\t\n", FormatUnknown, true},
		{"garbage", "{{{not valid!!!", FormatUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := mgWriteFile(t, dir, tt.name+".cfg", tt.content)
			got, err := DetectFormat(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("format = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFormat_MissingFile(t *testing.T) {
	if _, err := DetectFormat(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNeedsMigration(t *testing.T) {
	dir := t.TempDir()
	legacy := mgWriteFile(t, dir, "legacy", mgLegacySample)
	tomlPath := mgWriteFile(t, dir, "config.toml", "[general]\nlog_level = \"debug\"\n")

	if need, err := NeedsMigration(legacy); err != nil || !need {
		t.Errorf("legacy: need=%v err=%v", need, err)
	}
	if need, err := NeedsMigration(tomlPath); err != nil || need {
		t.Errorf("toml: need=%v err=%v", need, err)
	}
	if need, err := NeedsMigration(filepath.Join(dir, "missing")); err != nil || need {
		t.Errorf("missing: need=%v err=%v", need, err)
	}
}

// ---------- Transformation ----------

func TestTransform_AllKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	legacy := LegacyConfig{
		"LAYER_DEFAULT":                          20000.0,
		"LAYER_NUMBER":                           20011.0,
		"POWER_SWITCH_BEHAVIOR":                  "initial_off",
		"POWER_SWITCH_FLASH_DURATION":            2.0,
		"BATTERY_POWER_PIN":                      36.0,
		"BATTERY_GPOUT_PIN":                      "31",
		"FUEL_GAUGE_SCRIPT_PATH":                 "lib/bq27441_lib/",
		"LOW_BATTERY_THRESHOLD":                  20.0,
		"CRITICAL_BATTERY_NOTIFICATION_DURATION": 0.5,
	}
	changes, warnings := transform(legacy, cfg)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if cfg.Display.LayerBackdrop != 19990 || cfg.Display.LayerBattery != 20005 ||
		cfg.Display.LayerNumber != 20011 || cfg.Display.LayerNotification != 20015 {
		t.Errorf("layers = %d/%d/%d/%d", cfg.Display.LayerBackdrop, cfg.Display.LayerBattery,
			cfg.Display.LayerNumber, cfg.Display.LayerNotification)
	}
	if cfg.Button.Behavior != "INITIAL_OFF" {
		t.Errorf("behavior = %q", cfg.Button.Behavior)
	}
	if cfg.Button.FlashDuration.Duration != 2*time.Second {
		t.Errorf("flash duration = %v", cfg.Button.FlashDuration)
	}
	if cfg.Button.Pin != "GPIO16" {
		t.Errorf("button pin = %q", cfg.Button.Pin)
	}
	if cfg.Battery.GPOUTPin != "GPIO6" {
		t.Errorf("gpout pin = %q", cfg.Battery.GPOUTPin)
	}
	if cfg.Battery.Script != filepath.Join("lib", "bq27441_lib", "bq27441_lib.sh") {
		t.Errorf("script = %q", cfg.Battery.Script)
	}
	if cfg.Battery.CriticalDuration.Duration != 500*time.Millisecond {
		t.Errorf("critical duration = %v", cfg.Battery.CriticalDuration)
	}

	mgAssertChange(t, changes, "battery.low_threshold", "20")
	mgAssertChange(t, changes, "display.layer_number", "20011")
	for _, c := range changes {
		if c.Field == "button.pin" {
			t.Errorf("unchanged pin reported as change: %+v", c)
		}
	}
}

func TestTransform_Warnings(t *testing.T) {
	cfg := config.DefaultConfig()
	legacy := LegacyConfig{
		"IS_VISIBLE":            true,
		"LIB_PATH":              "lib/",
		"WAT":                   1.0,
		"DISPLAY_ID":            "two",
		"BATTERY_POWER_PIN":     1.0,
		"LOW_BATTERY_THRESHOLD": 12.7,
		"POWER_SWITCH_BEHAVIOR": 3.0,
	}
	_, warnings := transform(legacy, cfg)

	joined := strings.Join(warnings, "\n")
	for _, want := range []string{"WAT", "DISPLAY_ID", "board pin 1", "truncated", "POWER_SWITCH_BEHAVIOR"} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "IS_VISIBLE") || strings.Contains(joined, "LIB_PATH") {
		t.Errorf("ignored keys reported:\n%s", joined)
	}
	if cfg.Battery.LowThreshold != 12 {
		t.Errorf("low threshold = %d, want 12", cfg.Battery.LowThreshold)
	}
	if cfg.Display.ID != 0 {
		t.Errorf("display id changed to %d", cfg.Display.ID)
	}
}

func TestBoardPin(t *testing.T) {
	tests := []struct {
		board int
		want  string
		ok    bool
	}{
		{29, "GPIO5", true},
		{36, "GPIO16", true},
		{3, "GPIO2", true},
		{1, "", false},
		{6, "", false},
		{41, "", false},
	}
	for _, tt := range tests {
		got, ok := BoardPin(tt.board)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BoardPin(%d) = %q, %v", tt.board, got, ok)
		}
	}
}

// ---------- Backup ----------

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	path := mgWriteFile(t, dir, "config.toml", "original")

	bak, err := backup(path)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(bak), "config.toml.") || !strings.HasSuffix(bak, ".bak") {
		t.Errorf("backup name = %s", bak)
	}

	os.WriteFile(path, []byte("clobbered"), 0o644)
	if err := Restore(bak, path); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "original" {
		t.Errorf("restored content = %q", data)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestBackup_MissingFile(t *testing.T) {
	if _, err := backup(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error")
	}
}

// ---------- Full Pipeline ----------

func TestMigrate_FullPipeline(t *testing.T) {
	dir := t.TempDir()
	legacy := mgWriteFile(t, dir, ".status_overlay_config", mgLegacySample)
	dst := filepath.Join(dir, "status-overlay", "config.toml")

	result, err := Migrate(legacy, dst)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.BackupPath != "" {
		t.Errorf("unexpected backup %s", result.BackupPath)
	}
	if result.ConfigPath != dst {
		t.Errorf("config path = %q, want %q", result.ConfigPath, dst)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings: %v", result.Warnings)
	}

	cfg := config.DefaultConfig()
	if err := loadTOML(dst, cfg); err != nil {
		t.Fatalf("reading migrated config: %v", err)
	}
	if cfg.Display.ID != 2 || cfg.Display.Pngview != "/usr/local/bin/pngview" {
		t.Errorf("display = %+v", cfg.Display)
	}
	if cfg.Display.LayerNotification != 20015 {
		t.Errorf("notification layer = %d", cfg.Display.LayerNotification)
	}
	if cfg.Button.Behavior != "FLASH" || cfg.Button.Pin != "GPIO26" {
		t.Errorf("button = %+v", cfg.Button)
	}
	if cfg.Battery.Bus != 0 || cfg.Battery.Address != 0x55 || cfg.Battery.GPOUTPin != "GPIO6" {
		t.Errorf("battery = %+v", cfg.Battery)
	}
	if cfg.Battery.LowThreshold != 15 || cfg.Battery.CriticalThreshold != 3 {
		t.Errorf("thresholds = %d/%d", cfg.Battery.LowThreshold, cfg.Battery.CriticalThreshold)
	}
	if cfg.Battery.CriticalDuration.Duration != 12500*time.Millisecond {
		t.Errorf("critical duration = %v", cfg.Battery.CriticalDuration)
	}

	// The legacy file stays untouched; it is still the state file.
	data, _ := os.ReadFile(legacy)
	if string(data) != mgLegacySample {
		t.Error("legacy file modified")
	}
}

func TestMigrate_BacksUpExistingTOML(t *testing.T) {
	dir := t.TempDir()
	legacy := mgWriteFile(t, dir, "legacy", `{"LOW_BATTERY_THRESHOLD": 30}`)
	dst := mgWriteFile(t, dir, "config.toml", "[audio]\nbackend = \"none\"\n")

	result, err := Migrate(legacy, dst)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.BackupPath == "" {
		t.Fatal("expected a backup of the existing config")
	}
	if _, err := os.Stat(result.BackupPath); err != nil {
		t.Errorf("backup missing: %v", err)
	}

	cfg := config.DefaultConfig()
	if err := loadTOML(dst, cfg); err != nil {
		t.Fatalf("reading migrated config: %v", err)
	}
	if cfg.Audio.Backend != "none" {
		t.Errorf("existing setting lost: audio.backend = %q", cfg.Audio.Backend)
	}
	if cfg.Battery.LowThreshold != 30 {
		t.Errorf("low threshold = %d", cfg.Battery.LowThreshold)
	}
}

func TestMigrate_AlreadyTOML(t *testing.T) {
	dir := t.TempDir()
	src := mgWriteFile(t, dir, "config.toml", "[battery]\nlow_threshold = 12\n")

	result, err := Migrate(src, filepath.Join(dir, "out.toml"))
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !result.Success || len(result.Warnings) != 1 {
		t.Errorf("result = %+v", result)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.toml")); !os.IsNotExist(err) {
		t.Error("output written for a TOML source")
	}
}

func TestMigrate_InvalidResult(t *testing.T) {
	dir := t.TempDir()
	legacy := mgWriteFile(t, dir, "legacy", `{"LOW_BATTERY_THRESHOLD": 5, "CRITICAL_BATTERY_THRESHOLD": 50}`)
	dst := filepath.Join(dir, "config.toml")

	if _, err := Migrate(legacy, dst); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("invalid config written")
	}
}

func TestMigrate_MissingSource(t *testing.T) {
	if _, err := Migrate(filepath.Join(t.TempDir(), "nope"), "out.toml"); err == nil {
		t.Fatal("expected error")
	}
}
