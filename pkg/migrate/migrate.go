// Package migrate converts the legacy flat JSON config (UPPER_CASE keys,
// usually ~/.status_overlay_config) into the TOML configuration.
//
// The pipeline is: detect format -> parse legacy -> transform -> backup the
// existing TOML destination -> write. The legacy file is never modified; it
// keeps serving as the visibility state file.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"gitlab.com/tinyland/lab/status-overlay/pkg/config"
)

// Format is the detected format of a config file.
type Format int

const (
	FormatUnknown Format = iota
	FormatLegacyJSON
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatLegacyJSON:
		return "legacy-json"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// MigrationResult holds the outcome of a migration.
type MigrationResult struct {
	// Success indicates whether the migration completed without errors.
	Success bool

	// Warnings contains non-fatal issues: unknown keys, values that could
	// not be converted.
	Warnings []string

	// BackupPath is the backup of the TOML file that was overwritten, if
	// one existed.
	BackupPath string

	// ConfigPath is the TOML file written; empty when nothing was written.
	ConfigPath string

	// Changes lists every field that differs from the starting config.
	Changes []ConfigChange
}

// ConfigChange describes a single field change.
type ConfigChange struct {
	// Field is the dotted TOML path, e.g. "battery.low_threshold".
	Field string

	// LegacyKey is the key in the legacy file the value came from.
	LegacyKey string

	OldValue string
	NewValue string
}

// Migrate reads the legacy config at legacyPath and writes the equivalent
// TOML config to tomlPath. Settings already present in tomlPath are kept
// unless the legacy file overrides them.
func Migrate(legacyPath, tomlPath string) (*MigrationResult, error) {
	result := &MigrationResult{}

	format, err := DetectFormat(legacyPath)
	if err != nil {
		return nil, fmt.Errorf("format detection failed: %w", err)
	}
	if format == FormatTOML {
		result.Success = true
		result.Warnings = append(result.Warnings, "config is already TOML, no migration needed")
		return result, nil
	}

	legacy, err := parseLegacy(legacyPath)
	if err != nil {
		return nil, fmt.Errorf("legacy parsing failed: %w", err)
	}

	base := config.DefaultConfig()
	if _, err := os.Stat(tomlPath); err == nil {
		if _, err := toml.DecodeFile(tomlPath, base); err != nil {
			return nil, fmt.Errorf("reading existing config: %w", err)
		}
		backupPath, err := backup(tomlPath)
		if err != nil {
			return nil, fmt.Errorf("backup failed: %w", err)
		}
		result.BackupPath = backupPath
	}

	changes, warnings := transform(legacy, base)
	result.Changes = changes
	result.Warnings = append(result.Warnings, warnings...)

	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("migrated config is invalid: %w", err)
	}
	if err := writeConfig(tomlPath, base); err != nil {
		return nil, fmt.Errorf("writing config failed: %w", err)
	}

	result.ConfigPath = tomlPath
	result.Success = true
	return result, nil
}

// DetectFormat reports whether path holds a legacy JSON object or TOML.
func DetectFormat(path string) (Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("reading config: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return FormatUnknown, errors.New("config file is empty")
	}

	if strings.HasPrefix(content, "{") {
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err == nil {
			return FormatLegacyJSON, nil
		}
	}

	var probe map[string]any
	if _, err := toml.Decode(content, &probe); err == nil {
		return FormatTOML, nil
	}
	return FormatUnknown, errors.New("unable to determine config format")
}

// NeedsMigration reports whether path holds a legacy config. A missing file
// needs no migration.
func NeedsMigration(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	format, err := DetectFormat(path)
	if err != nil {
		return false, err
	}
	return format == FormatLegacyJSON, nil
}

// writeConfig encodes cfg as TOML to path through a temp file and rename.
func writeConfig(path string, cfg *config.Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".status-overlay-migrate-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := toml.NewEncoder(tmpFile).Encode(cfg); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
