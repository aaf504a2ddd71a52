package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const backupStamp = "20060102-150405"

// backup copies configPath to a timestamped sibling named
// config.toml.20060102-150405.bak and returns the backup path.
func backup(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("reading config for backup: %w", err)
	}
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(configPath), time.Now().Format(backupStamp))
	backupPath := filepath.Join(filepath.Dir(configPath), name)

	if err := writeAtomic(backupPath, data, ".backup-*.tmp"); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	return backupPath, nil
}

// Restore copies a backup back over configPath.
func Restore(backupPath, configPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}
	if err := writeAtomic(configPath, data, ".restore-*.tmp"); err != nil {
		return fmt.Errorf("restoring backup: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte, pattern string) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), pattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
