package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// UnitDir is where system units are installed.
var UnitDir = "/etc/systemd/system"

// systemctl runs systemctl with args. Replaced in tests.
var systemctl = func(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %v: %w: %s", args, err, out)
	}
	return nil
}

// SystemdUnitPath returns the path of the installed unit file.
func SystemdUnitPath() string {
	return filepath.Join(UnitDir, ServiceName)
}

// InstallService writes the unit file, reloads systemd and enables the
// service so it starts now and at boot.
func InstallService(cfg ServiceConfig) error {
	unitPath := SystemdUnitPath()

	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return fmt.Errorf("creating systemd directory: %w", err)
	}
	if err := os.WriteFile(unitPath, []byte(GenerateSystemdUnit(cfg)), 0o644); err != nil {
		return fmt.Errorf("writing unit file: %w", err)
	}
	if err := systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("reloading systemd: %w", err)
	}
	if err := systemctl("enable", "--now", ServiceName); err != nil {
		return fmt.Errorf("enabling service: %w", err)
	}
	return nil
}

// UninstallService stops, disables and removes the service.
func UninstallService() error {
	// Stop and disable fail when the unit is not loaded.
	_ = systemctl("stop", ServiceName)
	_ = systemctl("disable", ServiceName)

	if err := os.Remove(SystemdUnitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}
	_ = systemctl("daemon-reload")
	return nil
}
