// Package platform installs the overlay daemon as a systemd service. The
// unit is system-level: GPIO access and power-off both need root.
package platform

import (
	"fmt"
	"strings"
)

// ServiceName is the systemd unit name.
const ServiceName = "status-overlay.service"

// ServiceConfig holds the values substituted into the unit file.
type ServiceConfig struct {
	BinaryPath string // absolute path to the daemon binary
	ConfigPath string // path to config file; empty uses the search path
	LogPath    string // file appended with stdout and stderr; empty uses the journal
	User       string // account the daemon runs as; empty runs as root
}

// GenerateSystemdUnit renders the unit file for cfg.
func GenerateSystemdUnit(cfg ServiceConfig) string {
	exec := cfg.BinaryPath
	if cfg.ConfigPath != "" {
		exec += " -config " + cfg.ConfigPath
	}

	var b strings.Builder
	b.WriteString(`[Unit]
Description=status-overlay battery HUD
After=local-fs.target sound.target

[Service]
Type=simple
`)
	fmt.Fprintf(&b, "ExecStart=%s\n", exec)
	if cfg.User != "" {
		fmt.Fprintf(&b, "User=%s\n", cfg.User)
	}
	b.WriteString("Restart=on-failure\nRestartSec=5\nKillSignal=SIGTERM\nTimeoutStopSec=30\n")
	if cfg.LogPath != "" {
		fmt.Fprintf(&b, "StandardOutput=append:%s\nStandardError=append:%s\n", cfg.LogPath, cfg.LogPath)
	}
	b.WriteString(`Environment=PATH=/opt/vc/bin:/usr/local/bin:/usr/bin:/bin

[Install]
WantedBy=multi-user.target
`)
	return b.String()
}
