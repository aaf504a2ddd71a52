package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/status-overlay/pkg/config"
	"gitlab.com/tinyland/lab/status-overlay/pkg/daemon"
)

// printStatus asks the daemon for its status over the socket, falling back
// to the health file when the socket does not answer.
func printStatus(w io.Writer, cfg *config.Config, format string) error {
	hs, err := fetchStatus(cfg)
	if err != nil {
		return err
	}
	return formatStatus(w, hs, format, cfg.Battery.LowThreshold, cfg.Battery.CriticalThreshold)
}

func fetchStatus(cfg *config.Config) (*daemon.HealthStatus, error) {
	resp, ipcErr := daemon.NewIPCClient(cfg.General.Socket).SendCommand(daemon.CmdStatus)
	if ipcErr == nil {
		var hs daemon.HealthStatus
		if err := json.Unmarshal([]byte(resp), &hs); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		return &hs, nil
	}
	hs, err := daemon.ReadHealthFile(cfg.General.HealthFile)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable: %w", errors.Join(ipcErr, err))
	}
	return hs, nil
}

func formatStatus(w io.Writer, hs *daemon.HealthStatus, format string, low, critical int) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(hs, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(hs); err != nil {
			return err
		}
		return enc.Close()
	case "pretty", "":
		_, err := fmt.Fprintln(w, renderPretty(hs, low, critical))
		return err
	default:
		return fmt.Errorf("unknown format %q (pretty, json, yaml)", format)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(14)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6B7280")).
			Padding(0, 1)
)

func chargeColor(charge, low, critical int) lipgloss.Color {
	switch {
	case charge <= critical:
		return lipgloss.Color("#EF4444")
	case charge <= low:
		return lipgloss.Color("#F59E0B")
	default:
		return lipgloss.Color("#10B981")
	}
}

func renderPretty(hs *daemon.HealthStatus, low, critical int) string {
	charge := fmt.Sprintf("%d%%", hs.StateOfCharge)
	if hs.Charging {
		charge += " (charging)"
	}
	visible := "hidden"
	if hs.Visible {
		visible = "shown"
	}

	rows := [][2]string{
		{"battery", lipgloss.NewStyle().Bold(true).Foreground(chargeColor(hs.StateOfCharge, low, critical)).Render(charge)},
		{"hud", visible},
		{"mode", hs.Mode},
		{"screen", fmt.Sprintf("%dx%d", hs.Screen.Width, hs.Screen.Height)},
		{"sprites", fmt.Sprint(hs.Sprites)},
		{"notifications", fmt.Sprint(hs.Notifications)},
		{"pid", fmt.Sprint(hs.PID)},
		{"uptime", hs.Uptime},
	}
	if hs.ShuttingDown {
		rows = append(rows, [2]string{"state", lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Render("shutting down")})
	}

	lines := []string{titleStyle.Render("status-overlay " + hs.Version)}
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+r[1])
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
