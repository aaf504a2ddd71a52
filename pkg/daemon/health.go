// Package daemon provides the single-instance guard, the health file and the
// control socket of the overlay daemon.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tinyland/lab/status-overlay/pkg/overlay"
)

// HealthStatus is the daemon state published to the health file and
// returned by the STATUS command.
type HealthStatus struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	PID       int       `json:"pid" yaml:"pid"`
	Version   string    `json:"version" yaml:"version"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Uptime    string    `json:"uptime" yaml:"uptime"`

	overlay.Status `yaml:",inline"`
}

// NewHealthStatus stamps an overlay status with process details.
func NewHealthStatus(runID, version string, startedAt time.Time, st overlay.Status) *HealthStatus {
	now := time.Now()
	return &HealthStatus{
		RunID:     runID,
		PID:       os.Getpid(),
		Version:   version,
		StartedAt: startedAt,
		UpdatedAt: now,
		Uptime:    now.Sub(startedAt).Truncate(time.Second).String(),
		Status:    st,
	}
}

// WriteHealthFile writes status as indented JSON to path through a temp
// file and rename, so readers never see a partial file.
func WriteHealthFile(path string, status *HealthStatus) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create health directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp health file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename health file: %w", err)
	}
	return nil
}

// ReadHealthFile reads the health status JSON at path.
func ReadHealthFile(path string) (*HealthStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}

	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal health file: %w", err)
	}
	return &status, nil
}

// RemoveHealthFile deletes the health file, ignoring a missing one.
func RemoveHealthFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove health file: %w", err)
	}
	return nil
}
