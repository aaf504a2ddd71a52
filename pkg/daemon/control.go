package daemon

import (
	"context"
	"encoding/json"
	"fmt"

	"gitlab.com/tinyland/lab/status-overlay/pkg/overlay"
	"gitlab.com/tinyland/lab/status-overlay/pkg/shutdown"
)

// Control maps socket commands onto a running overlay.
type Control struct {
	ctx    context.Context
	ov     *overlay.Overlay
	health func() *HealthStatus
}

// NewControl returns a handler for ov. health builds the STATUS response.
func NewControl(ctx context.Context, ov *overlay.Overlay, health func() *HealthStatus) *Control {
	return &Control{ctx: ctx, ov: ov, health: health}
}

// HandleCommand implements IPCHandler.
func (c *Control) HandleCommand(cmd string, args []string) (string, error) {
	switch cmd {
	case CmdStatus:
		data, err := json.Marshal(c.health())
		if err != nil {
			return "", fmt.Errorf("marshal status: %w", err)
		}
		return string(data), nil

	case CmdToggle:
		c.ov.Toggle()
	case CmdShow:
		c.ov.SetVisibility(true)
	case CmdHide:
		c.ov.SetVisibility(false)

	case CmdFlash:
		return OK(map[string]any{"flashed": c.ov.Flash()}), nil

	case CmdRedraw:
		if err := c.ov.ResolveScreen(c.ctx); err != nil {
			return "", err
		}
		if err := c.ov.Refresh(c.ctx); err != nil {
			return "", err
		}

	case CmdShutdown:
		return OK(map[string]any{"accepted": c.ov.Shutdown().Trigger(shutdown.Requested)}), nil
	case CmdQuit:
		return OK(map[string]any{"accepted": c.ov.Shutdown().Trigger(shutdown.Quit)}), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	return OK(map[string]any{"visible": c.ov.Visible()}), nil
}
