package render

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Pngview spawns the pngview DispmanX renderer.
type Pngview struct {
	// Path is the pngview binary. Empty means "pngview" on $PATH.
	Path string

	Logger *slog.Logger
}

// NewPngview returns a Pngview renderer for the binary at path.
func NewPngview(path string, logger *slog.Logger) *Pngview {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pngview{Path: path, Logger: logger}
}

// Spawn starts pngview for image. The child runs in its own process group so
// Terminate can take down anything it forked.
func (p *Pngview) Spawn(image string, opts Options) (Process, error) {
	bin := p.Path
	if bin == "" {
		bin = "pngview"
	}

	cmd := exec.Command(bin, opts.Args(image)...)
	cmd.SysProcAttr = childAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s %s: %w", bin, image, err)
	}

	proc := &pngviewProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		// Reap so terminated sprites never linger as zombies.
		_ = cmd.Wait()
		close(proc.done)
	}()

	p.Logger.Debug("spawned renderer", "image", image, "layer", opts.Layer, "pid", cmd.Process.Pid)
	return proc, nil
}

type pngviewProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *pngviewProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Terminate sends SIGKILL to the renderer's process group.
func (p *pngviewProcess) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	// Fall back to the single process if the group is gone.
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill renderer %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}
