// Package audio plays the warning sounds.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Player plays a sound file by name, blocking until playback finishes or
// ctx is done.
type Player interface {
	Play(ctx context.Context, name string) error
}

// Nop is a Player that plays nothing.
type Nop struct{}

func (Nop) Play(context.Context, string) error { return nil }

// Go plays name on its own goroutine, logging failures. Used where the
// caller must not wait for the sound.
func Go(ctx context.Context, p Player, name string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		if err := p.Play(ctx, name); err != nil {
			logger.Warn("sound failed", "sound", name, "err", err)
		}
	}()
}

// New returns the player for backend: "beep", "command" or "none".
func New(backend, dir, command string, logger *slog.Logger) (Player, error) {
	switch backend {
	case "beep":
		return NewBeepPlayer(dir, logger), nil
	case "command":
		return &CommandPlayer{Dir: dir, Command: command}, nil
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
