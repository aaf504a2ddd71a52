package audio

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandPlayer plays sounds with an external player such as omxplayer.
type CommandPlayer struct {
	Dir     string
	Command string
	// Args precede the file name. Nil uses the omxplayer arguments.
	Args []string
}

var omxplayerArgs = []string{"--no-keys", "-o", "alsa", "--vol", "-1000"}

// Play runs the player and waits for it to exit.
func (p *CommandPlayer) Play(ctx context.Context, name string) error {
	command := p.Command
	if command == "" {
		command = "omxplayer"
	}
	args := p.Args
	if args == nil {
		args = omxplayerArgs
	}
	args = append(append([]string(nil), args...), resolve(p.Dir, name))

	if err := exec.CommandContext(ctx, command, args...).Run(); err != nil {
		return fmt.Errorf("%s %s: %w", command, name, err)
	}
	return nil
}
