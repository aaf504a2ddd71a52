// Package render wraps the external collaborators that put pixels on the
// screen: the pngview sprite renderer, the tvservice resolution query and the
// raspi2png screenshot tool.
package render

import (
	"strconv"
	"time"
)

// Options enumerates the pngview flags the overlay uses. Nil X/Y leave the
// image centered, which is how notifications are drawn.
type Options struct {
	// Background is the 16 bit RGBA background colour (-b). 0 is transparent.
	Background uint16

	// Display is the Raspberry Pi display number (-d).
	Display int

	// Layer is the DispmanX layer (-l). Higher layers draw on top.
	Layer int

	// X and Y are pixel offsets from the top left corner (-x, -y).
	X, Y *int

	// Timeout makes pngview exit on its own after the duration (-t).
	Timeout time.Duration

	// NonInteractive stops pngview from reading the keyboard (-n).
	NonInteractive bool
}

// At returns a copy of o positioned at (x, y).
func (o Options) At(x, y int) Options {
	o.X = &x
	o.Y = &y
	return o
}

// Args builds the pngview argument list for image.
func (o Options) Args(image string) []string {
	args := []string{
		"-b", strconv.Itoa(int(o.Background)),
		"-d", strconv.Itoa(o.Display),
		"-l", strconv.Itoa(o.Layer),
	}
	if o.X != nil {
		args = append(args, "-x", strconv.Itoa(*o.X))
	}
	if o.Y != nil {
		args = append(args, "-y", strconv.Itoa(*o.Y))
	}
	if o.Timeout > 0 {
		args = append(args, "-t", strconv.FormatInt(o.Timeout.Milliseconds(), 10))
	}
	if o.NonInteractive {
		args = append(args, "-n")
	}
	return append(args, image)
}

// Process is a running sprite renderer.
type Process interface {
	// Pid returns the OS process id.
	Pid() int

	// Terminate kills the process. Terminating a process that already exited
	// is not an error.
	Terminate() error
}

// Renderer spawns one process per drawn image.
type Renderer interface {
	Spawn(image string, opts Options) (Process, error)
}
