package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrDisplayUnavailable is returned when the display resolution cannot be
// determined.
var ErrDisplayUnavailable = errors.New("display unavailable")

// Screen is a display resolution in pixels.
type Screen struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Screen) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

var resolutionPattern = regexp.MustCompile(`(\d{2,})x(\d{2,})`)

// ParseResolution extracts the first WIDTHxHEIGHT token from tvservice
// output.
func ParseResolution(output string) (Screen, error) {
	m := resolutionPattern.FindStringSubmatch(output)
	if m == nil {
		return Screen{}, fmt.Errorf("%w: no resolution in %q", ErrDisplayUnavailable, strings.TrimSpace(output))
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return Screen{Width: w, Height: h}, nil
}

// Resolution runs `tvservice -s -v <display>` and parses the result.
func Resolution(ctx context.Context, tvservice string, display int) (Screen, error) {
	if tvservice == "" {
		tvservice = "tvservice"
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, tvservice, "-s", "-v", strconv.Itoa(display)).Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		return Screen{}, fmt.Errorf("%w: %s: %v %s", ErrDisplayUnavailable, tvservice, err, stderr)
	}
	return ParseResolution(string(out))
}

// Screenshot starts the capture tool writing a PNG named after now into dir.
// It does not wait for the capture to finish.
func Screenshot(tool, dir string, now time.Time) (string, error) {
	if tool == "" {
		tool = "raspi2png"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(dir, SnapshotName(now))
	cmd := exec.Command(tool, "-c", "9", "-p", path)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", tool, err)
	}
	go func() { _ = cmd.Wait() }()
	return path, nil
}

// SnapshotName returns the file name used for a screenshot taken at t.
func SnapshotName(t time.Time) string {
	return "snapshot-" + t.Format("01022006-150405") + ".png"
}
