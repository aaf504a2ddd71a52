package gesture

import (
	"fmt"
	"strings"
)

// Mode selects what a short press does and how the HUD starts.
type Mode string

const (
	InitialOn      Mode = "INITIAL_ON"
	InitialOff     Mode = "INITIAL_OFF"
	Saved          Mode = "SAVED"
	Flash          Mode = "FLASH"
	FlashInitialOn Mode = "FLASH_INITIAL_ON"
)

// Modes lists every valid mode.
var Modes = []Mode{InitialOn, InitialOff, Saved, Flash, FlashInitialOn}

// ParseMode parses a mode name, ignoring case and surrounding space.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Modes {
		if m == v {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown button behavior %q", s)
}

// Flashes reports whether a short press flashes the HUD rather than
// toggling it.
func (m Mode) Flashes() bool {
	return m == Flash || m == FlashInitialOn
}

// FlashOnStart reports whether the HUD is flashed once at startup.
func (m Mode) FlashOnStart() bool {
	return m == FlashInitialOn
}

// InitialVisibility returns whether the HUD starts visible, given the
// visibility persisted by the previous run.
func (m Mode) InitialVisibility(saved bool) bool {
	switch m {
	case InitialOn:
		return true
	case Saved:
		return saved
	default:
		return false
	}
}
