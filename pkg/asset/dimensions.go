// Package asset locates, measures and prepares the PNG images the HUD is
// drawn from.
package asset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrMalformed is returned for images whose header is not a valid PNG.
var ErrMalformed = errors.New("malformed asset")

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Size is an image size in pixels.
type Size struct {
	Width  int
	Height int
}

// ReadSize reads the width and height from the first 24 bytes of a PNG
// stream. The pixel data is never decoded.
func ReadSize(r io.Reader) (Size, error) {
	var head [24]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Size{}, fmt.Errorf("%w: short header: %v", ErrMalformed, err)
	}
	if !bytes.Equal(head[:8], pngSignature) {
		return Size{}, fmt.Errorf("%w: bad signature", ErrMalformed)
	}
	if binary.BigEndian.Uint32(head[8:12]) != 13 || string(head[12:16]) != "IHDR" {
		return Size{}, fmt.Errorf("%w: first chunk is not IHDR", ErrMalformed)
	}
	w := binary.BigEndian.Uint32(head[16:20])
	h := binary.BigEndian.Uint32(head[20:24])
	if w == 0 || h == 0 || w > 1<<15 || h > 1<<15 {
		return Size{}, fmt.Errorf("%w: implausible size %dx%d", ErrMalformed, w, h)
	}
	return Size{Width: int(w), Height: int(h)}, nil
}

// Sizer measures image files, caching each path after the first read.
// Assets are not expected to change while the overlay runs.
type Sizer struct {
	mu    sync.Mutex
	sizes map[string]Size
}

// NewSizer returns an empty Sizer.
func NewSizer() *Sizer {
	return &Sizer{sizes: make(map[string]Size)}
}

// Size returns the dimensions of the PNG at path.
func (s *Sizer) Size(path string) (Size, error) {
	s.mu.Lock()
	sz, ok := s.sizes[path]
	s.mu.Unlock()
	if ok {
		return sz, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Size{}, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	sz, err = ReadSize(f)
	if err != nil {
		return Size{}, fmt.Errorf("%s: %w", path, err)
	}

	s.mu.Lock()
	s.sizes[path] = sz
	s.mu.Unlock()
	return sz, nil
}

// Forget drops every cached size. Called after assets are re-prepared.
func (s *Sizer) Forget() {
	s.mu.Lock()
	clear(s.sizes)
	s.mu.Unlock()
}
