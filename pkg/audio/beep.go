package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// BeepPlayer decodes MP3s in process and plays them on the default audio
// device.
type BeepPlayer struct {
	Dir string
	// Gain in decibels applied to every sound.
	Gain float64

	logger *slog.Logger
	once   sync.Once
	err    error
}

// NewBeepPlayer returns a player reading sounds from dir at -10 dB.
func NewBeepPlayer(dir string, logger *slog.Logger) *BeepPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeepPlayer{Dir: dir, Gain: -10, logger: logger}
}

func (p *BeepPlayer) openSpeaker() error {
	p.once.Do(func() {
		p.err = speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond))
		if p.err != nil {
			p.logger.Warn("audio device unavailable", "err", p.err)
		}
	})
	return p.err
}

// Play decodes name and blocks until it has been played.
func (p *BeepPlayer) Play(ctx context.Context, name string) error {
	f, err := os.Open(resolve(p.Dir, name))
	if err != nil {
		return fmt.Errorf("open sound: %w", err)
	}
	stream, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", name, err)
	}
	defer stream.Close()

	if err := p.openSpeaker(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	var s beep.Streamer = stream
	if format.SampleRate != sampleRate {
		s = beep.Resample(4, format.SampleRate, sampleRate, s)
	}
	s = &effects.Volume{Streamer: s, Base: 10, Volume: p.Gain / 20}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() { close(done) }))}
	speaker.Play(ctrl)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
		return ctx.Err()
	}
}
