package countdown

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const (
	toneRate     = beep.SampleRate(44100)
	tickFreq     = 660.0
	goFreq       = 990.0
	tickDuration = 80 * time.Millisecond
	goDuration   = 220 * time.Millisecond
)

// ToneBeeper plays short sine tones on the default audio device
type ToneBeeper struct{}

// NewToneBeeper opens the speaker. Callers fall back to a silent countdown
// when it fails.
func NewToneBeeper() (*ToneBeeper, error) {
	if err := speaker.Init(toneRate, toneRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("failed to init speaker: %w", err)
	}
	return &ToneBeeper{}, nil
}

// Tick plays the per-digit tone
func (b *ToneBeeper) Tick(int) {
	play(tickFreq, tickDuration)
}

// Go plays the higher tone that marks the start
func (b *ToneBeeper) Go() {
	play(goFreq, goDuration)
}

// Close releases the audio device
func (b *ToneBeeper) Close() {
	speaker.Clear()
	speaker.Close()
}

func play(freq float64, d time.Duration) {
	sine, err := generators.SineTone(toneRate, freq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(toneRate.N(d), sine))
}
