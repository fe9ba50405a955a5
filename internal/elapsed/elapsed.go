// Package elapsed measures how long ago the script was first started.
package elapsed

import (
	"fmt"
	"time"

	"github.com/lexiqai/prompter/internal/clock"
)

// Tracker reports wall-clock time since the first play. The value runs while
// playing and holds while paused; a resume jumps to the full wall-clock span,
// paused intervals included.
type Tracker struct {
	clock   clock.Clock
	start   time.Time
	started bool
	frozen  time.Duration
	playing bool
}

// New creates a stopped tracker at zero
func New(c clock.Clock) *Tracker {
	if c == nil {
		c = clock.Real()
	}
	return &Tracker{clock: c}
}

// Observe records the engine's playing flag. Repeated values are ignored.
func (t *Tracker) Observe(playing bool) {
	if playing == t.playing {
		return
	}
	now := t.clock.Now()
	if playing && !t.started {
		t.start = now
		t.started = true
	}
	if !playing {
		t.frozen = now.Sub(t.start)
	}
	t.playing = playing
}

// Elapsed returns the live value while playing and the frozen one otherwise
func (t *Tracker) Elapsed() time.Duration {
	if t.playing {
		return t.clock.Now().Sub(t.start)
	}
	return t.frozen
}

// Reset returns to zero. If playing, the start moves to now; otherwise the
// next play sets it.
func (t *Tracker) Reset() {
	t.frozen = 0
	t.started = t.playing
	t.start = t.clock.Now()
}

// Format renders d as whole minutes and seconds, e.g. "0m 5s" or "1m 5s"
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
