// Package follow drives the scroll engine from voice activity.
//
// The binding is one-directional: voice transitions issue Play/Pause on the
// engine, and nothing the engine does is fed back into the voice signal. A
// manual Pause while the speaker keeps talking is not overridden until the next
// voice transition; there is no lockout window after manual commands.
package follow

import (
	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/scroll"
	"github.com/lexiqai/prompter/internal/voice"
)

// Engine is the command surface the controller drives
type Engine interface {
	Play()
	Pause()
	State() scroll.State
	OnChange(fn func(scroll.State))
}

// Signal is the voice activity the controller follows
type Signal interface {
	Start()
	Stop()
	State() voice.State
	OnChange(fn func(voice.State))
}

// Controller composes a Signal and an Engine
type Controller struct {
	engine Engine
	signal Signal
	logger zerolog.Logger

	enabled   bool
	countdown bool
	closed    bool

	lastDetected bool
	lastDone     bool

	plays  int
	pauses int
}

// New wires the controller to both components. It starts disabled.
func New(engine Engine, signal Signal, logger zerolog.Logger) *Controller {
	c := &Controller{
		engine:   engine,
		signal:   signal,
		logger:   logger.With().Str("component", "follow").Logger(),
		lastDone: engine.State().Done,
	}
	signal.OnChange(c.onVoice)
	engine.OnChange(c.onEngine)
	return c
}

// SetEnabled turns follow mode on or off. Turning it off stops listening and
// leaves the engine exactly as it is.
func (c *Controller) SetEnabled(enabled bool) {
	if c.closed || c.enabled == enabled {
		return
	}
	c.enabled = enabled
	c.logger.Info().Bool("enabled", enabled).Msg("Voice follow toggled")
	c.sync()
}

// Enabled reports whether follow mode is on
func (c *Controller) Enabled() bool {
	return c.enabled
}

// Active reports whether follow mode is on and can actually hear anything
func (c *Controller) Active() bool {
	return c.enabled && c.signal.State().Supported
}

// SetCountdown marks a pre-roll phase during which no play is issued and the
// signal stays idle
func (c *Controller) SetCountdown(active bool) {
	if c.closed || c.countdown == active {
		return
	}
	c.countdown = active
	c.sync()
}

// Issued returns how many play and pause commands the controller has sent
func (c *Controller) Issued() (plays, pauses int) {
	return c.plays, c.pauses
}

// Close stops listening and detaches from further events
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.enabled = false
	c.signal.Stop()
	c.closed = true
}

// sync starts or stops the signal to match the listening precondition
func (c *Controller) sync() {
	want := c.enabled && !c.countdown && !c.engine.State().Done
	listening := c.signal.State().Listening

	switch {
	case want && !listening:
		c.signal.Start()
	case !want && listening:
		c.signal.Stop()
	}
}

func (c *Controller) onVoice(vs voice.State) {
	detected := vs.VoiceDetected
	if detected == c.lastDetected {
		return
	}
	c.lastDetected = detected

	if c.closed || !c.enabled || c.countdown {
		return
	}
	st := c.engine.State()
	if st.Done {
		return
	}

	switch {
	case detected && !st.Playing:
		c.plays++
		c.logger.Debug().Msg("Voice detected, resuming scroll")
		c.engine.Play()
	case !detected && st.Playing:
		c.pauses++
		c.logger.Debug().Msg("Silence, pausing scroll")
		c.engine.Pause()
	}
}

func (c *Controller) onEngine(st scroll.State) {
	if c.closed || st.Done == c.lastDone {
		return
	}
	c.lastDone = st.Done
	c.sync()
}
