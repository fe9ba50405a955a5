package follow

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/prompter/internal/clock"
	"github.com/lexiqai/prompter/internal/scroll"
	"github.com/lexiqai/prompter/internal/voice"
)

type stubSource struct {
	supported bool
	starts    int
	stops     int
	ev        voice.Events
}

func (s *stubSource) Supported() bool { return s.supported }
func (s *stubSource) Start(ev voice.Events) error {
	s.starts++
	s.ev = ev
	return nil
}
func (s *stubSource) Stop() { s.stops++ }

type harness struct {
	engine *scroll.Engine
	frames *clock.ManualFrames
	signal *voice.Signal
	source *stubSource
	clock  *clock.Fake
	ctrl   *Controller
}

func newHarness(supported bool) *harness {
	h := &harness{
		frames: &clock.ManualFrames{},
		source: &stubSource{supported: supported},
		clock:  clock.NewFake(time.Unix(0, 0)),
	}
	h.engine = scroll.New(h.frames, 1)
	h.engine.SetGeometry(scroll.Geometry{ContentHeight: 1000, ViewportHeight: 200})
	h.signal = voice.NewSignal(h.source, voice.Options{Clock: h.clock})
	h.ctrl = New(h.engine, h.signal, zerolog.Nop())
	return h
}

func (h *harness) speak() { h.source.ev.Result() }

func (h *harness) silence() { h.clock.Advance(voice.DefaultSilenceDelay) }

func TestController_EnableStartsListening(t *testing.T) {
	h := newHarness(true)
	assert.False(t, h.signal.State().Listening)

	h.ctrl.SetEnabled(true)
	assert.True(t, h.signal.State().Listening)
	assert.True(t, h.ctrl.Active())
	assert.Equal(t, 1, h.source.starts)
}

func TestController_VoiceStartsExactlyOnePlay(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)

	h.speak()
	assert.True(t, h.engine.State().Playing)
	h.speak()
	h.speak()

	plays, pauses := h.ctrl.Issued()
	assert.Equal(t, 1, plays)
	assert.Zero(t, pauses)
}

func TestController_SilencePauses(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)

	h.speak()
	require.True(t, h.engine.State().Playing)

	h.silence()
	assert.False(t, h.engine.State().Playing)
	_, pauses := h.ctrl.Issued()
	assert.Equal(t, 1, pauses)
}

func TestController_ManualPauseNotOverriddenUntilNextTransition(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)

	h.speak()
	require.True(t, h.engine.State().Playing)

	h.engine.Pause() // user
	h.speak()        // still talking: no transition, no override
	assert.False(t, h.engine.State().Playing)

	h.silence() // transition to false while already paused: nothing to do
	plays, pauses := h.ctrl.Issued()
	assert.Equal(t, 1, plays)
	assert.Zero(t, pauses)

	h.speak() // next transition resumes
	assert.True(t, h.engine.State().Playing)
}

func TestController_ManualPlayHonouredDuringSilence(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)

	h.engine.Play() // user, nobody speaking
	h.clock.Advance(10 * time.Second)
	assert.True(t, h.engine.State().Playing, "no voice transition, no pause")
}

func TestController_DisableLeavesEngineAlone(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)
	h.speak()
	require.True(t, h.engine.State().Playing)

	h.ctrl.SetEnabled(false)
	assert.False(t, h.signal.State().Listening)
	assert.False(t, h.signal.State().VoiceDetected)
	assert.True(t, h.engine.State().Playing, "disabling must not force a pause")
	_, pauses := h.ctrl.Issued()
	assert.Zero(t, pauses)
}

func TestController_CountdownDefersListening(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetCountdown(true)
	h.ctrl.SetEnabled(true)
	assert.False(t, h.signal.State().Listening)

	h.ctrl.SetCountdown(false)
	assert.True(t, h.signal.State().Listening)

	h.ctrl.SetCountdown(true)
	assert.False(t, h.signal.State().Listening)
	assert.False(t, h.engine.State().Playing)
}

func TestController_NoPlayWhenDone(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)
	h.speak()
	h.engine.SetSpeed(3)
	h.engine.OnTick(60)
	require.True(t, h.engine.State().Done)

	assert.False(t, h.signal.State().Listening, "listening stops at completion")

	// a late event from the old activation must not restart playback
	h.speak()
	assert.False(t, h.engine.State().Playing)

	h.engine.Reset()
	assert.True(t, h.signal.State().Listening, "reset re-arms follow mode")
	h.speak()
	assert.True(t, h.engine.State().Playing)
}

func TestController_UnsupportedBehavesDisabled(t *testing.T) {
	h := newHarness(false)
	h.ctrl.SetEnabled(true)

	assert.True(t, h.ctrl.Enabled())
	assert.False(t, h.ctrl.Active())
	assert.False(t, h.signal.State().Listening)
	assert.Zero(t, h.source.starts)
}

func TestController_EngineCommandsNeverReachSignal(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)
	before := h.signal.State()

	h.engine.Play()
	h.engine.Pause()
	h.engine.Toggle()
	h.engine.Faster()

	assert.Equal(t, before, h.signal.State())
	assert.Equal(t, 1, h.source.starts)
	assert.Zero(t, h.source.stops)
}

func TestController_CloseStopsListening(t *testing.T) {
	h := newHarness(true)
	h.ctrl.SetEnabled(true)
	h.speak()
	h.ctrl.Close()

	assert.False(t, h.signal.State().Listening)
	h.ctrl.SetEnabled(true)
	assert.False(t, h.signal.State().Listening)
	assert.True(t, h.engine.State().Playing)
}
