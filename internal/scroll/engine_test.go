package scroll

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/prompter/internal/clock"
)

func newTestEngine(speed float64) (*Engine, *clock.ManualFrames) {
	frames := &clock.ManualFrames{}
	e := New(frames, speed)
	e.SetGeometry(Geometry{ContentHeight: 1000, ViewportHeight: 200})
	return e, frames
}

func TestEngine_SpeedClamping(t *testing.T) {
	e, _ := newTestEngine(1)

	for i := 0; i < 20; i++ {
		e.Faster()
		assert.LessOrEqual(t, e.State().Speed, MaxSpeed)
	}
	assert.Equal(t, MaxSpeed, e.State().Speed)

	for i := 0; i < 20; i++ {
		e.Slower()
		assert.GreaterOrEqual(t, e.State().Speed, MinSpeed)
	}
	assert.Equal(t, MinSpeed, e.State().Speed)

	e.SetSpeed(10)
	assert.Equal(t, 3.0, e.State().Speed)
	e.SetSpeed(-5)
	assert.Equal(t, 0.5, e.State().Speed)
	e.SetSpeed(math.NaN())
	assert.Equal(t, 0.5, e.State().Speed)

	e.SetSpeed(1)
	e.Faster()
	assert.Equal(t, 1.25, e.State().Speed)

	assert.Equal(t, 3.0, New(nil, 42).State().Speed)
}

func TestEngine_OnTickAdvancesByBaseRate(t *testing.T) {
	e, _ := newTestEngine(1)

	e.OnTick(1)
	assert.Zero(t, e.State().Offset, "ticks are ignored while paused")

	e.Play()
	e.OnTick(1)
	assert.InDelta(t, 40.0, e.State().Offset, 1e-9)
	assert.InDelta(t, 0.05, e.State().Position, 1e-9)

	e.SetSpeed(2)
	e.OnTick(0.5)
	assert.InDelta(t, 80.0, e.State().Offset, 1e-9)
}

func TestEngine_MonotonicAutoplay(t *testing.T) {
	e, _ := newTestEngine(1.5)
	e.Play()

	last := e.State().Position
	for i := 0; i < 500 && e.State().Playing; i++ {
		e.OnTick(0.016)
		p := e.State().Position
		require.GreaterOrEqual(t, p, last)
		last = p
	}

	e.Reset()
	e.Play()
	e.OnTick(-3)
	assert.Zero(t, e.State().Position, "negative deltas never scroll backwards")
}

func TestEngine_CompletionIsTerminal(t *testing.T) {
	e, frames := newTestEngine(3)
	e.Play()
	e.OnTick(10)

	st := e.State()
	assert.True(t, st.Done)
	assert.False(t, st.Playing)
	assert.Equal(t, 1.0, st.Position)
	assert.False(t, frames.Pending(), "no frames after completion")

	e.Play()
	assert.False(t, e.State().Playing)
	e.Toggle()
	assert.False(t, e.State().Playing)

	e.SeekTo(100)
	assert.True(t, e.State().Done, "seeking back does not clear done")
}

func TestEngine_ResetRoundTrip(t *testing.T) {
	e, frames := newTestEngine(3)
	e.Play()
	e.OnTick(10)
	require.True(t, e.State().Done)

	e.Reset()
	st := e.State()
	assert.Zero(t, st.Position)
	assert.Zero(t, st.Offset)
	assert.False(t, st.Done)
	assert.False(t, st.Playing)

	e.Play()
	assert.True(t, e.State().Playing)
	assert.True(t, frames.Pending())
	e.OnTick(1)
	assert.Greater(t, e.State().Position, 0.0)
}

func TestEngine_FrameChain(t *testing.T) {
	e, frames := newTestEngine(1)
	start := time.Unix(100, 0)

	e.Play()
	require.True(t, frames.Pending())

	// first frame after play contributes zero time
	require.True(t, frames.Fire(start))
	assert.Zero(t, e.State().Offset)
	require.True(t, frames.Pending(), "chain renews while playing")

	require.True(t, frames.Fire(start.Add(500*time.Millisecond)))
	assert.InDelta(t, 20.0, e.State().Offset, 1e-9)

	e.Pause()
	assert.False(t, frames.Pending())

	// resume after a long pause must not jump
	e.Play()
	require.True(t, frames.Fire(start.Add(time.Hour)))
	assert.InDelta(t, 20.0, e.State().Offset, 1e-9)
	require.True(t, frames.Fire(start.Add(time.Hour+250*time.Millisecond)))
	assert.InDelta(t, 30.0, e.State().Offset, 1e-9)
}

func TestEngine_PlayKeepsSinglePendingFrame(t *testing.T) {
	e, frames := newTestEngine(1)
	e.Play()
	e.Play()
	e.Play()

	assert.True(t, frames.Fire(time.Unix(0, 0)))
	assert.True(t, frames.Fire(time.Unix(1, 0)))
	assert.InDelta(t, 40.0, e.State().Offset, 1e-9)
}

func TestEngine_PauseIdempotent(t *testing.T) {
	e, _ := newTestEngine(1)
	changes := 0
	e.OnChange(func(State) { changes++ })

	e.Pause()
	e.Pause()
	assert.Zero(t, changes)

	e.Toggle()
	assert.True(t, e.State().Playing)
	e.Toggle()
	assert.False(t, e.State().Playing)
	assert.Equal(t, 2, changes)
}

func TestEngine_SeekAndUpdateProgress(t *testing.T) {
	e, _ := newTestEngine(1)

	e.SeekTo(400)
	assert.InDelta(t, 0.5, e.State().Position, 1e-9)

	e.SeekTo(-50)
	assert.Zero(t, e.State().Offset)

	e.ScrollBy(200)
	assert.InDelta(t, 0.25, e.State().Position, 1e-9)

	e.SeekTo(5000)
	st := e.State()
	assert.Equal(t, 800.0, st.Offset)
	assert.True(t, st.Done, "seeking past the threshold completes")
}

func TestEngine_DegenerateGeometry(t *testing.T) {
	frames := &clock.ManualFrames{}
	e := New(frames, 1)
	e.SetGeometry(Geometry{ContentHeight: 100, ViewportHeight: 300})

	e.Play()
	for i := 0; i < 100; i++ {
		e.OnTick(1)
	}
	st := e.State()
	assert.Zero(t, st.Position)
	assert.False(t, st.Done)
	assert.True(t, st.Playing)

	e.SeekTo(50)
	assert.Zero(t, e.State().Offset)
}

func TestEngine_GeometryChangeKeepsOffset(t *testing.T) {
	e, _ := newTestEngine(1)
	e.SeekTo(400)

	e.SetGeometry(Geometry{ContentHeight: 1800, ViewportHeight: 200})
	assert.Equal(t, 400.0, e.State().Offset)
	assert.InDelta(t, 0.25, e.State().Position, 1e-9)

	e.SetGeometry(Geometry{ContentHeight: 500, ViewportHeight: 200})
	assert.Equal(t, 300.0, e.State().Offset)
	assert.True(t, e.State().Done)
}

func TestEngine_CloseStopsEverything(t *testing.T) {
	e, frames := newTestEngine(1)
	changes := 0
	e.OnChange(func(State) { changes++ })

	e.Play()
	e.Close()
	assert.False(t, frames.Pending())
	assert.False(t, e.State().Playing)

	before := changes
	e.Play()
	e.OnTick(1)
	e.SeekTo(100)
	e.Reset()
	e.SetSpeed(2)
	assert.Equal(t, before, changes)
	assert.Zero(t, e.State().Offset)
}
