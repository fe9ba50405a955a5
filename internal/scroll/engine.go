package scroll

import (
	"math"
	"time"
)

const (
	// BaseRate is the scroll rate in pixels per second at speed 1.0
	BaseRate = 40.0

	MinSpeed  = 0.5
	MaxSpeed  = 3.0
	SpeedStep = 0.25

	// DoneThreshold is the progress fraction treated as the end of the script
	DoneThreshold = 0.999
)

// FrameScheduler delivers per-frame callbacks. At most one request is pending
// at a time; cancel drops it if it has not run yet.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) (cancel func())
}

// Geometry is the scrollable extent reported by the rendering layer
type Geometry struct {
	ContentHeight  float64
	ViewportHeight float64
}

// MaxScroll is the total scrollable distance in pixels
func (g Geometry) MaxScroll() float64 {
	return g.ContentHeight - g.ViewportHeight
}

// State is a snapshot of the engine
type State struct {
	Position  float64 // progress fraction in [0,1]
	Speed     float64 // multiplier in [MinSpeed, MaxSpeed]
	Playing   bool
	Done      bool
	Offset    float64 // raw scroll offset in pixels
	MaxScroll float64
}

// Engine owns the scroll state. It is not safe for concurrent use: every
// call, including frame callbacks, must come from the same goroutine.
type Engine struct {
	frames   FrameScheduler
	geometry Geometry

	position float64
	speed    float64
	playing  bool
	done     bool
	offset   float64

	lastTick    time.Time
	cancelFrame func()
	closed      bool

	listeners []func(State)
}

// New creates a paused engine at the top of the script
func New(frames FrameScheduler, initialSpeed float64) *Engine {
	return &Engine{
		frames: frames,
		speed:  ClampSpeed(initialSpeed),
	}
}

// ClampSpeed saturates v into [MinSpeed, MaxSpeed]
func ClampSpeed(v float64) float64 {
	if math.IsNaN(v) {
		return MinSpeed
	}
	return math.Min(math.Max(v, MinSpeed), MaxSpeed)
}

// OnChange registers fn to receive a snapshot whenever the state changes
func (e *Engine) OnChange(fn func(State)) {
	e.listeners = append(e.listeners, fn)
}

// State returns the current snapshot
func (e *Engine) State() State {
	return State{
		Position:  e.position,
		Speed:     e.speed,
		Playing:   e.playing,
		Done:      e.done,
		Offset:    e.offset,
		MaxScroll: e.geometry.MaxScroll(),
	}
}

// Play starts autoplay. The first frame after Play contributes no elapsed time.
func (e *Engine) Play() {
	if e.closed || e.done {
		return
	}
	prev := e.State()
	e.playing = true
	e.lastTick = time.Time{}
	e.requestFrame()
	e.emit(prev)
}

// Pause stops autoplay and drops any pending frame request
func (e *Engine) Pause() {
	if e.closed {
		return
	}
	prev := e.State()
	e.playing = false
	e.lastTick = time.Time{}
	e.cancelPending()
	e.emit(prev)
}

// Toggle pauses when playing, plays otherwise
func (e *Engine) Toggle() {
	if e.playing {
		e.Pause()
	} else {
		e.Play()
	}
}

// Faster raises the speed by one step
func (e *Engine) Faster() {
	e.AdjustSpeed(SpeedStep)
}

// Slower lowers the speed by one step
func (e *Engine) Slower() {
	e.AdjustSpeed(-SpeedStep)
}

// AdjustSpeed shifts the speed by delta, saturating at the bounds
func (e *Engine) AdjustSpeed(delta float64) {
	e.SetSpeed(e.speed + delta)
}

// SetSpeed sets the multiplier, clamped into bounds
func (e *Engine) SetSpeed(v float64) {
	if e.closed {
		return
	}
	prev := e.State()
	e.speed = ClampSpeed(v)
	e.emit(prev)
}

// SetGeometry updates the scrollable extent. The raw offset is kept (clamped)
// and progress recomputed.
func (e *Engine) SetGeometry(g Geometry) {
	if e.closed {
		return
	}
	prev := e.State()
	e.geometry = g
	e.offset = e.clampOffset(e.offset)
	e.updateProgress()
	e.emit(prev)
}

// OnTick advances the scroll by deltaSeconds of playback. No-op unless playing.
func (e *Engine) OnTick(deltaSeconds float64) {
	if e.closed || !e.playing {
		return
	}
	prev := e.State()
	if deltaSeconds > 0 {
		px := BaseRate * e.speed * deltaSeconds
		e.offset = e.clampOffset(e.offset + px)
	}
	e.updateProgress()
	e.emit(prev)
}

// UpdateProgress recomputes the position from the raw offset without
// advancing time. Used after scrolls that happen outside the tick loop.
func (e *Engine) UpdateProgress() {
	if e.closed {
		return
	}
	prev := e.State()
	e.updateProgress()
	e.emit(prev)
}

// SeekTo moves the raw offset directly
func (e *Engine) SeekTo(offset float64) {
	if e.closed {
		return
	}
	prev := e.State()
	e.offset = e.clampOffset(offset)
	e.updateProgress()
	e.emit(prev)
}

// ScrollBy moves the raw offset relative to its current value
func (e *Engine) ScrollBy(delta float64) {
	e.SeekTo(e.offset + delta)
}

// Reset pauses and rewinds to the start, clearing completion
func (e *Engine) Reset() {
	if e.closed {
		return
	}
	prev := e.State()
	e.playing = false
	e.lastTick = time.Time{}
	e.cancelPending()
	e.position = 0
	e.done = false
	e.offset = 0
	e.emit(prev)
}

// Close pauses the engine and turns every later call into a no-op
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.Pause()
	e.closed = true
	e.listeners = nil
}

func (e *Engine) frame(now time.Time) {
	e.cancelFrame = nil
	if e.closed || !e.playing {
		return
	}

	delta := 0.0
	if !e.lastTick.IsZero() {
		delta = now.Sub(e.lastTick).Seconds()
	}
	e.lastTick = now

	e.OnTick(delta)

	if e.playing {
		e.requestFrame()
	}
}

func (e *Engine) requestFrame() {
	e.cancelPending()
	if e.frames == nil {
		return
	}
	e.cancelFrame = e.frames.RequestFrame(e.frame)
}

func (e *Engine) cancelPending() {
	if e.cancelFrame != nil {
		e.cancelFrame()
		e.cancelFrame = nil
	}
}

func (e *Engine) clampOffset(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, math.Max(e.geometry.MaxScroll(), 0))
}

func (e *Engine) updateProgress() {
	max := e.geometry.MaxScroll()
	if max <= 0 {
		e.position = 0
		return
	}

	p := math.Min(e.offset/max, 1)
	if p < 0 {
		p = 0
	}
	e.position = p

	if p >= DoneThreshold {
		e.done = true
		e.playing = false
		e.lastTick = time.Time{}
		e.cancelPending()
	}
}

func (e *Engine) emit(prev State) {
	next := e.State()
	if next == prev {
		return
	}
	for _, fn := range e.listeners {
		fn(next)
	}
}
