// Package countdown runs the 3-2-1 pre-roll shown before the prompter starts.
package countdown

import (
	"time"

	"github.com/lexiqai/prompter/internal/clock"
)

const (
	From    = 3
	Visible = 800 * time.Millisecond
	Hidden  = 200 * time.Millisecond
	Tail    = 300 * time.Millisecond
)

// Beeper sounds the countdown. Implementations must not block.
type Beeper interface {
	Tick(digit int)
	Go()
}

// Countdown steps through the digits on a clock. Like the engine it is owned
// by a single goroutine; the clock must deliver callbacks there.
type Countdown struct {
	clock  clock.Clock
	beeper Beeper

	active  bool
	digit   int
	visible bool
	timer   clock.Timer

	onComplete func()
	listeners  []func()
}

// New creates an idle countdown. beeper may be nil.
func New(c clock.Clock, beeper Beeper) *Countdown {
	if c == nil {
		c = clock.Real()
	}
	return &Countdown{clock: c, beeper: beeper}
}

// OnChange registers fn to run whenever the displayed digit changes
func (c *Countdown) OnChange(fn func()) {
	c.listeners = append(c.listeners, fn)
}

// Start begins at From. onComplete runs once, after the tail, unless the
// countdown is canceled first. Restarting an active countdown starts over.
func (c *Countdown) Start(onComplete func()) {
	c.stopTimer()
	c.active = true
	c.onComplete = onComplete
	c.show(From)
}

// Cancel stops the countdown without calling onComplete
func (c *Countdown) Cancel() {
	if !c.active {
		return
	}
	c.stopTimer()
	c.active = false
	c.digit = 0
	c.visible = false
	c.onComplete = nil
	c.notify()
}

// Active reports whether the countdown is running
func (c *Countdown) Active() bool {
	return c.active
}

// Digit is the number currently on screen, 0 during the tail
func (c *Countdown) Digit() int {
	return c.digit
}

// Visible reports whether the digit is shown or in its fade gap
func (c *Countdown) Visible() bool {
	return c.visible
}

func (c *Countdown) show(digit int) {
	c.digit = digit
	c.visible = true
	if c.beeper != nil {
		c.beeper.Tick(digit)
	}
	c.notify()
	c.after(Visible, c.hide)
}

func (c *Countdown) hide() {
	c.visible = false
	c.notify()
	c.after(Hidden, c.next)
}

func (c *Countdown) next() {
	if c.digit > 1 {
		c.show(c.digit - 1)
		return
	}
	c.digit = 0
	c.notify()
	c.after(Tail, c.complete)
}

func (c *Countdown) complete() {
	fn := c.onComplete
	c.active = false
	c.onComplete = nil
	if c.beeper != nil {
		c.beeper.Go()
	}
	c.notify()
	if fn != nil {
		fn()
	}
}

func (c *Countdown) after(d time.Duration, fn func()) {
	var t clock.Timer
	t = c.clock.AfterFunc(d, func() {
		if c.timer != t || !c.active {
			return
		}
		c.timer = nil
		fn()
	})
	c.timer = t
}

func (c *Countdown) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) notify() {
	for _, fn := range c.listeners {
		fn()
	}
}
