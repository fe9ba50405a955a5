// Package loop is the single owner of all prompter session state.
//
// Frames, timers, source events, keyboard commands and status reads are all
// posted here and run one at a time on the goroutine executing Run.
package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/clock"
)

// DefaultFrameInterval is roughly one display refresh
const DefaultFrameInterval = 16 * time.Millisecond

// ErrStopped is returned when work is submitted to a loop that has exited
var ErrStopped = errors.New("event loop stopped")

const queueSize = 256

// Loop serialises work onto one goroutine and drives a frame ticker
type Loop struct {
	interval time.Duration
	logger   zerolog.Logger

	tasks   chan func()
	stopped chan struct{}
	running atomic.Bool

	// owned by the loop goroutine
	frame   func(time.Time)
	token   uint64
	onFrame []func(time.Time)
}

// New creates a loop that ticks every interval once Run is called
func New(interval time.Duration, logger zerolog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{
		interval: interval,
		logger:   logger.With().Str("component", "loop").Logger(),
		tasks:    make(chan func(), queueSize),
		stopped:  make(chan struct{}),
	}
}

// Run executes posted work and frames until ctx is done. It may be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("event loop already running")
	}
	defer close(l.stopped)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug().Dur("interval", l.interval).Msg("Event loop started")
	for {
		select {
		case <-ctx.Done():
			l.frame = nil
			l.logger.Debug().Msg("Event loop stopped")
			return nil
		case fn := <-l.tasks:
			fn()
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Post queues fn to run on the loop. Returns false once the loop has exited.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stopped:
		return false
	}
}

// Exec posts fn and drops it silently if the loop is gone. It matches the
// executor hook taken by voice.Options.
func (l *Loop) Exec(fn func()) {
	l.Post(fn)
}

// Do runs fn on the loop and waits for it to finish
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stopped is closed when Run returns
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

// RequestFrame schedules fn for the next tick, replacing any pending request.
// Must be called from the loop goroutine.
func (l *Loop) RequestFrame(fn func(now time.Time)) (cancel func()) {
	l.token++
	token := l.token
	l.frame = fn
	return func() {
		if l.token == token {
			l.frame = nil
		}
	}
}

// OnFrame registers fn to run after every tick, once the pending frame has run
func (l *Loop) OnFrame(fn func(now time.Time)) {
	l.onFrame = append(l.onFrame, fn)
}

// Tick runs one frame: the pending request, then the frame hooks.
// Run calls it from the ticker; it is exported for callers driving frames by hand.
func (l *Loop) Tick(now time.Time) {
	if fn := l.frame; fn != nil {
		l.frame = nil
		l.token++
		fn(now)
	}
	for _, fn := range l.onFrame {
		fn(now)
	}
}

// Now implements clock.Clock
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc implements clock.Clock. fn runs on the loop goroutine, and never
// after Stop has returned true.
func (l *Loop) AfterFunc(d time.Duration, fn func()) clock.Timer {
	t := &timer{}
	t.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if !t.fired.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	})
	return t
}

type timer struct {
	t *time.Timer
	// set once by either the callback or Stop
	fired atomic.Bool
}

func (t *timer) Stop() bool {
	t.t.Stop()
	return t.fired.CompareAndSwap(false, true)
}
