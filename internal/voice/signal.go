package voice

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/clock"
	"github.com/lexiqai/prompter/internal/resilience"
)

const (
	// DefaultSilenceDelay is how long without activity clears VoiceDetected
	DefaultSilenceDelay = 1500 * time.Millisecond

	// DefaultRestartBackoff is the pause before restarting a source that ended
	DefaultRestartBackoff = 300 * time.Millisecond
)

// State is the observable voice state
type State struct {
	Listening     bool
	VoiceDetected bool
	Supported     bool
}

// Observer receives voice telemetry
type Observer interface {
	VoiceTransition(detected bool)
	VoiceRestart()
	VoiceError(category string)
}

// Options configures a Signal
type Options struct {
	// Clock schedules the silence and restart timers. Its callbacks must run
	// on the goroutine that owns the Signal.
	Clock clock.Clock

	// Exec marshals source events onto the owning goroutine. Nil calls directly.
	Exec func(func())

	SilenceDelay   time.Duration
	RestartBackoff time.Duration

	Logger   *zerolog.Logger
	Observer Observer

	// Breaker guards source restarts. A default breaker is used when nil.
	Breaker *resilience.CircuitBreaker
}

// Signal turns a Source into a debounced "is speaking now" flag.
// Like the scroll engine it is owned by a single goroutine.
type Signal struct {
	source   Source
	clock    clock.Clock
	exec     func(func())
	silenceD time.Duration
	backoff  time.Duration
	logger   zerolog.Logger
	observer Observer
	breaker  *resilience.CircuitBreaker

	supported bool
	listening bool
	detected  bool
	faulted   bool
	closed    bool
	gen       uint64

	silence clock.Timer
	restart clock.Timer

	listeners []func(State)
}

// NewSignal creates an idle Signal over source. A nil source is unsupported.
func NewSignal(source Source, opts Options) *Signal {
	s := &Signal{
		source:   source,
		clock:    opts.Clock,
		exec:     opts.Exec,
		silenceD: opts.SilenceDelay,
		backoff:  opts.RestartBackoff,
		observer: opts.Observer,
		breaker:  opts.Breaker,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.exec == nil {
		s.exec = func(fn func()) { fn() }
	}
	if s.silenceD <= 0 {
		s.silenceD = DefaultSilenceDelay
	}
	if s.backoff <= 0 {
		s.backoff = DefaultRestartBackoff
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "voice").Logger()
	} else {
		s.logger = zerolog.Nop()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.breaker == nil {
		s.breaker = resilience.NewCircuitBreaker("voice-source", 5, 30*time.Second)
	}
	s.supported = source != nil && source.Supported()
	return s
}

// OnChange registers fn to receive every state change
func (s *Signal) OnChange(fn func(State)) {
	s.listeners = append(s.listeners, fn)
}

// State returns the current voice state
func (s *Signal) State() State {
	return State{
		Listening:     s.listening,
		VoiceDetected: s.detected,
		Supported:     s.supported,
	}
}

// Start activates the source. No-op when unsupported, already listening or closed.
func (s *Signal) Start() {
	if s.closed || s.listening || !s.supported {
		return
	}
	prev := s.State()

	s.listening = true
	s.faulted = false
	s.breaker.Reset()
	s.gen++

	if err := s.source.Start(activation{s: s, gen: s.gen}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to start voice source")
		s.observer.VoiceError(Category(err))
		s.listening = false
		s.gen++
	} else {
		s.logger.Debug().Msg("Voice source listening")
	}
	s.emit(prev)
}

// Stop deactivates the source and clears detection. Idempotent.
func (s *Signal) Stop() {
	if s.closed {
		return
	}
	prev := s.State()
	wasListening := s.listening

	s.listening = false
	s.faulted = false
	s.gen++
	s.stopTimers()
	if s.detected {
		s.detected = false
		s.observer.VoiceTransition(false)
	}

	if wasListening {
		s.source.Stop()
		s.logger.Debug().Msg("Voice source stopped")
	}
	s.emit(prev)
}

// Close stops the signal for good. Late source events and timers are ignored.
func (s *Signal) Close() {
	if s.closed {
		return
	}
	s.Stop()
	s.closed = true
	s.listeners = nil
}

func (s *Signal) onResult() {
	s.setDetected(true)
	s.armSilence()
}

func (s *Signal) onSpeechStart() {
	s.setDetected(true)
	s.stopSilence()
}

func (s *Signal) onSpeechEnd() {
	s.armSilence()
}

func (s *Signal) onError(err error) {
	category := Category(err)
	s.observer.VoiceError(category)

	if IsTransient(err) {
		s.logger.Debug().Str("category", category).Msg("Voice source ended, restarting")
		s.scheduleRestart()
		return
	}

	// unknown cause: stay in the listening state but do not restart blindly
	s.logger.Warn().Err(err).Str("category", category).Msg("Voice source error")
	s.faulted = true
}

func (s *Signal) onEnd() {
	// events still in flight from this activation are stale from here on
	s.gen++

	if s.detected && s.silence == nil {
		s.armSilence()
	}
	if s.faulted {
		s.logger.Warn().Msg("Voice source ended after an unclassified error, not restarting")
		return
	}
	s.scheduleRestart()
}

func (s *Signal) setDetected(v bool) {
	if s.detected == v {
		return
	}
	prev := s.State()
	s.detected = v
	s.observer.VoiceTransition(v)
	s.emit(prev)
}

func (s *Signal) armSilence() {
	s.stopSilence()
	var t clock.Timer
	t = s.clock.AfterFunc(s.silenceD, func() {
		if s.silence != t || s.closed || !s.listening {
			return
		}
		s.silence = nil
		s.setDetected(false)
	})
	s.silence = t
}

func (s *Signal) stopSilence() {
	if s.silence != nil {
		s.silence.Stop()
		s.silence = nil
	}
}

func (s *Signal) scheduleRestart() {
	s.scheduleRestartIn(s.backoff)
}

func (s *Signal) scheduleRestartIn(d time.Duration) {
	if s.restart != nil {
		s.restart.Stop()
	}
	var t clock.Timer
	t = s.clock.AfterFunc(d, func() {
		if s.restart != t {
			return
		}
		s.restart = nil
		s.restartSource()
	})
	s.restart = t
}

func (s *Signal) restartSource() {
	if s.closed || !s.listening {
		return
	}

	s.gen++
	act := activation{s: s, gen: s.gen}
	err := s.breaker.Call(func() error {
		return s.source.Start(act)
	})
	if err == nil {
		s.faulted = false
		s.observer.VoiceRestart()
		s.logger.Debug().Msg("Voice source restarted")
		return
	}

	s.observer.VoiceError(Category(err))
	if s.breaker.GetState() == resilience.StateOpen {
		// one probe once the breaker is due to half-open
		wait := s.breaker.ResetTimeout()
		s.logger.Error().Err(err).Dur("retry_in", wait).Msg("Voice source keeps failing, restarts suspended")
		s.scheduleRestartIn(wait)
		return
	}
	s.logger.Warn().Err(err).Msg("Voice source restart failed, retrying")
	s.scheduleRestart()
}

func (s *Signal) stopTimers() {
	s.stopSilence()
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
}

func (s *Signal) emit(prev State) {
	next := s.State()
	if next == prev {
		return
	}
	for _, fn := range s.listeners {
		fn(next)
	}
}

// deliver runs fn on the owning goroutine if the activation is still current
func (s *Signal) deliver(gen uint64, fn func()) {
	s.exec(func() {
		if s.closed || !s.listening || gen != s.gen {
			return
		}
		fn()
	})
}

type activation struct {
	s   *Signal
	gen uint64
}

func (a activation) Result()         { a.s.deliver(a.gen, a.s.onResult) }
func (a activation) SpeechStart()    { a.s.deliver(a.gen, a.s.onSpeechStart) }
func (a activation) SpeechEnd()      { a.s.deliver(a.gen, a.s.onSpeechEnd) }
func (a activation) End()            { a.s.deliver(a.gen, a.s.onEnd) }
func (a activation) Error(err error) { a.s.deliver(a.gen, func() { a.s.onError(err) }) }

type nopObserver struct{}

func (nopObserver) VoiceTransition(bool) {}
func (nopObserver) VoiceRestart()        {}
func (nopObserver) VoiceError(string)    {}
