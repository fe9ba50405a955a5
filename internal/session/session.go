// Package session wires the prompter components into one running session:
// script layout, scroll engine, active line tracking, voice follow, the
// countdown and elapsed time. A Session is owned by a single goroutine; the
// clock, frame scheduler and executor passed in must all deliver there.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/clock"
	"github.com/lexiqai/prompter/internal/countdown"
	"github.com/lexiqai/prompter/internal/elapsed"
	"github.com/lexiqai/prompter/internal/follow"
	"github.com/lexiqai/prompter/internal/layout"
	"github.com/lexiqai/prompter/internal/resilience"
	"github.com/lexiqai/prompter/internal/scroll"
	"github.com/lexiqai/prompter/internal/settings"
	"github.com/lexiqai/prompter/internal/tracker"
	"github.com/lexiqai/prompter/internal/voice"
)

// ErrEmptyScript is returned when there is nothing to prompt
var ErrEmptyScript = errors.New("script is empty")

// Recorder receives session telemetry
type Recorder interface {
	voice.Observer
	RecordCommand(command, origin string)
	RecordProgress(position float64)
	RecordCompletion(spent time.Duration)
}

// Options configures a Session
type Options struct {
	ID       string
	Script   string // overrides Settings.Script when set
	Settings settings.Settings

	Source voice.Source
	Clock  clock.Clock
	Frames scroll.FrameScheduler
	Exec   func(func())

	SilenceDelay   time.Duration
	RestartBackoff time.Duration
	Breaker        *resilience.CircuitBreaker

	Beeper   countdown.Beeper
	Recorder Recorder
	Logger   zerolog.Logger
}

// Snapshot is everything a renderer or status reader needs about a session
type Snapshot struct {
	ID               string        `json:"session_id"`
	Position         float64       `json:"position"`
	Speed            float64       `json:"speed"`
	Playing          bool          `json:"playing"`
	Done             bool          `json:"done"`
	Offset           float64       `json:"offset"`
	ActiveLine       int           `json:"active_line"`
	LineCount        int           `json:"line_count"`
	FontSize         int           `json:"font_size"`
	Mirror           bool          `json:"mirror"`
	Fullscreen       bool          `json:"fullscreen"`
	VoiceFollow      bool          `json:"voice_follow"`
	VoiceSupported   bool          `json:"voice_supported"`
	Listening        bool          `json:"listening"`
	VoiceDetected    bool          `json:"voice_detected"`
	CountingDown     bool          `json:"counting_down"`
	CountdownDigit   int           `json:"countdown_digit,omitempty"`
	CountdownVisible bool          `json:"countdown_visible,omitempty"`
	Elapsed          time.Duration `json:"-"`
	ElapsedText      string        `json:"elapsed"`
	Exited           bool          `json:"exited"`
}

// Session is one run of the prompter over a script
type Session struct {
	id       string
	logger   zerolog.Logger
	recorder Recorder

	lines    []tracker.Line
	settings settings.Settings
	layout   layout.Layout
	columns  int
	viewport float64

	engine    *scroll.Engine
	signal    *voice.Signal
	follow    *follow.Controller
	tracker   tracker.Tracker
	elapsed   *elapsed.Tracker
	countdown *countdown.Countdown

	fullscreen bool
	begun      bool
	exited     bool
	exitedCh   chan struct{}
	lastDone   bool
	lastPlays  int
	lastPauses int

	onChange   []func()
	onSettings []func(settings.Settings)
}

// New builds a paused session. Call Resize before the first frame and Begin
// to start the countdown.
func New(opts Options) (*Session, error) {
	script := opts.Script
	if script == "" {
		script = opts.Settings.Script
	}
	if strings.TrimSpace(script) == "" {
		return nil, ErrEmptyScript
	}

	st := opts.Settings.Normalize()
	st.Script = script

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	base := opts.Logger.With().Str("session_id", id).Logger()
	s := &Session{
		id:       id,
		logger:   base.With().Str("component", "session").Logger(),
		recorder: recorder,
		lines:    tracker.ParseLines(script),
		settings: st,
		exitedCh: make(chan struct{}),
	}

	s.engine = scroll.New(opts.Frames, st.ScrollSpeed)
	s.signal = voice.NewSignal(opts.Source, voice.Options{
		Clock:          opts.Clock,
		Exec:           opts.Exec,
		SilenceDelay:   opts.SilenceDelay,
		RestartBackoff: opts.RestartBackoff,
		Logger:         &base,
		Observer:       recorder,
		Breaker:        opts.Breaker,
	})
	s.follow = follow.New(s.engine, s.signal, base)
	s.elapsed = elapsed.New(opts.Clock)
	s.countdown = countdown.New(opts.Clock, opts.Beeper)

	s.engine.OnChange(s.onScroll)
	s.signal.OnChange(s.onVoice)
	s.countdown.OnChange(s.notify)

	s.relayout()
	return s, nil
}

// ID returns the session identifier used in logs and metrics
func (s *Session) ID() string {
	return s.id
}

// Begin starts the countdown, or playback straight away when the countdown
// is turned off. Only the first call has an effect.
func (s *Session) Begin() {
	if s.begun || s.exited {
		return
	}
	s.begun = true

	s.logger.Info().
		Int("lines", len(s.lines)).
		Bool("countdown", s.settings.ShowCountdown).
		Bool("voice_follow", s.settings.VoiceFollow).
		Bool("voice_supported", s.signal.State().Supported).
		Msg("Session started")

	if s.settings.ShowCountdown {
		s.follow.SetCountdown(true)
		s.follow.SetEnabled(s.settings.VoiceFollow)
		s.countdown.Start(s.onCountdownComplete)
		return
	}
	s.follow.SetEnabled(s.settings.VoiceFollow)
	s.startPlayback()
}

// Dispatch applies a user command. During the countdown only CmdExit is
// accepted. Returns whether the command was applied.
func (s *Session) Dispatch(cmd Command) bool {
	if s.exited {
		return false
	}
	if s.countdown.Active() && cmd != CmdExit {
		s.logger.Debug().Stringer("command", cmd).Msg("Ignoring command during countdown")
		return false
	}

	switch cmd {
	case CmdToggle:
		s.engine.Toggle()
	case CmdFaster:
		s.engine.Faster()
	case CmdSlower:
		s.engine.Slower()
	case CmdFontIncrease:
		s.setFontSize(s.settings.FontSize + layout.FontSizeStep)
	case CmdFontDecrease:
		s.setFontSize(s.settings.FontSize - layout.FontSizeStep)
	case CmdToggleFullscreen:
		s.fullscreen = !s.fullscreen
		s.notify()
	case CmdToggleMirror:
		s.settings.MirrorMode = !s.settings.MirrorMode
		s.settingsChanged()
		s.notify()
	case CmdToggleVoiceFollow:
		enabled := !s.follow.Enabled()
		s.follow.SetEnabled(enabled)
		s.settings.VoiceFollow = enabled
		s.settingsChanged()
		s.notify()
	case CmdReset:
		s.engine.Reset()
		s.elapsed.Reset()
		s.tracker.Reset()
		s.updateActive()
		s.notify()
	case CmdExit:
		s.recorder.RecordCommand(cmd.String(), "user")
		s.Exit()
		return true
	default:
		return false
	}

	s.recorder.RecordCommand(cmd.String(), "user")
	return true
}

// ScrollBy moves the script by px outside the tick loop, like a mouse wheel
func (s *Session) ScrollBy(px float64) {
	if s.exited || s.countdown.Active() {
		return
	}
	s.engine.ScrollBy(px)
}

// Resize relays the script out for a new viewport. columns is the wrap width
// in display cells and viewportPx the visible height.
func (s *Session) Resize(columns int, viewportPx float64) {
	if s.exited || (columns == s.columns && viewportPx == s.viewport) {
		return
	}
	s.columns = columns
	s.viewport = viewportPx
	s.relayout()
}

// Layout returns the current script geometry
func (s *Session) Layout() layout.Layout {
	return s.layout
}

// Settings returns the preferences as changed during the session
func (s *Session) Settings() settings.Settings {
	return s.settings
}

// Snapshot captures the current state
func (s *Session) Snapshot() Snapshot {
	st := s.engine.State()
	vs := s.signal.State()
	spent := s.elapsed.Elapsed()
	return Snapshot{
		ID:               s.id,
		Position:         st.Position,
		Speed:            st.Speed,
		Playing:          st.Playing,
		Done:             st.Done,
		Offset:           st.Offset,
		ActiveLine:       s.tracker.Active(),
		LineCount:        len(s.lines),
		FontSize:         s.settings.FontSize,
		Mirror:           s.settings.MirrorMode,
		Fullscreen:       s.fullscreen,
		VoiceFollow:      s.follow.Enabled(),
		VoiceSupported:   vs.Supported,
		Listening:        vs.Listening,
		VoiceDetected:    vs.VoiceDetected,
		CountingDown:     s.countdown.Active(),
		CountdownDigit:   s.countdown.Digit(),
		CountdownVisible: s.countdown.Visible(),
		Elapsed:          spent,
		ElapsedText:      elapsed.Format(spent),
		Exited:           s.exited,
	}
}

// OnChange registers fn to run after anything visible changes
func (s *Session) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

// OnSettingsChange registers fn to receive preferences changed by commands
func (s *Session) OnSettingsChange(fn func(settings.Settings)) {
	s.onSettings = append(s.onSettings, fn)
}

// Exit tears the session down: the countdown, frame request and voice
// timers are canceled before the engine and signal are released. Idempotent.
func (s *Session) Exit() {
	if s.exited {
		return
	}

	s.countdown.Cancel()
	s.engine.Pause()
	s.follow.Close()
	s.signal.Close()
	s.elapsed.Observe(false)
	s.engine.Close()

	s.exited = true
	s.logger.Info().
		Float64("position", s.engine.State().Position).
		Str("elapsed", elapsed.Format(s.elapsed.Elapsed())).
		Msg("Session ended")

	s.notify()
	close(s.exitedCh)
}

// Exited is closed once Exit has run
func (s *Session) Exited() <-chan struct{} {
	return s.exitedCh
}

func (s *Session) onCountdownComplete() {
	s.follow.SetCountdown(false)
	s.startPlayback()
	s.notify()
}

// startPlayback hands control to voice follow when it can hear anything,
// otherwise starts autoplay
func (s *Session) startPlayback() {
	if s.follow.Active() {
		return
	}
	s.engine.Play()
	s.recorder.RecordCommand("play", "auto")
}

func (s *Session) setFontSize(size int) {
	size = layout.ClampFontSize(size)
	if size == s.settings.FontSize {
		return
	}
	s.settings.FontSize = size
	s.relayout()
	s.settingsChanged()
}

func (s *Session) relayout() {
	s.layout = layout.Build(s.lines, layout.Params{
		FontSize:       float64(s.settings.FontSize),
		ViewportHeight: s.viewport,
		Columns:        s.columns,
	})
	s.engine.SetGeometry(s.layout.Geometry())
	s.updateActive()
	s.notify()
}

func (s *Session) updateActive() {
	s.tracker.Update(s.layout.Center(), s.layout.Relative(s.engine.State().Offset))
}

func (s *Session) onScroll(st scroll.State) {
	s.elapsed.Observe(st.Playing)
	s.updateActive()
	s.recorder.RecordProgress(st.Position)

	if st.Speed != s.settings.ScrollSpeed {
		s.settings.ScrollSpeed = st.Speed
		s.settingsChanged()
	}
	if st.Done && !s.lastDone {
		spent := s.elapsed.Elapsed()
		s.recorder.RecordCompletion(spent)
		s.logger.Info().Str("elapsed", elapsed.Format(spent)).Msg("Reached the end of the script")
	}
	s.lastDone = st.Done
	s.notify()
}

func (s *Session) onVoice(voice.State) {
	plays, pauses := s.follow.Issued()
	if plays > s.lastPlays {
		s.recorder.RecordCommand("play", "voice")
	}
	if pauses > s.lastPauses {
		s.recorder.RecordCommand("pause", "voice")
	}
	s.lastPlays, s.lastPauses = plays, pauses
	s.notify()
}

func (s *Session) settingsChanged() {
	for _, fn := range s.onSettings {
		fn(s.settings)
	}
}

func (s *Session) notify() {
	for _, fn := range s.onChange {
		fn()
	}
}

type nopRecorder struct{}

func (nopRecorder) VoiceTransition(bool)           {}
func (nopRecorder) VoiceRestart()                  {}
func (nopRecorder) VoiceError(string)              {}
func (nopRecorder) RecordCommand(string, string)   {}
func (nopRecorder) RecordProgress(float64)         {}
func (nopRecorder) RecordCompletion(time.Duration) {}
