package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prompter_active_sessions",
		Help: "Number of running prompter sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prompter_sessions_total",
		Help: "Total number of prompter sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prompter_session_duration_seconds",
		Help:    "Wall-clock duration of prompter sessions in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
	})

	readDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prompter_read_duration_seconds",
		Help:    "Time from first play to the end of a script",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
	})

	// Scroll metrics
	framesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prompter_frames_total",
		Help: "Total number of frames rendered",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompter_commands_total",
		Help: "Total number of commands applied to the scroll engine",
	}, []string{"command", "origin"}) // origin: "user" or "voice"

	scrollProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prompter_scroll_progress",
		Help: "Scroll position as a fraction of the script",
	})

	// Voice metrics
	voiceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompter_voice_transitions_total",
		Help: "Total number of voice detected/silent transitions",
	}, []string{"detected"})

	voiceRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prompter_voice_restarts_total",
		Help: "Total number of transparent voice source restarts",
	})

	voiceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompter_voice_errors_total",
		Help: "Total number of voice source errors",
	}, []string{"category"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompter_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "prompter_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompter_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompter_audio_bytes_total",
		Help: "Total audio bytes captured",
	}, []string{"source"})
)

// Metrics tracks metrics for a single prompter session
type Metrics struct {
	sessionID string
	startTime time.Time
	ended     bool
	mu        sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// SessionID returns the session this tracker belongs to
func (m *Metrics) SessionID() string {
	return m.sessionID
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session. Only the first call counts.
func (m *Metrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordFrame counts a rendered frame
func (m *Metrics) RecordFrame() {
	framesTotal.Inc()
}

// RecordCommand counts a scroll command by who issued it
func (m *Metrics) RecordCommand(command, origin string) {
	commandsTotal.WithLabelValues(command, origin).Inc()
}

// RecordProgress publishes the current scroll position
func (m *Metrics) RecordProgress(position float64) {
	scrollProgress.Set(position)
}

// RecordCompletion records the time from first play to the end of the script
func (m *Metrics) RecordCompletion(spent time.Duration) {
	readDuration.Observe(spent.Seconds())
}

// VoiceTransition records a change of the voice detected flag
func (m *Metrics) VoiceTransition(detected bool) {
	label := "false"
	if detected {
		label = "true"
	}
	voiceTransitions.WithLabelValues(label).Inc()
}

// VoiceRestart records a transparent source restart
func (m *Metrics) VoiceRestart() {
	voiceRestarts.Inc()
}

// VoiceError records a voice source error by category
func (m *Metrics) VoiceError(category string) {
	voiceErrors.WithLabelValues(category).Inc()
	m.RecordError(category, "voice")
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes captured by a source
func (m *Metrics) RecordAudioBytes(source string, bytes int64) {
	audioBytesProcessed.WithLabelValues(source).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
