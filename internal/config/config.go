package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Voice source names accepted in VOICE_SOURCE
const (
	VoiceSourceNone     = "none"
	VoiceSourceEnergy   = "energy"
	VoiceSourceDeepgram = "deepgram"
	VoiceSourceRemote   = "remote"
)

// Config holds all configuration for the prompter
type Config struct {
	// Server configuration; an empty address disables the listener
	HTTPAddr string `envconfig:"HTTP_ADDR" default:"127.0.0.1:8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:""`

	// Rendering
	FrameIntervalMs int `envconfig:"FRAME_INTERVAL_MS" default:"16"` // ~60 frames per second

	// Persisted settings file; empty means the user config dir
	SettingsFile string `envconfig:"SETTINGS_FILE" default:""`
	CountdownBeep bool  `envconfig:"COUNTDOWN_BEEP" default:"true"`

	// Voice follow
	VoiceSource           string `envconfig:"VOICE_SOURCE" default:"energy"` // none, energy, deepgram, remote
	VoiceSilenceDelayMs   int    `envconfig:"VOICE_SILENCE_DELAY_MS" default:"1500"`
	VoiceRestartBackoffMs int    `envconfig:"VOICE_RESTART_BACKOFF_MS" default:"300"`

	// Audio capture configuration
	AudioInput         string  `envconfig:"AUDIO_INPUT" default:"mic"`         // mic, - (stdin) or a file path
	AudioEncoding      string  `envconfig:"AUDIO_ENCODING" default:"linear16"` // linear16 or mulaw for stream input
	AudioSampleRate    int     `envconfig:"AUDIO_SAMPLE_RATE" default:"16000"`
	AudioFrameMs       int     `envconfig:"AUDIO_FRAME_MS" default:"20"`
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence to mark speech end

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, es, fr, etc.)

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error, disabled
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	LogFile        string `envconfig:"LOG_FILE" default:""`            // Log destination; the terminal owns stdout
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express
func (c *Config) Validate() error {
	switch c.VoiceSource {
	case VoiceSourceNone, VoiceSourceEnergy, VoiceSourceRemote:
	case VoiceSourceDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when VOICE_SOURCE=deepgram")
		}
	default:
		return fmt.Errorf("VOICE_SOURCE must be one of none, energy, deepgram, remote (got %q)", c.VoiceSource)
	}

	switch c.AudioEncoding {
	case "linear16", "mulaw":
	default:
		return fmt.Errorf("AUDIO_ENCODING must be linear16 or mulaw (got %q)", c.AudioEncoding)
	}

	if c.FrameIntervalMs <= 0 {
		return fmt.Errorf("FRAME_INTERVAL_MS must be positive")
	}
	if c.AudioSampleRate <= 0 || c.AudioFrameMs <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE and AUDIO_FRAME_MS must be positive")
	}
	if c.VoiceSilenceDelayMs <= 0 || c.VoiceRestartBackoffMs < 0 {
		return fmt.Errorf("VOICE_SILENCE_DELAY_MS must be positive and VOICE_RESTART_BACKOFF_MS non-negative")
	}
	return nil
}

// FrameInterval is the render tick period
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// SilenceDelay is how long without voice activity clears detection
func (c *Config) SilenceDelay() time.Duration {
	return time.Duration(c.VoiceSilenceDelayMs) * time.Millisecond
}

// RestartBackoff is the pause before a voice source is restarted
func (c *Config) RestartBackoff() time.Duration {
	return time.Duration(c.VoiceRestartBackoffMs) * time.Millisecond
}

// BreakerResetTimeout is how long an open circuit waits before probing
func (c *Config) BreakerResetTimeout() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
