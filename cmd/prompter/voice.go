package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/audio"
	"github.com/lexiqai/prompter/internal/config"
	"github.com/lexiqai/prompter/internal/observability"
	"github.com/lexiqai/prompter/internal/remote"
	"github.com/lexiqai/prompter/internal/resilience"
	"github.com/lexiqai/prompter/internal/stt"
	"github.com/lexiqai/prompter/internal/voice"
)

// voiceInput is the selected voice source plus what main needs to serve and
// release it
type voiceInput struct {
	source  voice.Source
	handler http.Handler // set for the remote source
	ready   observability.HealthCheckFunc
	closers []func()
}

func (v *voiceInput) Close() {
	for i := len(v.closers) - 1; i >= 0; i-- {
		v.closers[i]()
	}
}

func watchBreaker(cb *resilience.CircuitBreaker) {
	cb.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		if state == resilience.StateOpen {
			observability.IncrementCircuitBreakerFailures(name)
		}
	})
}

func vadConfig(cfg *config.Config) *audio.VADConfig {
	return &audio.VADConfig{
		EnergyThreshold: cfg.VADEnergyThreshold,
		SilenceFrames:   cfg.VADSilenceFrames,
		FrameSize:       audio.FrameSizeFor(cfg.AudioSampleRate, cfg.AudioFrameMs),
	}
}

// openAudio opens AUDIO_INPUT. A missing microphone is not fatal: the
// source just reports itself unsupported and the prompter autoplays.
func openAudio(cfg *config.Config, logger zerolog.Logger, in *voiceInput) audio.PCMReader {
	switch cfg.AudioInput {
	case "", "mic":
		mic, err := audio.OpenMicrophone(cfg.AudioSampleRate, cfg.AudioFrameMs, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Microphone unavailable, voice follow disabled")
			return nil
		}
		in.closers = append(in.closers, func() { mic.Close() })
		return mic
	case "-":
		reader, err := audio.NewStreamReader(os.Stdin, cfg.AudioEncoding)
		if err != nil {
			logger.Warn().Err(err).Msg("Cannot read audio from stdin")
			return nil
		}
		return reader
	default:
		f, err := os.Open(cfg.AudioInput)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.AudioInput).Msg("Cannot open audio input")
			return nil
		}
		in.closers = append(in.closers, func() { f.Close() })
		reader, err := audio.NewStreamReader(f, cfg.AudioEncoding)
		if err != nil {
			logger.Warn().Err(err).Msg("Cannot read audio input")
			return nil
		}
		return reader
	}
}

func openVoice(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*voiceInput, error) {
	in := &voiceInput{}
	supported := func(ctx context.Context) (bool, error) {
		if in.source == nil || !in.source.Supported() {
			return false, fmt.Errorf("voice source %q unavailable", cfg.VoiceSource)
		}
		return true, nil
	}

	switch cfg.VoiceSource {
	case config.VoiceSourceNone:
		return in, nil

	case config.VoiceSourceEnergy:
		energy := audio.NewEnergySource(openAudio(cfg, logger, in), vadConfig(cfg), logger)
		energy.OnBytes(func(n int) { metrics.RecordAudioBytes("energy", int64(n)) })
		in.source = energy
		in.closers = append(in.closers, energy.Close)

	case config.VoiceSourceDeepgram:
		breaker := resilience.NewCircuitBreaker("deepgram", cfg.CircuitBreakerMaxFailures, cfg.BreakerResetTimeout())
		watchBreaker(breaker)
		dg := stt.NewDeepgramSource(stt.Options{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.DeepgramModel,
			Language:   cfg.DeepgramLanguage,
			SampleRate: cfg.AudioSampleRate,
			FrameSize:  audio.FrameSizeFor(cfg.AudioSampleRate, cfg.AudioFrameMs),
			Frames:     openAudio(cfg, logger, in),
			Retry: &resilience.RetryConfig{
				MaxAttempts:       cfg.RetryMaxAttempts,
				InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
				MaxBackoff:        5 * time.Second,
				BackoffMultiplier: 2.0,
				Jitter:            true,
			},
			Breaker: breaker,
		}, logger)
		in.source = dg
		in.closers = append(in.closers, func() {
			dg.Stop()
			dg.Wait()
		})
		supported = func(ctx context.Context) (bool, error) {
			if breaker.GetState() == resilience.StateOpen {
				return false, resilience.ErrCircuitOpen
			}
			return dg.Supported(), nil
		}

	case config.VoiceSourceRemote:
		if cfg.HTTPAddr == "" {
			return nil, fmt.Errorf("VOICE_SOURCE=remote needs HTTP_ADDR")
		}
		hub := remote.NewHub(vadConfig(cfg), logger)
		hub.OnBytes(func(n int) { metrics.RecordAudioBytes("remote", int64(n)) })
		in.source = hub
		in.handler = hub
		in.closers = append(in.closers, hub.Stop)

	default:
		return nil, fmt.Errorf("unknown voice source %q", cfg.VoiceSource)
	}

	in.ready = supported
	return in, nil
}
