package stt

import (
	"context"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/lexiqai/prompter/internal/audio"
	"github.com/lexiqai/prompter/internal/resilience"
)

// Options configures a DeepgramSource
type Options struct {
	APIKey     string
	Model      string // nova-2, enhanced, base
	Language   string // Language code (en, es, fr, etc.)
	SampleRate int

	// FrameSize is the number of samples sent per write
	FrameSize int

	// Frames supplies 16-bit mono PCM, usually the microphone
	Frames audio.PCMReader

	Retry   *resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
}

// Conn is the part of the Deepgram live client the source drives
type Conn interface {
	Connect() bool
	Write(p []byte) (int, error)
	Finish()
}

// Dialer opens a live transcription connection that reports to cb
type Dialer func(ctx context.Context, cb msginterfaces.LiveMessageCallback) (Conn, error)

func (o *Options) withDefaults() {
	if o.Model == "" {
		o.Model = "nova-2"
	}
	if o.Language == "" {
		o.Language = "en"
	}
	if o.SampleRate == 0 {
		o.SampleRate = 16000
	}
	if o.FrameSize == 0 {
		o.FrameSize = audio.FrameSizeFor(o.SampleRate, 20)
	}
	if o.Retry == nil {
		o.Retry = resilience.DefaultRetryConfig()
	}
	if o.Breaker == nil {
		o.Breaker = resilience.NewCircuitBreaker("deepgram", 5, 30*time.Second)
	}
}
