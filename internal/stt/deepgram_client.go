package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/audio"
	"github.com/lexiqai/prompter/internal/resilience"
	"github.com/lexiqai/prompter/internal/voice"
)

var errConnectFailed = errors.New("deepgram connect failed")

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler // Embed default handler for methods we don't override

	ctx    context.Context
	stop   context.CancelFunc
	ev     voice.Events
	logger zerolog.Logger
	once   sync.Once
}

func (m *messageCallbackHandler) live() bool {
	return m.ctx.Err() == nil
}

// finish reports the end of the activation exactly once
func (m *messageCallbackHandler) finish(err error) {
	if !m.live() {
		return
	}
	m.once.Do(func() {
		if err != nil {
			m.ev.Error(err)
		}
		m.ev.End()
		m.stop()
	})
}

// Open, Metadata and UnhandledEvent are logged instead of printed; the
// terminal owns stdout.
func (m *messageCallbackHandler) Open(*msginterfaces.OpenResponse) error {
	m.logger.Debug().Msg("Deepgram connection opened")
	return nil
}

func (m *messageCallbackHandler) Metadata(md *msginterfaces.MetadataResponse) error {
	m.logger.Debug().Msgf("Deepgram metadata: %+v", md)
	return nil
}

func (m *messageCallbackHandler) UnhandledEvent(raw []byte) error {
	m.logger.Debug().Int("bytes", len(raw)).Msg("Deepgram: Received unknown message type")
	return nil
}

// Message reports any non-empty transcript, interim or final, as speech
func (m *messageCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || !m.live() || len(msg.Channel.Alternatives) == 0 {
		return nil
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}
	m.logger.Debug().Bool("final", msg.IsFinal).Str("text", alt.Transcript).Msg("Deepgram transcription")
	m.ev.Result()
	return nil
}

func (m *messageCallbackHandler) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	if m.live() {
		m.ev.SpeechStart()
	}
	return nil
}

func (m *messageCallbackHandler) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	if m.live() {
		m.ev.SpeechEnd()
	}
	return nil
}

func (m *messageCallbackHandler) Close(*msginterfaces.CloseResponse) error {
	if m.live() {
		m.logger.Info().Msg("Deepgram connection closed")
		m.finish(nil)
	}
	return nil
}

// Error overrides the default handler to surface errors as source errors
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if !m.live() {
		return nil
	}
	m.logger.Warn().Msgf("Deepgram error: %+v", errorResponse)
	m.finish(voice.NewSourceError("network", fmt.Errorf("deepgram: %+v", errorResponse)))
	return nil
}

// DeepgramSource is a voice.Source backed by Deepgram live transcription with
// VAD events. Microphone PCM is streamed while the source is active.
type DeepgramSource struct {
	opts   Options
	dial   Dialer
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeepgramSource creates a source. Without an API key or frames it is unsupported.
func NewDeepgramSource(opts Options, logger zerolog.Logger) *DeepgramSource {
	opts.withDefaults()
	d := &DeepgramSource{
		opts:   opts,
		logger: logger.With().Str("component", "deepgram").Logger(),
	}
	d.dial = d.dialDeepgram
	return d
}

// WithDialer replaces the connection factory
func (d *DeepgramSource) WithDialer(dial Dialer) *DeepgramSource {
	d.dial = dial
	return d
}

// Supported reports whether the source can run at all
func (d *DeepgramSource) Supported() bool {
	return d.opts.APIKey != "" && d.opts.Frames != nil
}

// Start connects in the background and begins streaming audio. A previous
// activation is canceled first.
func (d *DeepgramSource) Start(ev voice.Events) error {
	if !d.Supported() {
		return voice.ErrUnsupported
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	go func() {
		defer close(done)
		d.run(ctx, ev)
	}()
	return nil
}

// Stop ends the activation and sends Deepgram a finish message. No events
// follow for the stopped activation.
func (d *DeepgramSource) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the last activation has shut down
func (d *DeepgramSource) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (d *DeepgramSource) run(parent context.Context, ev voice.Events) {
	ctx, stop := context.WithCancel(parent)
	defer stop()

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		ctx:                    ctx,
		stop:                   stop,
		ev:                     ev,
		logger:                 d.logger,
	}

	var conn Conn
	err := resilience.Retry(ctx, func() error {
		c, err := d.dial(ctx, callback)
		if err != nil {
			return err
		}
		if !c.Connect() {
			return resilience.NewRetryableError(errConnectFailed)
		}
		conn = c
		return nil
	}, d.opts.Retry, resilience.IsRetryableNetworkError)

	if ctx.Err() != nil {
		if conn != nil {
			conn.Finish()
		}
		return
	}
	if err != nil {
		d.opts.Breaker.RecordResult(false)
		d.logger.Error().Err(err).Msg("Failed to connect to Deepgram")
		callback.finish(voice.NewSourceError("network", err))
		return
	}

	d.logger.Info().
		Str("model", d.opts.Model).
		Str("language", d.opts.Language).
		Msg("Deepgram streaming started")

	defer func() {
		stop()
		conn.Finish()
	}()
	if flusher, ok := d.opts.Frames.(interface{ Flush() }); ok {
		flusher.Flush()
	}

	buf := make([]byte, d.opts.FrameSize*2)
	for {
		n, err := d.opts.Frames.ReadFrame(ctx, buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d.logger.Warn().Err(err).Msg("Audio capture failed")
			callback.finish(voice.NewSourceError("audio-capture", err))
			return
		}

		err = d.opts.Breaker.Call(func() error {
			if _, err := conn.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to send audio to Deepgram: %w", err)
			}
			return nil
		})
		if err != nil {
			d.logger.Warn().Err(err).Msg("Deepgram write failed")
			callback.finish(voice.NewSourceError("network", err))
			return
		}
	}
}

func (d *DeepgramSource) dialDeepgram(ctx context.Context, cb msginterfaces.LiveMessageCallback) (Conn, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.opts.Model,
		Language:       d.opts.Language,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000", // End utterance after 1 second of silence (string in v3)
		VadEvents:      true,   // Enable voice activity detection events
		Encoding:       audio.EncodingLinear16,
		Channels:       1,
		SampleRate:     d.opts.SampleRate,
	}
	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}

	client, err := listenClient.NewWSUsingCallback(ctx, d.opts.APIKey, cOptions, tOptions, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	return client, nil
}
