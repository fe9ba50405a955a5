package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/voice"
)

// PCMReader yields 16-bit little-endian mono PCM one frame at a time.
// ReadFrame blocks until buf is full, ctx is done or the input ends (io.EOF).
type PCMReader interface {
	ReadFrame(ctx context.Context, buf []byte) (int, error)
}

// EnergySource is a voice.Source that runs the energy detector over local audio.
// One reader goroutine owns the input for the source's lifetime and hands
// frames to whichever activation is current, so restarts never read the input
// concurrently.
type EnergySource struct {
	reader  PCMReader
	config  *VADConfig
	logger  zerolog.Logger
	onBytes func(n int)

	pumpOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	active *activation
	ended  error
}

// activation is one Start..Stop span. Its detector is only touched by the
// reader goroutine.
type activation struct {
	ev      voice.Events
	vad     *VADDetector
	stopped atomic.Bool
}

// NewEnergySource creates a source over reader. A nil reader is unsupported.
func NewEnergySource(reader PCMReader, config *VADConfig, logger zerolog.Logger) *EnergySource {
	if config == nil {
		config = DefaultVADConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EnergySource{
		reader: reader,
		config: config,
		logger: logger.With().Str("component", "energy_source").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnBytes registers a callback for every frame delivered to an activation,
// for metrics. Set it before the first Start.
func (s *EnergySource) OnBytes(fn func(n int)) {
	s.onBytes = fn
}

// Supported reports whether there is any audio to listen to
func (s *EnergySource) Supported() bool {
	return s.reader != nil
}

// Start begins a new activation with a fresh detector, replacing any previous
// one. If the input has already ended, the activation fails right away.
func (s *EnergySource) Start(ev voice.Events) error {
	if s.reader == nil {
		return voice.ErrUnsupported
	}

	act := &activation{ev: ev, vad: NewVADDetector(s.config)}
	s.mu.Lock()
	if s.active != nil {
		s.active.stopped.Store(true)
	}
	s.active = act
	ended := s.ended
	s.mu.Unlock()

	if ended != nil {
		go s.fail(act, ended)
		return nil
	}
	s.pumpOnce.Do(func() { go s.pump() })
	return nil
}

// Stop ends the current activation. No events follow for it.
func (s *EnergySource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.stopped.Store(true)
		s.active = nil
	}
}

// Close stops the activation and the reader goroutine
func (s *EnergySource) Close() {
	s.Stop()
	s.cancel()
}

func (s *EnergySource) current() *activation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *EnergySource) pump() {
	buf := make([]byte, s.config.FrameSize*2)

	for {
		n, err := s.reader.ReadFrame(s.ctx, buf)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info().Msg("Audio input ended")
			} else {
				s.logger.Warn().Err(err).Msg("Audio capture failed")
			}
			s.mu.Lock()
			s.ended = err
			act := s.active
			s.mu.Unlock()
			if act != nil {
				s.fail(act, err)
			}
			return
		}

		act := s.current()
		if act == nil {
			continue
		}
		if s.onBytes != nil {
			s.onBytes(n)
		}
		samples, err := BytesToSamples(buf[:n-n%2])
		if err != nil {
			continue
		}
		_, started, ended := act.vad.ProcessFrame(samples)
		if act.stopped.Load() {
			continue
		}
		switch {
		case started:
			s.logger.Debug().Float64("rms", act.vad.Level()).Msg("Speech started")
			act.ev.SpeechStart()
		case ended:
			s.logger.Debug().Msg("Speech ended")
			act.ev.SpeechEnd()
		}
	}
}

// fail reports an input failure to act. Input that ends for good is
// classified apart so it is not restarted.
func (s *EnergySource) fail(act *activation, err error) {
	if act.stopped.Load() {
		return
	}
	code := "audio-capture"
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		code = "audio-ended"
	}
	act.ev.Error(voice.NewSourceError(code, err))
	act.ev.End()
}

// StreamReader reads raw frames from an io.Reader such as stdin or a pipe
// from an external recorder, decoding μ-law input when asked to.
type StreamReader struct {
	r        io.Reader
	encoding string
	raw      []byte
}

// NewStreamReader wraps r. encoding is EncodingLinear16 or EncodingMulaw.
func NewStreamReader(r io.Reader, encoding string) (*StreamReader, error) {
	switch encoding {
	case "", EncodingLinear16:
		encoding = EncodingLinear16
	case EncodingMulaw:
	default:
		return nil, fmt.Errorf("unsupported audio encoding %q", encoding)
	}
	return &StreamReader{r: r, encoding: encoding}, nil
}

// ReadFrame fills buf with one frame of 16-bit PCM. ctx is only checked
// between reads; the underlying reader must be closed to unblock a read.
func (sr *StreamReader) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if sr.encoding == EncodingLinear16 {
		return io.ReadFull(sr.r, buf)
	}

	need := len(buf) / 2
	if cap(sr.raw) < need {
		sr.raw = make([]byte, need)
	}
	raw := sr.raw[:need]
	n, err := io.ReadFull(sr.r, raw)
	if n == 0 {
		return 0, err
	}
	pcm, convErr := ConvertPCMUToPCM(raw[:n])
	if convErr != nil {
		return 0, convErr
	}
	return copy(buf, pcm), err
}
