package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

const (
	CaptureChannels = 1
	captureBufferMs = 500
)

// ErrMicrophoneClosed is returned by ReadFrame after Close
var ErrMicrophoneClosed = errors.New("microphone closed")

// Microphone captures mono S16 audio from the default input device into a
// ring buffer. Capture runs from Open until Close, independent of listening.
type Microphone struct {
	sampleRate int
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	ring       *RingBuffer
	logger     zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenMicrophone starts capture at sampleRate with frameMs device periods
func OpenMicrophone(sampleRate, frameMs int, logger zerolog.Logger) (*Microphone, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	m := &Microphone{
		sampleRate: sampleRate,
		ctx:        ctx,
		ring:       NewRingBuffer(sampleRate * 2 * CaptureChannels * captureBufferMs / 1000),
		logger:     logger.With().Str("component", "microphone").Logger(),
		closed:     make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = uint32(frameMs)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = CaptureChannels
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	m.device, err = malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, inputSamples []byte, _ uint32) {
			if dropped := m.ring.Write(inputSamples); dropped > 0 {
				m.logger.Debug().Int("dropped_bytes", dropped).Msg("Capture buffer overrun")
			}
		},
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := m.device.Start(); err != nil {
		m.device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	m.logger.Info().Int("sample_rate", sampleRate).Int("period_ms", frameMs).Msg("Microphone capture started")
	return m, nil
}

// SampleRate returns the capture rate
func (m *Microphone) SampleRate() int {
	return m.sampleRate
}

// ReadFrame waits for len(buf) bytes of captured audio
func (m *Microphone) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	for {
		if m.ring.Available() >= len(buf) {
			return m.ring.Read(buf), nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-m.closed:
			return 0, ErrMicrophoneClosed
		case <-m.ring.Notify():
		}
	}
}

// Flush drops buffered audio so the next read starts from now
func (m *Microphone) Flush() {
	m.ring.Clear()
}

// Close stops capture and releases the device
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
		if m.device != nil {
			_ = m.device.Stop()
			m.device.Uninit()
		}
		if m.ctx != nil {
			_ = m.ctx.Uninit()
			m.ctx.Free()
		}
		m.logger.Info().Msg("Microphone capture stopped")
	})
	return nil
}
