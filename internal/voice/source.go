package voice

import (
	"errors"
	"fmt"
)

// Source is a continuous speech-activity source: a microphone VAD, a cloud
// recogniser, a remote browser. Start may be called again after the source
// ended on its own.
type Source interface {
	// Supported reports whether the platform offers this source at all
	Supported() bool

	// Start activates the source. Events for this activation go to ev until
	// Stop is called or the source reports End.
	Start(ev Events) error

	// Stop deactivates the source. Must be safe to call when not started.
	Stop()
}

// Events receives activity from a Source. Implementations may be called from
// any goroutine.
type Events interface {
	// Result reports recognised speech (an interim or final result)
	Result()

	// SpeechStart reports the onset of speech
	SpeechStart()

	// SpeechEnd reports that speech stopped
	SpeechEnd()

	// Error reports a source failure. Transient categories are recovered locally.
	Error(err error)

	// End reports that the source terminated
	End()
}

var (
	// ErrNoSpeech means the source gave up after hearing nothing
	ErrNoSpeech = errors.New("no-speech")

	// ErrAborted means the source was interrupted by the platform
	ErrAborted = errors.New("aborted")

	// ErrUnsupported means no voice source is available
	ErrUnsupported = errors.New("voice source not supported")
)

// SourceError carries the category reported by a source
type SourceError struct {
	Code string
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Code {
		return fmt.Sprintf("voice source error %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("voice source error %s", e.Code)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError builds an error for a source category code. The codes
// "no-speech" and "aborted" wrap the matching sentinels; cause may be nil.
func NewSourceError(code string, cause error) error {
	var sentinel error
	switch code {
	case ErrNoSpeech.Error():
		sentinel = ErrNoSpeech
	case ErrAborted.Error():
		sentinel = ErrAborted
	}

	switch {
	case sentinel != nil && cause != nil:
		return &SourceError{Code: code, Err: fmt.Errorf("%w: %v", sentinel, cause)}
	case sentinel != nil:
		return &SourceError{Code: code, Err: sentinel}
	default:
		return &SourceError{Code: code, Err: cause}
	}
}

// IsTransient reports whether err is a routine termination that should be
// recovered by restarting the source
func IsTransient(err error) bool {
	return errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted)
}

// Category returns a short label for metrics and logs
func Category(err error) string {
	var se *SourceError
	switch {
	case errors.Is(err, ErrNoSpeech):
		return ErrNoSpeech.Error()
	case errors.Is(err, ErrAborted):
		return ErrAborted.Error()
	case errors.As(err, &se) && se.Code != "":
		return se.Code
	default:
		return "unknown"
	}
}
