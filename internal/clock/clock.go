package clock

import "time"

// Clock abstracts wall time and deferred callbacks so that timers can be
// driven by the session loop in production and stepped manually in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancelable deferred callback
type Timer interface {
	// Stop prevents the callback from running. Returns false if it already ran
	// or was stopped.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
