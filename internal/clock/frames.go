package clock

import "time"

// ManualFrames is a frame scheduler for tests. It holds at most one pending
// frame request, mirroring a display's animation-frame callback.
type ManualFrames struct {
	pending  func(time.Time)
	token    int
	requests int
}

// RequestFrame registers fn for the next Fire, replacing any pending request
func (m *ManualFrames) RequestFrame(fn func(now time.Time)) (cancel func()) {
	m.token++
	m.requests++
	token := m.token
	m.pending = fn
	return func() {
		if m.token == token {
			m.pending = nil
		}
	}
}

// Fire runs the pending request, if any, and reports whether one ran
func (m *ManualFrames) Fire(now time.Time) bool {
	fn := m.pending
	if fn == nil {
		return false
	}
	m.pending = nil
	m.token++
	fn(now)
	return true
}

// Pending reports whether a frame is requested
func (m *ManualFrames) Pending() bool {
	return m.pending != nil
}

// Requests returns how many frames have been requested so far
func (m *ManualFrames) Requests() int {
	return m.requests
}
