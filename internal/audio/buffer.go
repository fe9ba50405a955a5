package audio

import (
	"sync"
)

// RingBuffer is a thread-safe byte ring for captured audio. When full, the
// oldest bytes are overwritten so readers always see the most recent audio.
type RingBuffer struct {
	buffer []byte
	size   int
	read   int
	count  int
	notify chan struct{}
	mu     sync.Mutex
}

// NewRingBuffer creates a ring buffer holding up to size bytes
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
		notify: make(chan struct{}, 1),
	}
}

// Write appends data and returns how many old bytes were dropped to make room
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(data) >= rb.size {
		dropped := rb.count + len(data) - rb.size
		copy(rb.buffer, data[len(data)-rb.size:])
		rb.read = 0
		rb.count = rb.size
		rb.signal()
		return dropped
	}

	dropped := 0
	if over := rb.count + len(data) - rb.size; over > 0 {
		rb.read = (rb.read + over) % rb.size
		rb.count -= over
		dropped = over
	}

	write := (rb.read + rb.count) % rb.size
	n := copy(rb.buffer[write:], data)
	copy(rb.buffer, data[n:])
	rb.count += len(data)
	rb.signal()
	return dropped
}

// Read copies up to len(data) bytes out of the buffer
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(data)
	if n > rb.count {
		n = rb.count
	}
	first := copy(data[:n], rb.buffer[rb.read:])
	copy(data[first:n], rb.buffer)
	rb.read = (rb.read + n) % rb.size
	rb.count -= n
	return n
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Notify receives a value after writes. Readers waiting for a full frame
// select on it and re-check Available.
func (rb *RingBuffer) Notify() <-chan struct{} {
	return rb.notify
}

// Clear discards buffered data
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.read = 0
	rb.count = 0
}

func (rb *RingBuffer) signal() {
	select {
	case rb.notify <- struct{}{}:
	default:
	}
}
