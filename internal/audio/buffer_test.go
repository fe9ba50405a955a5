package audio

import (
	"bytes"
	"testing"
)

func TestRingBuffer_WriteRead(t *testing.T) {
	rb := NewRingBuffer(10)

	if dropped := rb.Write([]byte{1, 2, 3, 4, 5}); dropped != 0 {
		t.Errorf("Expected nothing dropped, got %d", dropped)
	}
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	out := make([]byte, 3)
	if n := rb.Read(out); n != 3 {
		t.Errorf("Expected to read 3 bytes, got %d", n)
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", out)
	}
	if rb.Available() != 2 {
		t.Errorf("Expected available 2, got %d", rb.Available())
	}
}

func TestRingBuffer_Wraparound(t *testing.T) {
	rb := NewRingBuffer(5)
	rb.Write([]byte{1, 2, 3, 4})
	rb.Read(make([]byte, 3))
	rb.Write([]byte{5, 6, 7})

	out := make([]byte, 10)
	n := rb.Read(out)
	if !bytes.Equal(out[:n], []byte{4, 5, 6, 7}) {
		t.Errorf("Expected [4 5 6 7], got %v", out[:n])
	}
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{1, 2, 3})

	if dropped := rb.Write([]byte{4, 5, 6}); dropped != 2 {
		t.Errorf("Expected 2 bytes dropped, got %d", dropped)
	}
	out := make([]byte, 4)
	n := rb.Read(out)
	if !bytes.Equal(out[:n], []byte{3, 4, 5, 6}) {
		t.Errorf("Expected newest bytes [3 4 5 6], got %v", out[:n])
	}
}

func TestRingBuffer_OversizedWrite(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Write([]byte{9})

	if dropped := rb.Write([]byte{1, 2, 3, 4, 5}); dropped != 3 {
		t.Errorf("Expected 3 bytes dropped, got %d", dropped)
	}
	out := make([]byte, 3)
	rb.Read(out)
	if !bytes.Equal(out, []byte{3, 4, 5}) {
		t.Errorf("Expected [3 4 5], got %v", out)
	}
}

func TestRingBuffer_NotifyAndClear(t *testing.T) {
	rb := NewRingBuffer(8)

	select {
	case <-rb.Notify():
		t.Fatal("Expected no notification before a write")
	default:
	}

	rb.Write([]byte{1})
	rb.Write([]byte{2})
	select {
	case <-rb.Notify():
	default:
		t.Fatal("Expected a notification after writes")
	}

	rb.Clear()
	if rb.Available() != 0 {
		t.Errorf("Expected empty buffer after clear, got %d", rb.Available())
	}
	if n := rb.Read(make([]byte, 4)); n != 0 {
		t.Errorf("Expected to read 0 bytes, got %d", n)
	}
}
