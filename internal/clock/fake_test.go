package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var order []string

	c.AfterFunc(300*time.Millisecond, func() { order = append(order, "b") })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	c.AfterFunc(time.Second, func() { order = append(order, "c") })

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, c.Pending())

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, time.Unix(1, 0), c.Now())
}

func TestFake_StopAndChainedTimers(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := 0

	tm := c.AfterFunc(100*time.Millisecond, func() { fired++ })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())

	c.AfterFunc(100*time.Millisecond, func() {
		c.AfterFunc(100*time.Millisecond, func() { fired += 10 })
	})

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, 10, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestManualFrames_SinglePending(t *testing.T) {
	var f ManualFrames
	ran := 0

	cancel := f.RequestFrame(func(time.Time) { ran++ })
	f.RequestFrame(func(time.Time) { ran += 10 })
	cancel() // stale cancel must not drop the newer request

	assert.True(t, f.Pending())
	assert.True(t, f.Fire(time.Now()))
	assert.Equal(t, 10, ran)
	assert.False(t, f.Fire(time.Now()))
	assert.Equal(t, 2, f.Requests())
}
