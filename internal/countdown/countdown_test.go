package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/prompter/internal/clock"
)

type recordingBeeper struct {
	ticks []int
	goes  int
}

func (r *recordingBeeper) Tick(d int) { r.ticks = append(r.ticks, d) }
func (r *recordingBeeper) Go()        { r.goes++ }

func TestCountdown_Sequence(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	b := &recordingBeeper{}
	cd := New(c, b)

	completed := 0
	cd.Start(func() { completed++ })
	require.True(t, cd.Active())
	assert.Equal(t, 3, cd.Digit())
	assert.True(t, cd.Visible())

	c.Advance(Visible)
	assert.Equal(t, 3, cd.Digit())
	assert.False(t, cd.Visible())

	c.Advance(Hidden)
	assert.Equal(t, 2, cd.Digit())
	assert.True(t, cd.Visible())

	c.Advance(2 * (Visible + Hidden))
	assert.Equal(t, 0, cd.Digit())
	assert.True(t, cd.Active())
	assert.Zero(t, completed)

	c.Advance(Tail - time.Millisecond)
	assert.Zero(t, completed)
	c.Advance(time.Millisecond)
	assert.Equal(t, 1, completed)
	assert.False(t, cd.Active())

	assert.Equal(t, []int{3, 2, 1}, b.ticks)
	assert.Equal(t, 1, b.goes)

	c.Advance(time.Minute)
	assert.Equal(t, 1, completed)
}

func TestCountdown_CancelNeverCompletes(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	cd := New(c, nil)

	completed := false
	cd.Start(func() { completed = true })
	c.Advance(1500 * time.Millisecond)
	cd.Cancel()

	assert.False(t, cd.Active())
	assert.Zero(t, c.Pending())
	c.Advance(time.Minute)
	assert.False(t, completed)

	cd.Cancel()
}

func TestCountdown_OnChangeAndRestart(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	cd := New(c, nil)
	changes := 0
	cd.OnChange(func() { changes++ })

	completed := 0
	cd.Start(func() { completed++ })
	c.Advance(Visible + Hidden)
	assert.Equal(t, 3, changes, "show 3, hide, show 2")

	cd.Start(func() { completed += 10 })
	assert.Equal(t, 3, cd.Digit())
	c.Advance(3*(Visible+Hidden) + Tail)
	assert.Equal(t, 10, completed, "only the latest callback runs")
}
