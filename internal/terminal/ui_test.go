package terminal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/prompter/internal/clock"
	"github.com/lexiqai/prompter/internal/session"
	"github.com/lexiqai/prompter/internal/settings"
)

const script = "alpha\nbravo\ncharlie\ndelta"

type fixture struct {
	screen  tcell.SimulationScreen
	session *session.Session
	ui      *UI
	fini    func()
}

// 60x12 screen: 10 script rows, the first line sits on the center row 5
func newFixture(t *testing.T, countdown bool) *fixture {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(60, 12)
	var once sync.Once
	fini := func() { once.Do(screen.Fini) }
	t.Cleanup(fini)

	st := settings.Defaults()
	st.ShowCountdown = countdown
	s, err := session.New(session.Options{
		ID:       "ui-test",
		Script:   script,
		Settings: st,
		Clock:    clock.NewFake(time.Unix(0, 0)),
		Frames:   &clock.ManualFrames{},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	f := &fixture{screen: screen, session: s, fini: fini}
	f.ui = New(screen, s, zerolog.Nop())
	s.Begin()
	return f
}

func (f *fixture) row(y int) string {
	width, _ := f.screen.Size()
	var b strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := f.screen.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (f *fixture) press(r rune) {
	f.ui.HandleEvent(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
}

func TestUI_RendersActiveLineAtCenter(t *testing.T) {
	f := newFixture(t, false)
	f.ui.Render()

	assert.Contains(t, f.row(5), "alpha")
	assert.Contains(t, f.row(8), "bravo")

	x := strings.Index(f.row(5), "alpha")
	_, _, style, _ := f.screen.GetContent(x, 5)
	assert.Equal(t, styleActive, style)

	_, _, style, _ = f.screen.GetContent(strings.Index(f.row(8), "bravo"), 8)
	assert.Equal(t, styleUpcoming, style)
}

func TestUI_StatusBar(t *testing.T) {
	f := newFixture(t, false)
	f.ui.Render()

	status := f.row(11)
	assert.Contains(t, status, "playing")
	assert.Contains(t, status, "1.00x")
	assert.Contains(t, status, "font 32")
	assert.Contains(t, status, "voice off")

	f.press(' ')
	f.ui.HandleEvent(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone))
	f.ui.Render()
	status = f.row(11)
	assert.Contains(t, status, "paused")
	assert.Contains(t, status, "1.25x")
}

func TestUI_MirrorReversesText(t *testing.T) {
	f := newFixture(t, false)
	f.press('m')
	f.ui.Render()

	assert.True(t, f.session.Snapshot().Mirror)
	assert.Contains(t, f.row(5), "ahpla")
	assert.NotContains(t, f.row(5), "alpha")
	assert.Contains(t, f.row(11), "mirror")
}

func TestUI_FullscreenHidesChrome(t *testing.T) {
	f := newFixture(t, false)
	f.press('f')
	f.ui.Render()

	assert.True(t, f.session.Snapshot().Fullscreen)
	assert.NotContains(t, f.row(11), "font")
	assert.Contains(t, f.row(6), "alpha", "viewport grew to the full screen")
}

func TestUI_ManualScroll(t *testing.T) {
	f := newFixture(t, false)
	f.press(' ')
	before := f.session.Snapshot().Offset

	f.ui.HandleEvent(tcell.NewEventKey(tcell.KeyPgDn, 0, tcell.ModNone))
	assert.InDelta(t, before+PageRows*CellPx, f.session.Snapshot().Offset, 0.001)
}

func TestUI_CountdownDigit(t *testing.T) {
	f := newFixture(t, true)
	f.ui.Render()

	snap := f.session.Snapshot()
	require.True(t, snap.CountingDown)
	assert.Equal(t, 3, snap.CountdownDigit)
	assert.Contains(t, f.row(3), "████")

	f.press(' ')
	assert.False(t, f.session.Snapshot().Playing, "keys other than exit wait for the countdown")
}

func TestUI_DoneOverlay(t *testing.T) {
	f := newFixture(t, false)
	f.session.ScrollBy(100000)
	require.True(t, f.session.Snapshot().Done)

	f.ui.Render()
	assert.Contains(t, f.row(7), "End of script")
	assert.Contains(t, f.row(11), "done")
}

func TestUI_FrameOnlyWhenDirty(t *testing.T) {
	f := newFixture(t, false)
	f.ui.Frame(time.Now())
	assert.False(t, f.ui.dirty)

	f.press('m')
	assert.True(t, f.ui.dirty)
	f.ui.Frame(time.Now())
	assert.False(t, f.ui.dirty)
}

type chanPoster chan func()

func (c chanPoster) Post(fn func()) bool {
	c <- fn
	return true
}

func TestUI_PumpPostsEvents(t *testing.T) {
	f := newFixture(t, false)
	posted := make(chanPoster, 4)
	done := make(chan struct{})
	go func() {
		f.ui.Pump(context.Background(), posted)
		close(done)
	}()

	f.screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
	select {
	case fn := <-posted:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("expected the key to be posted")
	}
	assert.True(t, f.session.Snapshot().Exited)

	f.fini()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Pump to return after Fini")
	}
}
