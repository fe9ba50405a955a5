// Package terminal renders a prompter session with tcell and turns key and
// mouse input into session commands.
package terminal

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/layout"
	"github.com/lexiqai/prompter/internal/session"
)

// CellPx is the nominal height of one terminal row. At the smallest font
// size a line of text takes exactly one row.
const CellPx = layout.MinFontSize * layout.LineHeightFactor

const (
	chromeRows = 2 // progress bar and status bar
	margin     = 4
)

var (
	styleActive   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleRead     = tcell.StyleDefault.Foreground(tcell.ColorDimGray)
	styleUpcoming = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleGuide    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleProgress = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleTrack    = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	styleDigit    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleOverlay  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
)

// Poster runs functions on the goroutine that owns the session
type Poster interface {
	Post(fn func()) bool
}

// UI draws one session. Apart from Pump, every method must run on the
// goroutine that owns the session.
type UI struct {
	screen  tcell.Screen
	session *session.Session
	logger  zerolog.Logger

	dirty bool
	rows  int
}

// New binds a UI to an initialised screen
func New(screen tcell.Screen, s *session.Session, logger zerolog.Logger) *UI {
	u := &UI{
		screen:  screen,
		session: s,
		logger:  logger.With().Str("component", "terminal").Logger(),
		dirty:   true,
	}
	screen.EnableMouse()
	s.OnChange(func() { u.dirty = true })
	u.Fit()
	return u
}

// Fit sizes the session viewport to the screen
func (u *UI) Fit() {
	width, height := u.screen.Size()
	rows := height
	if !u.session.Snapshot().Fullscreen {
		rows -= chromeRows
	}
	if rows < 1 {
		rows = 1
	}
	columns := width - 2*margin
	if columns < 1 {
		columns = width
	}
	u.rows = rows
	u.session.Resize(columns, float64(rows)*CellPx)
	u.dirty = true
}

// HandleEvent applies one input event
func (u *UI) HandleEvent(ev tcell.Event) {
	if _, ok := ev.(*tcell.EventResize); ok {
		u.screen.Sync()
		u.Fit()
		return
	}

	b, ok := Lookup(ev)
	if !ok {
		return
	}
	if b.Cmd == session.CmdScroll {
		u.session.ScrollBy(float64(b.Scroll) * CellPx)
		return
	}
	if u.session.Dispatch(b.Cmd) && b.Cmd == session.CmdToggleFullscreen {
		u.Fit()
	}
}

// Frame redraws the screen if anything changed since the last frame
func (u *UI) Frame(time.Time) {
	if !u.dirty {
		return
	}
	u.Render()
	u.screen.Show()
}

// Pump forwards screen events to the owner until ctx is done or the screen is
// finalised
func (u *UI) Pump(ctx context.Context, owner Poster) {
	for {
		ev := u.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		if !owner.Post(func() { u.HandleEvent(ev) }) {
			return
		}
	}
}

// Render draws the current state into the screen buffer
func (u *UI) Render() {
	u.dirty = false
	u.screen.Clear()

	snap := u.session.Snapshot()
	width, _ := u.screen.Size()

	u.drawScript(snap, width)
	if !snap.Fullscreen {
		u.drawProgress(snap, width, u.rows)
		u.drawStatus(snap, width, u.rows+1)
	}
	switch {
	case snap.CountingDown:
		if snap.CountdownVisible {
			u.drawDigit(snap.CountdownDigit, width)
		}
	case snap.Done:
		u.drawCentered(u.rows/2+2, width, " End of script · r restart · esc exit ", styleOverlay)
	}
}

func (u *UI) drawScript(snap session.Snapshot, width int) {
	l := u.session.Layout()
	for i, block := range l.Blocks {
		style := styleUpcoming
		switch {
		case i == snap.ActiveLine:
			style = styleActive
		case i < snap.ActiveLine:
			style = styleRead
		}

		for k, seg := range block.Segments {
			y := block.Rect.Top + float64(k)*l.LineHeight - snap.Offset
			row := int(math.Floor(y / CellPx))
			if row < 0 || row >= u.rows {
				continue
			}
			if snap.Mirror {
				seg = reverse(seg)
			}
			u.drawCentered(row, width, seg, style)
		}
	}

	center := int(l.Center() / CellPx)
	if center < u.rows {
		guide := '▸'
		x := 0
		if snap.Mirror {
			guide, x = '◂', width-1
		}
		u.screen.SetContent(x, center, guide, nil, styleGuide)
	}
}

func (u *UI) drawProgress(snap session.Snapshot, width, row int) {
	filled := int(math.Round(snap.Position * float64(width)))
	for x := 0; x < width; x++ {
		if x < filled {
			u.screen.SetContent(x, row, '━', nil, styleProgress)
		} else {
			u.screen.SetContent(x, row, '─', nil, styleTrack)
		}
	}
}

func (u *UI) drawStatus(snap session.Snapshot, width, row int) {
	state := "❚❚ paused"
	switch {
	case snap.Done:
		state = "■ done"
	case snap.Playing:
		state = "▶ playing"
	}

	parts := []string{
		state,
		fmt.Sprintf("%.2fx", snap.Speed),
		fmt.Sprintf("font %d", snap.FontSize),
		snap.ElapsedText,
		voiceIndicator(snap),
	}
	if snap.Mirror {
		parts = append(parts, "mirror")
	}
	left := " " + strings.Join(parts, " │ ")
	right := "space play · ↑↓ speed · +/- font · m mirror · v voice · f full · r reset · esc exit "

	for x := 0; x < width; x++ {
		u.screen.SetContent(x, row, ' ', nil, styleStatus)
	}
	end := u.drawText(0, row, left, styleStatus)
	if rw := runewidth.StringWidth(right); end+rw+2 <= width {
		u.drawText(width-rw, row, right, styleStatus)
	}
}

func voiceIndicator(snap session.Snapshot) string {
	switch {
	case !snap.VoiceFollow:
		return "voice off"
	case !snap.VoiceSupported:
		return "voice unavailable"
	case snap.VoiceDetected:
		return "● speaking"
	case snap.Listening:
		return "○ listening"
	default:
		return "voice idle"
	}
}

// digits is a 3x5 block font for the countdown
var digits = map[int][5]string{
	1: {" █ ", "██ ", " █ ", " █ ", "███"},
	2: {"██ ", "  █", " █ ", "█  ", "███"},
	3: {"██ ", "  █", " █ ", "  █", "██ "},
}

func (u *UI) drawDigit(digit, width int) {
	glyph, ok := digits[digit]
	if !ok {
		u.drawCentered(u.rows/2, width, fmt.Sprint(digit), styleDigit)
		return
	}
	top := u.rows/2 - 2
	for i, line := range glyph {
		// double the width so the digit looks square
		var wide strings.Builder
		for _, r := range line {
			wide.WriteRune(r)
			wide.WriteRune(r)
		}
		u.drawCentered(top+i, width, wide.String(), styleDigit)
	}
}

func (u *UI) drawCentered(row, width int, text string, style tcell.Style) {
	x := (width - runewidth.StringWidth(text)) / 2
	if x < 0 {
		x = 0
	}
	u.drawText(x, row, text, style)
}

func (u *UI) drawText(x, y int, text string, style tcell.Style) int {
	for _, r := range text {
		u.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
	return x
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
