package terminal

import (
	"github.com/gdamore/tcell/v2"

	"github.com/lexiqai/prompter/internal/session"
)

// Rows scrolled by one wheel notch and by PgUp/PgDn
const (
	WheelRows = 3
	PageRows  = 10
)

// Binding is what an input event asks for: a command or a manual scroll in rows
type Binding struct {
	Cmd    session.Command
	Scroll int
}

var runeBindings = map[rune]session.Command{
	' ': session.CmdToggle,
	'+': session.CmdFontIncrease,
	'=': session.CmdFontIncrease,
	'-': session.CmdFontDecrease,
	'_': session.CmdFontDecrease,
	'f': session.CmdToggleFullscreen,
	'F': session.CmdToggleFullscreen,
	'm': session.CmdToggleMirror,
	'M': session.CmdToggleMirror,
	'v': session.CmdToggleVoiceFollow,
	'V': session.CmdToggleVoiceFollow,
	'r': session.CmdReset,
	'R': session.CmdReset,
}

var keyBindings = map[tcell.Key]Binding{
	tcell.KeyUp:     {Cmd: session.CmdFaster},
	tcell.KeyDown:   {Cmd: session.CmdSlower},
	tcell.KeyEscape: {Cmd: session.CmdExit},
	tcell.KeyCtrlC:  {Cmd: session.CmdExit},
	tcell.KeyPgUp:   {Cmd: session.CmdScroll, Scroll: -PageRows},
	tcell.KeyPgDn:   {Cmd: session.CmdScroll, Scroll: PageRows},
}

// Lookup maps a key or mouse event to a binding
func Lookup(ev tcell.Event) (Binding, bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyRune {
			cmd, ok := runeBindings[ev.Rune()]
			return Binding{Cmd: cmd}, ok
		}
		b, ok := keyBindings[ev.Key()]
		return b, ok
	case *tcell.EventMouse:
		switch {
		case ev.Buttons()&tcell.WheelUp != 0:
			return Binding{Cmd: session.CmdScroll, Scroll: -WheelRows}, true
		case ev.Buttons()&tcell.WheelDown != 0:
			return Binding{Cmd: session.CmdScroll, Scroll: WheelRows}, true
		}
	}
	return Binding{}, false
}
