package terminal

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"github.com/lexiqai/prompter/internal/session"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		ev   tcell.Event
		want Binding
	}{
		{"space toggles", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), Binding{Cmd: session.CmdToggle}},
		{"up is faster", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), Binding{Cmd: session.CmdFaster}},
		{"down is slower", tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), Binding{Cmd: session.CmdSlower}},
		{"plus", tcell.NewEventKey(tcell.KeyRune, '+', tcell.ModNone), Binding{Cmd: session.CmdFontIncrease}},
		{"equals", tcell.NewEventKey(tcell.KeyRune, '=', tcell.ModNone), Binding{Cmd: session.CmdFontIncrease}},
		{"minus", tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone), Binding{Cmd: session.CmdFontDecrease}},
		{"underscore", tcell.NewEventKey(tcell.KeyRune, '_', tcell.ModNone), Binding{Cmd: session.CmdFontDecrease}},
		{"fullscreen", tcell.NewEventKey(tcell.KeyRune, 'F', tcell.ModNone), Binding{Cmd: session.CmdToggleFullscreen}},
		{"mirror", tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone), Binding{Cmd: session.CmdToggleMirror}},
		{"voice", tcell.NewEventKey(tcell.KeyRune, 'v', tcell.ModNone), Binding{Cmd: session.CmdToggleVoiceFollow}},
		{"reset", tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone), Binding{Cmd: session.CmdReset}},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), Binding{Cmd: session.CmdExit}},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), Binding{Cmd: session.CmdExit}},
		{"page down", tcell.NewEventKey(tcell.KeyPgDn, 0, tcell.ModNone), Binding{Cmd: session.CmdScroll, Scroll: PageRows}},
		{"wheel up", tcell.NewEventMouse(0, 0, tcell.WheelUp, tcell.ModNone), Binding{Cmd: session.CmdScroll, Scroll: -WheelRows}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(tt.ev)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup_Unbound(t *testing.T) {
	_, ok := Lookup(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	assert.False(t, ok)

	_, ok = Lookup(tcell.NewEventMouse(3, 3, tcell.Button1, tcell.ModNone))
	assert.False(t, ok)

	_, ok = Lookup(tcell.NewEventResize(80, 24))
	assert.False(t, ok)
}
