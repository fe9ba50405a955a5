package session

import (
	"fmt"
	"strings"
)

// Command is a user action on a running session
type Command int

const (
	CmdToggle Command = iota + 1
	CmdFaster
	CmdSlower
	CmdFontIncrease
	CmdFontDecrease
	CmdToggleFullscreen
	CmdToggleMirror
	CmdToggleVoiceFollow
	CmdExit
	CmdReset
	// CmdScroll carries a pixel delta and is applied with ScrollBy
	CmdScroll
)

var commandNames = map[Command]string{
	CmdToggle:            "toggle",
	CmdFaster:            "faster",
	CmdSlower:            "slower",
	CmdFontIncrease:      "font_increase",
	CmdFontDecrease:      "font_decrease",
	CmdToggleFullscreen:  "toggle_fullscreen",
	CmdToggleMirror:      "toggle_mirror",
	CmdToggleVoiceFollow: "toggle_voice_follow",
	CmdExit:              "exit",
	CmdReset:             "reset",
	CmdScroll:            "scroll",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// ParseCommand maps a command name, as used in String, back to its value
func ParseCommand(name string) (Command, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}
