// Package settings persists the prompter preferences between runs.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/lexiqai/prompter/internal/layout"
	"github.com/lexiqai/prompter/internal/scroll"
)

const (
	keyScript        = "script"
	keyFontSize      = "font_size"
	keyScrollSpeed   = "scroll_speed"
	keyShowCountdown = "show_countdown"
	keyMirrorMode    = "mirror_mode"
	keyVoiceFollow   = "voice_follow"
)

// Settings are the user preferences a session starts from
type Settings struct {
	Script        string  `json:"script"`
	FontSize      int     `json:"font_size"`
	ScrollSpeed   float64 `json:"scroll_speed"`
	ShowCountdown bool    `json:"show_countdown"`
	MirrorMode    bool    `json:"mirror_mode"`
	VoiceFollow   bool    `json:"voice_follow"`
}

// Defaults returns the settings used when nothing has been saved yet
func Defaults() Settings {
	return Settings{
		FontSize:      32,
		ScrollSpeed:   1,
		ShowCountdown: true,
	}
}

// Normalize clamps numeric fields into the ranges the prompter accepts
func (s Settings) Normalize() Settings {
	s.FontSize = layout.ClampFontSize(s.FontSize)
	s.ScrollSpeed = scroll.ClampSpeed(s.ScrollSpeed)
	return s
}

// Store reads and writes settings in a YAML file. PROMPTER_* environment
// variables override the file.
type Store struct {
	v    *viper.Viper
	path string
}

// Open prepares a store at path. A missing file is not an error.
func Open(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	d := Defaults()
	v.SetDefault(keyScript, d.Script)
	v.SetDefault(keyFontSize, d.FontSize)
	v.SetDefault(keyScrollSpeed, d.ScrollSpeed)
	v.SetDefault(keyShowCountdown, d.ShowCountdown)
	v.SetDefault(keyMirrorMode, d.MirrorMode)
	v.SetDefault(keyVoiceFollow, d.VoiceFollow)

	v.SetEnvPrefix("PROMPTER")
	v.BindEnv(keyFontSize)
	v.BindEnv(keyScrollSpeed)
	v.BindEnv(keyShowCountdown)
	v.BindEnv(keyMirrorMode)
	v.BindEnv(keyVoiceFollow)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}
	return &Store{v: v, path: path}, nil
}

// Path returns the settings file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored settings, normalized
func (s *Store) Load() Settings {
	return Settings{
		Script:        s.v.GetString(keyScript),
		FontSize:      s.v.GetInt(keyFontSize),
		ScrollSpeed:   s.v.GetFloat64(keyScrollSpeed),
		ShowCountdown: s.v.GetBool(keyShowCountdown),
		MirrorMode:    s.v.GetBool(keyMirrorMode),
		VoiceFollow:   s.v.GetBool(keyVoiceFollow),
	}.Normalize()
}

// Save writes settings to the file, creating its directory if needed
func (s *Store) Save(st Settings) error {
	st = st.Normalize()
	s.v.Set(keyScript, st.Script)
	s.v.Set(keyFontSize, st.FontSize)
	s.v.Set(keyScrollSpeed, st.ScrollSpeed)
	s.v.Set(keyShowCountdown, st.ShowCountdown)
	s.v.Set(keyMirrorMode, st.MirrorMode)
	s.v.Set(keyVoiceFollow, st.VoiceFollow)

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings dir: %w", err)
		}
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", s.path, err)
	}
	return nil
}
