// Package config handles configuration file loading and parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the retrotoast configuration.
// Loaded from ~/.config/retrotoast/config.toml
type Config struct {
	Display  DisplayConfig  `toml:"display" yaml:"display"`
	Timeouts TimeoutConfig  `toml:"timeouts" yaml:"timeouts"`
	Behavior BehaviorConfig `toml:"behavior" yaml:"behavior"`
	Mouse    MouseConfig    `toml:"mouse" yaml:"mouse"`
	Audio    AudioConfig    `toml:"audio" yaml:"audio"`
	Theme    ThemeConfig    `toml:"theme" yaml:"theme"`
}

// DisplayConfig contains geometry and stacking settings.
type DisplayConfig struct {
	Position   string `toml:"position" yaml:"position"`       // "bottom-right", "top-left", etc.
	OffsetX    int    `toml:"offset_x" yaml:"offset_x"`       // Pixels from the work area edge
	OffsetY    int    `toml:"offset_y" yaml:"offset_y"`       // Pixels from the work area edge
	Width      int    `toml:"width" yaml:"width"`             // Card width in pixels
	Height     int    `toml:"height" yaml:"height"`           // Card height in pixels
	Gap        int    `toml:"gap" yaml:"gap"`                 // Gap between stacked toasts
	MaxVisible int    `toml:"max_visible" yaml:"max_visible"` // Older toasts are evicted beyond this
	IconSize   int    `toml:"icon_size" yaml:"icon_size"`
	Margin     int    `toml:"margin" yaml:"margin"` // Inner padding of the card
	Shadow     bool   `toml:"shadow" yaml:"shadow"` // Only honoured when the compositor is running
	ShadowSize int    `toml:"shadow_size" yaml:"shadow_size"`
}

// TimeoutConfig contains lifetime settings.
// Durations can be specified as "5s", "250ms", etc. or as integer milliseconds.
type TimeoutConfig struct {
	Default Duration `toml:"default" yaml:"default"` // Lifetime for model.TimeoutDefault
	Tick    Duration `toml:"tick" yaml:"tick"`       // Countdown timer interval
}

// BehaviorConfig contains behavior settings.
type BehaviorConfig struct {
	PauseOnHover bool `toml:"pause_on_hover" yaml:"pause_on_hover"` // Freeze the countdown under the pointer
}

// MouseConfig maps clicks outside the close control to actions.
type MouseConfig struct {
	BodyClick string `toml:"body_click" yaml:"body_click"` // "none" or "dismiss"
}

// AudioConfig contains audio settings.
type AudioConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Volume  int    `toml:"volume" yaml:"volume"` // 0-100
	Sound   string `toml:"sound" yaml:"sound"`   // Empty plays the built-in chime
}

// ThemeConfig contains theme settings.
type ThemeConfig struct {
	Name        string `toml:"name" yaml:"name"`                 // Theme name without .toml extension
	ColorScheme string `toml:"color_scheme" yaml:"color_scheme"` // "system", "light", or "dark"
}

// ColorScheme represents the color scheme preference.
type ColorScheme string

const (
	ColorSchemeSystem ColorScheme = "system"
	ColorSchemeLight  ColorScheme = "light"
	ColorSchemeDark   ColorScheme = "dark"
)

// ValidColorSchemes returns all valid color scheme values.
func ValidColorSchemes() []ColorScheme {
	return []ColorScheme{ColorSchemeSystem, ColorSchemeLight, ColorSchemeDark}
}

// MouseAction represents what a body click does.
type MouseAction string

const (
	MouseActionDismiss MouseAction = "dismiss"
	MouseActionNone    MouseAction = "none"
)

// Position represents the screen corner or edge toasts are anchored to.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionTopCenter    Position = "top-center"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomCenter Position = "bottom-center"
)

// ValidPositions returns all valid position values.
func ValidPositions() []Position {
	return []Position{
		PositionTopLeft,
		PositionTopRight,
		PositionTopCenter,
		PositionBottomLeft,
		PositionBottomRight,
		PositionBottomCenter,
	}
}

// IsBottom reports whether the anchor is on the bottom edge.
func (p Position) IsBottom() bool {
	return strings.HasPrefix(string(p), "bottom-")
}

// DefaultConfig returns a new Config with default values.
// Geometry and margins follow the classic 360x170 toast card.
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			Position:   string(PositionBottomRight),
			OffsetX:    15,
			OffsetY:    15,
			Width:      360,
			Height:     170,
			Gap:        10,
			MaxVisible: 5,
			IconSize:   16,
			Margin:     16,
			Shadow:     true,
			ShadowSize: 8,
		},
		Timeouts: TimeoutConfig{
			Default: Duration(5 * time.Second),
			Tick:    Duration(250 * time.Millisecond),
		},
		Behavior: BehaviorConfig{
			PauseOnHover: true,
		},
		Mouse: MouseConfig{
			BodyClick: string(MouseActionNone),
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  80,
		},
		Theme: ThemeConfig{
			Name:        "classic",
			ColorScheme: string(ColorSchemeSystem),
		},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "retrotoast", "config.toml"), nil
}

// Load loads the configuration from path, or from Path() when empty.
// If the file doesn't exist, returns the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path, or to Path() when empty.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(ValidPositions(), Position(c.Display.Position)) {
		return fmt.Errorf("invalid position %q, must be one of: %v", c.Display.Position, ValidPositions())
	}

	if c.Display.Width < 100 || c.Display.Width > 1000 {
		return fmt.Errorf("width must be between 100 and 1000, got %d", c.Display.Width)
	}
	if c.Display.Height < 40 || c.Display.Height > 600 {
		return fmt.Errorf("height must be between 40 and 600, got %d", c.Display.Height)
	}
	if c.Display.Gap < 0 {
		return fmt.Errorf("gap must not be negative, got %d", c.Display.Gap)
	}
	if c.Display.MaxVisible < 1 || c.Display.MaxVisible > 20 {
		return fmt.Errorf("max_visible must be between 1 and 20, got %d", c.Display.MaxVisible)
	}
	if c.Display.IconSize < 8 || c.Display.IconSize > 128 {
		return fmt.Errorf("icon_size must be between 8 and 128, got %d", c.Display.IconSize)
	}
	if c.Display.Margin < 0 || 2*c.Display.Margin+c.Display.IconSize >= c.Display.Height {
		return fmt.Errorf("margin %d does not fit a card of height %d", c.Display.Margin, c.Display.Height)
	}
	if c.Display.ShadowSize < 0 || c.Display.ShadowSize > 32 {
		return fmt.Errorf("shadow_size must be between 0 and 32, got %d", c.Display.ShadowSize)
	}

	if c.Timeouts.Default.Duration() < 0 {
		return fmt.Errorf("default timeout must not be negative, got %s", c.Timeouts.Default)
	}
	if c.Timeouts.Tick.Duration() < 10*time.Millisecond {
		return fmt.Errorf("tick must be at least 10ms, got %s", c.Timeouts.Tick)
	}

	switch MouseAction(c.Mouse.BodyClick) {
	case MouseActionDismiss, MouseActionNone:
	default:
		return fmt.Errorf("invalid body_click action %q", c.Mouse.BodyClick)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	if !slices.Contains(ValidColorSchemes(), ColorScheme(c.Theme.ColorScheme)) {
		return fmt.Errorf("invalid color_scheme %q, must be one of: %v", c.Theme.ColorScheme, ValidColorSchemes())
	}

	return nil
}

// SoundPath returns the configured sound file with ~ expanded.
func (c *Config) SoundPath() string {
	return ExpandPath(c.Audio.Sound)
}

// ShadowPadding returns the padding reserved around the card for the shadow,
// or 0 when shadows are off or the compositor is unavailable.
func (c *Config) ShadowPadding(compositor bool) int {
	if !c.Display.Shadow || !compositor {
		return 0
	}
	return c.Display.ShadowSize
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
