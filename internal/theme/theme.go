package theme

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"
)

// Palette is the set of colours a toast is drawn with.
type Palette struct {
	Background           color.RGBA
	Title                color.RGBA
	Body                 color.RGBA
	AppName              color.RGBA
	Close                color.RGBA
	CloseHover           color.RGBA
	CloseHoverBackground color.RGBA
	Border               color.RGBA
	Shadow               color.RGBA
	ShadowOpacity        float64
	Placeholder          color.RGBA
}

// BodyHover returns the card background used while the pointer is over the body.
func (p Palette) BodyHover() color.RGBA {
	return blend(p.Background, p.Title, 0.06)
}

// Theme is a named pair of palettes with metadata.
type Theme struct {
	Name      string    // Theme name (without .toml extension)
	Path      string    // Full path to the theme file (empty for bundled themes)
	Dark      Palette   // Used when the dark colour scheme is active
	Light     Palette   // Falls back to Dark when the file has no [light] table
	ModTime   time.Time // Last modification time
	IsBundled bool      // True if this theme came from the embedded set
}

// Palette returns the palette for the requested colour scheme.
func (t *Theme) Palette(dark bool) Palette {
	if dark {
		return t.Dark
	}
	return t.Light
}

type paletteFile struct {
	Background           string   `toml:"background"`
	Title                string   `toml:"title"`
	Body                 string   `toml:"body"`
	AppName              string   `toml:"app_name"`
	Close                string   `toml:"close"`
	CloseHover           string   `toml:"close_hover"`
	CloseHoverBackground string   `toml:"close_hover_background"`
	Border               string   `toml:"border"`
	Shadow               string   `toml:"shadow"`
	ShadowOpacity        *float64 `toml:"shadow_opacity"`
	Placeholder          string   `toml:"placeholder"`
}

type themeFile struct {
	Dark  *paletteFile `toml:"dark"`
	Light *paletteFile `toml:"light"`
}

// Parse decodes a theme file. Colours missing from the file are taken
// from the classic palette so partial themes stay usable.
func Parse(name string, data []byte) (*Theme, error) {
	var f themeFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse theme %q: %w", name, err)
	}
	if f.Dark == nil {
		return nil, fmt.Errorf("theme %q has no [dark] palette", name)
	}

	dark, err := f.Dark.overlay(classicDark)
	if err != nil {
		return nil, fmt.Errorf("theme %q [dark]: %w", name, err)
	}

	light := dark
	if f.Light != nil {
		light, err = f.Light.overlay(dark)
		if err != nil {
			return nil, fmt.Errorf("theme %q [light]: %w", name, err)
		}
	}

	return &Theme{Name: name, Dark: dark, Light: light}, nil
}

func (f *paletteFile) overlay(base Palette) (Palette, error) {
	p := base
	fields := []struct {
		key string
		hex string
		dst *color.RGBA
	}{
		{"background", f.Background, &p.Background},
		{"title", f.Title, &p.Title},
		{"body", f.Body, &p.Body},
		{"app_name", f.AppName, &p.AppName},
		{"close", f.Close, &p.Close},
		{"close_hover", f.CloseHover, &p.CloseHover},
		{"close_hover_background", f.CloseHoverBackground, &p.CloseHoverBackground},
		{"border", f.Border, &p.Border},
		{"shadow", f.Shadow, &p.Shadow},
		{"placeholder", f.Placeholder, &p.Placeholder},
	}
	for _, fl := range fields {
		if strings.TrimSpace(fl.hex) == "" {
			continue
		}
		c, err := ParseHex(fl.hex)
		if err != nil {
			return p, fmt.Errorf("%s: %w", fl.key, err)
		}
		*fl.dst = c
	}
	if f.ShadowOpacity != nil {
		if *f.ShadowOpacity < 0 || *f.ShadowOpacity > 1 {
			return p, fmt.Errorf("shadow_opacity must be between 0 and 1, got %v", *f.ShadowOpacity)
		}
		p.ShadowOpacity = *f.ShadowOpacity
	}
	return p, nil
}

// ParseHex parses "#rrggbb" or "#rgb" into an opaque colour.
func ParseHex(s string) (color.RGBA, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	ca, _ := colorful.MakeColor(a)
	cb, _ := colorful.MakeColor(b)
	r, g, bl := ca.BlendLab(cb, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: bl, A: 0xff}
}

// classicDark mirrors themes/classic.toml and backs up partial user themes.
var classicDark = Palette{
	Background:           color.RGBA{R: 50, G: 57, B: 69, A: 0xff},
	Title:                color.RGBA{R: 255, G: 255, B: 255, A: 0xff},
	Body:                 color.RGBA{R: 255, G: 255, B: 255, A: 0xff},
	AppName:              color.RGBA{R: 255, G: 255, B: 255, A: 0xff},
	Close:                color.RGBA{R: 150, G: 150, B: 150, A: 0xff},
	CloseHover:           color.RGBA{R: 255, G: 255, B: 255, A: 0xff},
	CloseHoverBackground: color.RGBA{R: 196, G: 43, B: 28, A: 0xff},
	Border:               color.RGBA{R: 70, G: 80, B: 99, A: 0xff},
	Shadow:               color.RGBA{A: 0xff},
	ShadowOpacity:        0.45,
	Placeholder:          color.RGBA{R: 90, G: 100, B: 120, A: 0xff},
}

// NewTheme creates a new Theme by loading a theme file.
func NewTheme(name, path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	t, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	t.Path = path
	t.ModTime = info.ModTime()
	return t, nil
}

// NewDefaultTheme creates the embedded default theme.
func NewDefaultTheme() *Theme {
	data, _ := GetEmbeddedTheme(DefaultThemeName)
	t, err := Parse(DefaultThemeName, data)
	if err != nil {
		// The embedded file is covered by tests; keep the compiled-in palette as a floor.
		t = &Theme{Name: DefaultThemeName, Dark: classicDark, Light: classicDark}
	}
	t.IsBundled = true
	return t
}

// Reload re-reads the theme file if it has changed.
// It returns a fresh Theme and leaves t untouched, so readers of t need no locking.
// The bool reports whether any colour changed.
func (t *Theme) Reload() (*Theme, bool, error) {
	if t.IsBundled {
		return t, false, nil
	}

	info, err := os.Stat(t.Path)
	if err != nil {
		return t, false, err
	}

	// Check if modification time changed
	if !info.ModTime().After(t.ModTime) {
		return t, false, nil
	}

	data, err := os.ReadFile(t.Path)
	if err != nil {
		return t, false, err
	}

	fresh, err := Parse(t.Name, data)
	if err != nil {
		return t, false, err
	}
	fresh.Path = t.Path
	fresh.ModTime = info.ModTime()

	changed := fresh.Dark != t.Dark || fresh.Light != t.Light
	return fresh, changed, nil
}

// ThemeInfo describes one theme available by name.
type ThemeInfo struct {
	Name      string
	Path      string // Empty for bundled themes
	IsDefault bool
	IsBundled bool
	Overrides bool // A user file shadows the bundled theme of this name
}

// ListAvailableThemes lists bundled themes and those in ThemesDir.
func ListAvailableThemes() ([]ThemeInfo, error) {
	dir, err := ThemesDir()
	if err != nil {
		dir = ""
	}
	return ListThemesIn(dir)
}

// ListThemesIn lists bundled themes and the user themes in dir, sorted by
// name. A user file named like a bundled theme replaces its entry, the
// same way LoadTheme resolves it.
func ListThemesIn(dir string) ([]ThemeInfo, error) {
	byName := make(map[string]ThemeInfo)
	for _, name := range ListEmbeddedThemes() {
		byName[name] = ThemeInfo{Name: name, IsBundled: true}
	}

	var readErr error
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			readErr = fmt.Errorf("failed to read themes directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), ".toml")
			_, bundled := byName[name]
			byName[name] = ThemeInfo{
				Name:      name,
				Path:      filepath.Join(dir, entry.Name()),
				Overrides: bundled,
			}
		}
	}

	themes := make([]ThemeInfo, 0, len(byName))
	for _, info := range byName {
		info.IsDefault = info.Name == DefaultThemeName
		themes = append(themes, info)
	}
	slices.SortFunc(themes, func(a, b ThemeInfo) int { return strings.Compare(a.Name, b.Name) })
	return themes, readErr
}

// ThemesDir returns the path to the user's themes directory.
func ThemesDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "retrotoast", "themes"), nil
}
