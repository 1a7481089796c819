package theme

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedThemes(t *testing.T) {
	names := ListEmbeddedThemes()
	assert.ElementsMatch(t, BundledThemes, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			data, found := GetEmbeddedTheme(name)
			require.True(t, found)
			_, err := Parse(name, data)
			require.NoError(t, err)
		})
	}

	assert.False(t, IsEmbeddedTheme("nonexistent"))
}

func TestDefaultTheme_ClassicColours(t *testing.T) {
	th := NewDefaultTheme()
	assert.True(t, th.IsBundled)

	dark := th.Palette(true)
	assert.Equal(t, color.RGBA{R: 50, G: 57, B: 69, A: 255}, dark.Background)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dark.Title)
	assert.Equal(t, color.RGBA{R: 150, G: 150, B: 150, A: 255}, dark.Close)
	assert.Equal(t, classicDark, dark)

	light := th.Palette(false)
	assert.NotEqual(t, dark.Background, light.Background)
}

func TestParse_PartialFallsBack(t *testing.T) {
	th, err := Parse("mine", []byte("[dark]\nbackground = \"#102030\"\n"))
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}, th.Dark.Background)
	assert.Equal(t, classicDark.Title, th.Dark.Title)
	// No [light] table: the dark palette is reused
	assert.Equal(t, th.Dark, th.Light)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no dark table", "[light]\nbackground = \"#ffffff\"\n"},
		{"bad hex", "[dark]\nbackground = \"chartreuse\"\n"},
		{"unknown key", "[dark]\nbackgorund = \"#ffffff\"\n"},
		{"opacity range", "[dark]\nshadow_opacity = 3.0\n"},
		{"not toml", "[dark"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad", []byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#fff")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, c)

	c, err = ParseHex(" #323945 ")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 50, G: 57, B: 69, A: 255}, c)
}

func TestPalette_BodyHover(t *testing.T) {
	p := classicDark
	hover := p.BodyHover()
	assert.NotEqual(t, p.Background, hover)
	// Blending toward white text lightens the card
	assert.Greater(t, hover.R, p.Background.R)
}

func TestLoader_UserOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classic.toml"),
		[]byte("[dark]\nbackground = \"#000000\"\n"), 0644))

	l := NewLoaderWithDir(dir, nil)
	require.NoError(t, l.LoadTheme("classic"))

	assert.False(t, l.GetTheme().IsBundled)
	assert.Equal(t, color.RGBA{A: 255}, l.Palette().Background)
}

func TestLoader_FallsBackToDefault(t *testing.T) {
	l := NewLoaderWithDir(t.TempDir(), nil)
	require.NoError(t, l.LoadTheme("does-not-exist"))
	assert.Equal(t, DefaultThemeName, l.CurrentTheme())
}

func TestLoader_ColorScheme(t *testing.T) {
	l := NewLoaderWithDir("", nil)
	require.NoError(t, l.LoadTheme("classic"))
	th := l.GetTheme()

	l.SetColorScheme("light", true)
	assert.Equal(t, th.Light, l.Palette())

	l.SetColorScheme("dark", false)
	assert.Equal(t, th.Dark, l.Palette())

	l.SetColorScheme("system", false)
	assert.Equal(t, th.Light, l.Palette())
}

func TestLoader_ListThemes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ocean.toml"), []byte("[dark]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classic.toml"), []byte("[dark]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	l := NewLoaderWithDir(dir, nil)
	assert.Equal(t, []string{"classic", "contrast", "ocean"}, l.ListThemes())

	infos, err := ListThemesIn(dir)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	classic := infos[0]
	assert.True(t, classic.IsDefault)
	assert.True(t, classic.Overrides)
	assert.False(t, classic.IsBundled)
	assert.Equal(t, filepath.Join(dir, "classic.toml"), classic.Path)

	assert.True(t, infos[1].IsBundled)
	assert.Empty(t, infos[1].Path)
}

func TestTheme_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.toml")
	require.NoError(t, os.WriteFile(path, []byte("[dark]\nbackground = \"#111111\"\n"), 0644))

	th, err := NewTheme("mine", path)
	require.NoError(t, err)

	// Unchanged file
	same, changed, err := th.Reload()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, th, same)

	require.NoError(t, os.WriteFile(path, []byte("[dark]\nbackground = \"#222222\"\n"), 0644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	fresh, changed, err := th.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint8(0x22), fresh.Dark.Background.R)
	assert.Equal(t, uint8(0x11), th.Dark.Background.R)
}

func TestWatcher_BundledThemeNotWatched(t *testing.T) {
	w := NewWatcher(NewDefaultTheme(), nil)
	require.NoError(t, w.Start(context.Background()))
	assert.False(t, w.IsRunning())
}

func TestWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.toml")
	require.NoError(t, os.WriteFile(path, []byte("[dark]\n"), 0644))

	th, err := NewTheme("mine", path)
	require.NoError(t, err)

	w := NewWatcher(th, nil)
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	w.Stop()
	assert.False(t, w.IsRunning())
	// Second stop is a no-op
	w.Stop()
}
