package theme

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"go-lightsynth/colormap"
	"go-lightsynth/light"
)

//go:embed plasma.gpl
var plasmaGPL string

type Theme struct {
	Palette *colormap.Palette
	Symbols Symbols
}

type Symbols struct {
	Lit      rune // ■ light with any output
	Dark     rune // □ light at black
	Unmapped rune // · pad with no light
}

func New(palette *colormap.Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Lit:      '■',
			Dark:     '□',
			Unmapped: '·',
		},
	}
}

// Default returns the built-in plasma theme
func Default() *Theme {
	p, err := colormap.ParseGPL(strings.NewReader(plasmaGPL))
	if err != nil {
		panic(fmt.Sprintf("built-in palette: %v", err))
	}
	return New(p)
}

// Load builds a theme from a .gpl file, falling back to the default when
// path is empty
func Load(path string) (*Theme, error) {
	if path == "" {
		return Default(), nil
	}
	p, err := colormap.LoadGPL(path)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Warning() lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(RoleSuccess))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Lipgloss(t.Palette.Lookup(norm))
}

// Lipgloss converts a light colour to a terminal colour
func Lipgloss(c light.RGB) lipgloss.Color {
	return lipgloss.Color(Hex(c))
}

// Hex formats a light colour as #rrggbb
func Hex(c light.RGB) string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}
