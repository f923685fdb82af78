// Package colormap picks the colour a note paints its lights with
package colormap

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"go-lightsynth/light"
	"go-lightsynth/note"
)

// Mode names a mapper in show files
type Mode string

const (
	ModeStatic      Mode = "static"
	ModeVelocityHue Mode = "velocity_hue"
	ModePitchClass  Mode = "pitch_class"
)

// Mapper returns the colour for a triggering note. Always in [0,1]^3.
type Mapper interface {
	Color(ev note.Event) light.RGB
}

// Static ignores the note
type Static struct {
	rgb light.RGB
}

// NewStatic normalises rgb so its brightest channel is 1
func NewStatic(rgb light.RGB) *Static {
	return &Static{rgb: rgb.Normalize()}
}

func (s *Static) Color(note.Event) light.RGB {
	return s.rgb
}

// VelocityHue sweeps hue with velocity at fixed saturation and value.
// Gamma bends the sweep: 1 is linear, >1 keeps soft notes near HueLow longer.
type VelocityHue struct {
	HueLow     float64 // degrees at velocity 0
	HueHigh    float64 // degrees at velocity 1
	Saturation float64
	Value      float64
	Gamma      float64
}

func (v VelocityHue) Color(ev note.Event) light.RGB {
	t := light.Clamp01(ev.Velocity)
	if v.Gamma > 0 && v.Gamma != 1 {
		t = math.Pow(t, v.Gamma)
	}
	return hsv(v.HueLow+(v.HueHigh-v.HueLow)*t, v.Saturation, v.Value)
}

// PitchClass colours notes by pitch modulo 12
type PitchClass struct {
	colors [12]light.RGB
}

// NewPitchClass spreads the twelve pitch classes round the hue circle
// starting at C = red
func NewPitchClass(saturation, value float64) *PitchClass {
	p := &PitchClass{}
	for i := range p.colors {
		p.colors[i] = hsv(float64(i)*30, saturation, value)
	}
	return p
}

// NewPitchClassHues uses explicit hues (degrees) per pitch class
func NewPitchClassHues(hues [12]float64, saturation, value float64) *PitchClass {
	p := &PitchClass{}
	for i, h := range hues {
		p.colors[i] = hsv(h, saturation, value)
	}
	return p
}

// NewPitchClassPalette takes pitch-class colours from a palette, repeating
// it if it has fewer than twelve entries
func NewPitchClassPalette(pal *Palette) (*PitchClass, error) {
	if pal == nil || len(pal.Colors) == 0 {
		return nil, fmt.Errorf("pitch class palette: no colors")
	}
	p := &PitchClass{}
	for i := range p.colors {
		p.colors[i] = pal.Colors[i%len(pal.Colors)].Clamp()
	}
	return p, nil
}

func (p *PitchClass) Color(ev note.Event) light.RGB {
	return p.colors[ev.Pitch%12]
}

func hsv(h, s, v float64) light.RGB {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := colorful.Hsv(h, light.Clamp01(s), light.Clamp01(v)).Clamped()
	return light.RGB{R: c.R, G: c.G, B: c.B}
}
