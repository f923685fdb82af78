package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-lightsynth/assign"
	"go-lightsynth/colormap"
	"go-lightsynth/engine"
	"go-lightsynth/envelope"
	"go-lightsynth/instrument"
	"go-lightsynth/light"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownLight   = errors.New("light not declared in lights")
	ErrDuplicateLight = errors.New("light declared twice")
	ErrBadPad         = errors.New("pad must be [row, col] in 0-8")
	ErrBadDMX         = errors.New("dmx channel must be 1-510")
	ErrBadPixel       = errors.New("pixel index must be 0-4095")
	ErrUnknownPolicy  = errors.New("unknown policy type")
	ErrUnknownColor   = errors.New("unknown color mode")
	ErrBadHues        = errors.New("hues needs 12 values")
	ErrUnknownCurve   = errors.New("unknown envelope curve")
)

// longest strip a serial output drives
const maxPixels = 4096

// Show is a parsed show file: the light set and its instruments
type Show struct {
	Blend       string           `yaml:"blend"`
	TickHz      int              `yaml:"tick_hz,omitempty"`
	Lights      []LightSpec      `yaml:"lights"`
	Instruments []InstrumentSpec `yaml:"instruments"`

	dir string // palette paths are relative to the show file
}

// LightSpec declares one light and where each output finds it
type LightSpec struct {
	ID    light.ID `yaml:"id"`
	Pad   []int    `yaml:"pad,omitempty"`   // Launchpad [row, col], row 0 at the bottom
	Pixel *int     `yaml:"pixel,omitempty"` // index on a serial strip
	DMX   int      `yaml:"dmx,omitempty"`   // first of three RGB channels, 1-based
}

// InstrumentSpec is one instrument entry
type InstrumentSpec struct {
	Name        string       `yaml:"name"`
	Notes       []uint8      `yaml:"notes,omitempty"`
	EffectNotes []uint8      `yaml:"effect_notes,omitempty"`
	StrobeHz    float64      `yaml:"strobe_hz,omitempty"`
	Lights      []light.ID   `yaml:"lights"`
	Policy      PolicySpec   `yaml:"policy"`
	Color       ColorSpec    `yaml:"color"`
	Envelope    EnvelopeSpec `yaml:"envelope"`
}

// PolicySpec selects an assignment policy. Slots default to one per light.
type PolicySpec struct {
	Type    assign.Kind     `yaml:"type"`
	Slots   [][]light.ID    `yaml:"slots,omitempty"`
	Buckets []assign.Bucket `yaml:"buckets,omitempty"`
}

// ColorSpec selects a colour mapper
type ColorSpec struct {
	Mode       colormap.Mode `yaml:"mode"`
	RGB        []float64     `yaml:"rgb,omitempty"`
	HueLow     float64       `yaml:"hue_low,omitempty"`
	HueHigh    *float64      `yaml:"hue_high,omitempty"`
	Saturation *float64      `yaml:"saturation,omitempty"`
	Value      *float64      `yaml:"value,omitempty"`
	Gamma      float64       `yaml:"gamma,omitempty"`
	Palette    string        `yaml:"palette,omitempty"`
	Hues       []float64     `yaml:"hues,omitempty"` // pitch_class: 12 hues in degrees, C first
}

// EnvelopeSpec is an ADSR shape. Unset fields take envelope.Default values.
type EnvelopeSpec struct {
	Attack            *time.Duration        `yaml:"attack,omitempty"`
	Decay             *time.Duration        `yaml:"decay,omitempty"`
	Sustain           *float64              `yaml:"sustain,omitempty"`
	Release           *time.Duration        `yaml:"release,omitempty"`
	Curve             string                `yaml:"curve,omitempty"`
	VelocitySensitive bool                  `yaml:"velocity_sensitive,omitempty"`
	Sensitivity       *envelope.Sensitivity `yaml:"sensitivity,omitempty"`
}

// LoadShow reads and validates a show file
func LoadShow(path string) (*Show, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	show, err := ParseShow(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	show.dir = filepath.Dir(path)
	return show, nil
}

// ParseShow decodes a show from YAML and checks the light declarations
func ParseShow(data []byte) (*Show, error) {
	var show Show
	if err := yaml.Unmarshal(data, &show); err != nil {
		return nil, err
	}
	if err := show.validateLights(); err != nil {
		return nil, err
	}
	return &show, nil
}

func (s *Show) validateLights() error {
	seen := make(map[light.ID]bool, len(s.Lights))
	for _, l := range s.Lights {
		if seen[l.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateLight, l.ID)
		}
		seen[l.ID] = true
		if l.Pad != nil && (len(l.Pad) != 2 || l.Pad[0] < 0 || l.Pad[0] > 8 || l.Pad[1] < 0 || l.Pad[1] > 8) {
			return fmt.Errorf("light %q: %w", l.ID, ErrBadPad)
		}
		if l.DMX < 0 || l.DMX > 510 {
			return fmt.Errorf("light %q: %w", l.ID, ErrBadDMX)
		}
		if l.Pixel != nil && (*l.Pixel < 0 || *l.Pixel >= maxPixels) {
			return fmt.Errorf("light %q: %w", l.ID, ErrBadPixel)
		}
	}
	return nil
}

// LightIDs returns the declared lights in file order
func (s *Show) LightIDs() []light.ID {
	ids := make([]light.ID, len(s.Lights))
	for i, l := range s.Lights {
		ids[i] = l.ID
	}
	return ids
}

// Pads maps lights to Launchpad [row, col]
func (s *Show) Pads() map[light.ID][2]int {
	out := make(map[light.ID][2]int)
	for _, l := range s.Lights {
		if len(l.Pad) == 2 {
			out[l.ID] = [2]int{l.Pad[0], l.Pad[1]}
		}
	}
	return out
}

// Pixels maps lights to serial strip indices
func (s *Show) Pixels() map[light.ID]int {
	out := make(map[light.ID]int)
	for _, l := range s.Lights {
		if l.Pixel != nil {
			out[l.ID] = *l.Pixel
		}
	}
	return out
}

// DMXChannels maps lights to their first DMX channel
func (s *Show) DMXChannels() map[light.ID]int {
	out := make(map[light.ID]int)
	for _, l := range s.Lights {
		if l.DMX > 0 {
			out[l.ID] = l.DMX
		}
	}
	return out
}

// Build creates the engine for the show. opts are applied after the
// show's own blend setting.
func (s *Show) Build(opts ...engine.Option) (*engine.Engine, error) {
	blend, err := engine.ParseBlend(s.Blend)
	if err != nil {
		return nil, err
	}
	instruments := make([]*instrument.Instrument, 0, len(s.Instruments))
	for i, spec := range s.Instruments {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("instrument %d", i+1)
		}
		in, err := s.buildInstrument(name, spec)
		if err != nil {
			var ce *instrument.ConfigError
			if errors.As(err, &ce) {
				return nil, err
			}
			return nil, &instrument.ConfigError{Instrument: name, Err: err}
		}
		instruments = append(instruments, in)
	}
	return engine.New(s.LightIDs(), instruments, append([]engine.Option{engine.WithBlend(blend)}, opts...)...), nil
}

func (s *Show) buildInstrument(name string, spec InstrumentSpec) (*instrument.Instrument, error) {
	policy, err := buildPolicy(spec)
	if err != nil {
		return nil, err
	}
	if len(s.Lights) > 0 {
		declared := make(map[light.ID]bool, len(s.Lights))
		for _, l := range s.Lights {
			declared[l.ID] = true
		}
		for _, l := range policy.Lights() {
			if !declared[l] {
				return nil, fmt.Errorf("%w: %q", ErrUnknownLight, l)
			}
		}
	}
	mapper, err := s.buildMapper(spec.Color)
	if err != nil {
		return nil, err
	}
	params, sens, err := buildEnvelope(spec.Envelope)
	if err != nil {
		return nil, err
	}
	return instrument.New(instrument.Config{
		Name:        name,
		Notes:       spec.Notes,
		EffectNotes: spec.EffectNotes,
		StrobeHz:    spec.StrobeHz,
		Policy:      policy,
		Mapper:      mapper,
		Envelope:    params,
		Sensitivity: sens,
	})
}

func buildPolicy(spec InstrumentSpec) (assign.Policy, error) {
	switch spec.Policy.Type {
	case assign.KindFixed:
		return assign.NewFixed(spec.Lights), nil
	case "", assign.KindCycle:
		slots := spec.Policy.Slots
		if len(slots) == 0 {
			slots = assign.SingleSlots(spec.Lights)
		}
		return assign.NewCycle(slots)
	case assign.KindVelocityScaling:
		return assign.NewVelocityScaling(spec.Lights)
	case assign.KindVelocitySelecting:
		return assign.NewVelocitySelecting(spec.Policy.Buckets)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, spec.Policy.Type)
}

func (s *Show) buildMapper(spec ColorSpec) (colormap.Mapper, error) {
	sat, val := 1.0, 1.0
	if spec.Saturation != nil {
		sat = *spec.Saturation
	}
	if spec.Value != nil {
		val = *spec.Value
	}

	switch spec.Mode {
	case "", colormap.ModeStatic:
		rgb := light.RGB{R: 1}
		if len(spec.RGB) > 0 {
			if len(spec.RGB) != 3 {
				return nil, fmt.Errorf("rgb needs 3 values, got %d", len(spec.RGB))
			}
			rgb = light.RGB{R: spec.RGB[0], G: spec.RGB[1], B: spec.RGB[2]}
		}
		return colormap.NewStatic(rgb), nil
	case colormap.ModeVelocityHue:
		hi := 270.0
		if spec.HueHigh != nil {
			hi = *spec.HueHigh
		}
		return colormap.VelocityHue{HueLow: spec.HueLow, HueHigh: hi, Saturation: sat, Value: val, Gamma: spec.Gamma}, nil
	case colormap.ModePitchClass:
		if len(spec.Hues) > 0 {
			if len(spec.Hues) != 12 {
				return nil, fmt.Errorf("%w, got %d", ErrBadHues, len(spec.Hues))
			}
			return colormap.NewPitchClassHues([12]float64(spec.Hues), sat, val), nil
		}
		if spec.Palette == "" {
			return colormap.NewPitchClass(sat, val), nil
		}
		path := spec.Palette
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		pal, err := colormap.LoadGPL(path)
		if err != nil {
			return nil, err
		}
		return colormap.NewPitchClassPalette(pal)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownColor, spec.Mode)
}

func buildEnvelope(spec EnvelopeSpec) (envelope.Params, envelope.Sensitivity, error) {
	p := envelope.Default()
	if spec.Attack != nil {
		p.Attack = *spec.Attack
	}
	if spec.Decay != nil {
		p.Decay = *spec.Decay
	}
	if spec.Sustain != nil {
		p.Sustain = *spec.Sustain
	}
	if spec.Release != nil {
		p.Release = *spec.Release
	}
	switch spec.Curve {
	case "", "linear":
		p.Curve = envelope.Linear
	case "exponential":
		p.Curve = envelope.Exponential
	default:
		return p, envelope.Sensitivity{}, fmt.Errorf("%w: %q", ErrUnknownCurve, spec.Curve)
	}

	var sens envelope.Sensitivity
	switch {
	case spec.Sensitivity != nil:
		sens = *spec.Sensitivity
	case spec.VelocitySensitive:
		sens = envelope.LevelOnly
	}
	return p, sens, nil
}
