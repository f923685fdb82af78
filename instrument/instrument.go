// Package instrument turns note events into per-light envelope samples.
package instrument

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go-lightsynth/assign"
	"go-lightsynth/colormap"
	"go-lightsynth/debug"
	"go-lightsynth/envelope"
	"go-lightsynth/light"
	"go-lightsynth/note"
)

var (
	ErrNoPolicy = errors.New("no assignment policy")
	ErrNoMapper = errors.New("no color mapper")
	ErrEffect   = errors.New("note is both a trigger and an effect note")
)

// ConfigError reports an instrument that cannot be built
type ConfigError struct {
	Instrument string
	Err        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("instrument %q: %v", e.Instrument, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Result says what HandleEvent did with an event
type Result int

const (
	Ignored   Result = iota // not one of this instrument's notes
	Applied                 // lights triggered or released
	Unmatched               // note-off without a binding, or a note-on that chose no lights
)

// Config describes one instrument
type Config struct {
	Name        string
	Notes       []uint8 // pitches that trigger lights; empty = every pitch
	EffectNotes []uint8 // pitches that strobe the instrument while held
	StrobeHz    float64
	Policy      assign.Policy
	Mapper      colormap.Mapper
	Envelope    envelope.Params
	Sensitivity envelope.Sensitivity
}

// Instrument owns one envelope per light it has touched, its policy's
// binding table and the colour each light was last triggered with.
// Not safe for concurrent use; one goroutine drives it.
type Instrument struct {
	name     string
	lights   []light.ID
	notes    map[uint8]bool
	effects  map[uint8]bool
	strobeHz float64

	policy   assign.Policy
	mapper   colormap.Mapper
	template envelope.Params
	sens     envelope.Sensitivity

	bindings *assign.Bindings
	envs     map[light.ID]*envelope.Envelope // lazily created, removed once idle
	colors   map[light.ID]light.RGB

	strobing    map[note.ID]bool
	strobePhase float64 // cycles
}

// New builds an instrument
func New(cfg Config) (*Instrument, error) {
	if cfg.Policy == nil {
		return nil, &ConfigError{Instrument: cfg.Name, Err: ErrNoPolicy}
	}
	if cfg.Mapper == nil {
		return nil, &ConfigError{Instrument: cfg.Name, Err: ErrNoMapper}
	}
	in := &Instrument{
		name:     cfg.Name,
		lights:   cfg.Policy.Lights(),
		notes:    pitchSet(cfg.Notes),
		effects:  pitchSet(cfg.EffectNotes),
		strobeHz: cfg.StrobeHz,
		policy:   cfg.Policy,
		mapper:   cfg.Mapper,
		template: cfg.Envelope,
		sens:     cfg.Sensitivity,
		bindings: assign.NewBindings(),
		envs:     make(map[light.ID]*envelope.Envelope),
		colors:   make(map[light.ID]light.RGB),
		strobing: make(map[note.ID]bool),
	}
	for p := range in.effects {
		if in.notes[p] {
			return nil, &ConfigError{Instrument: cfg.Name, Err: fmt.Errorf("%w: %d", ErrEffect, p)}
		}
	}
	return in, nil
}

// Name returns the configured name
func (in *Instrument) Name() string {
	return in.name
}

// Lights returns the lights this instrument can drive, in sample order
func (in *Instrument) Lights() []light.ID {
	out := make([]light.ID, len(in.lights))
	copy(out, in.lights)
	return out
}

// HandleEvent applies one note event
func (in *Instrument) HandleEvent(ev note.Event) Result {
	if in.effects[ev.Pitch] {
		return in.handleEffect(ev)
	}
	if len(in.notes) > 0 && !in.notes[ev.Pitch] {
		return Ignored
	}
	if ev.Kind == note.On {
		return in.noteOn(ev)
	}
	return in.noteOff(ev)
}

func (in *Instrument) noteOn(ev note.Event) Result {
	lights := in.policy.NoteOn(ev, in.bindings)
	if len(lights) == 0 {
		debug.Trace("instrument", "%s: note-on %v vel=%.2f chose no lights", in.name, ev.ID, ev.Velocity)
		return Unmatched
	}

	color := in.mapper.Color(ev)
	params := in.template
	if in.sens.Any() {
		params = envelope.Scale(in.template, in.sens, ev.Velocity)
	}
	peak := envelope.Peak(in.sens, ev.Velocity)

	for _, l := range lights {
		env, ok := in.envs[l]
		if !ok {
			env = &envelope.Envelope{}
			in.envs[l] = env
		}
		env.Trigger(params, peak)
		in.colors[l] = color
	}
	return Applied
}

func (in *Instrument) noteOff(ev note.Event) Result {
	if in.policy.Kind() != assign.KindFixed {
		if _, bound := in.bindings.Lookup(ev.ID); !bound {
			debug.Trace("instrument", "%s: note-off %v has no binding", in.name, ev.ID)
			return Unmatched
		}
	}
	for _, l := range in.policy.NoteOff(ev, in.bindings) {
		if env, ok := in.envs[l]; ok {
			env.Release()
		}
	}
	return Applied
}

func (in *Instrument) handleEffect(ev note.Event) Result {
	if ev.Kind == note.On {
		in.strobing[ev.ID] = true
		return Applied
	}
	if !in.strobing[ev.ID] {
		return Unmatched
	}
	delete(in.strobing, ev.ID)
	return Applied
}

// Sample advances every active envelope by dt and returns one sample per
// active light, in light order. A light that reaches idle is reported once
// at level 0 and then dropped.
func (in *Instrument) Sample(dt time.Duration) []light.Sample {
	if len(in.envs) == 0 {
		in.strobePhase = 0
		return nil
	}
	gate := in.strobeGate(dt)

	out := make([]light.Sample, 0, len(in.envs))
	for _, l := range in.lights {
		env, ok := in.envs[l]
		if !ok {
			continue
		}
		level := env.Advance(dt)
		out = append(out, light.Sample{Light: l, Color: in.colors[l], Level: level * gate})
		if env.Idle() {
			delete(in.envs, l)
		}
	}
	return out
}

// strobeGate returns 0 or 1 for the current half of the strobe cycle and
// moves the phase on by dt
func (in *Instrument) strobeGate(dt time.Duration) float64 {
	if len(in.strobing) == 0 || in.strobeHz <= 0 {
		in.strobePhase = 0
		return 1
	}
	gate := 1.0
	if in.strobePhase >= 0.5 {
		gate = 0
	}
	in.strobePhase = math.Mod(in.strobePhase+dt.Seconds()*in.strobeHz, 1)
	return gate
}

// rewinder is a policy with a position that AllOff returns to the start
type rewinder interface {
	Rewind()
}

// AllOff silences the instrument immediately: every envelope idle, every
// binding and held effect forgotten. A cycling policy starts over at its
// first slot.
func (in *Instrument) AllOff() {
	for l, env := range in.envs {
		env.Reset()
		delete(in.envs, l)
	}
	in.bindings.Clear()
	clear(in.strobing)
	in.strobePhase = 0
	if r, ok := in.policy.(rewinder); ok {
		r.Rewind()
	}
}

// Active returns the number of lights with a running envelope
func (in *Instrument) Active() int {
	return len(in.envs)
}

// Level returns a light's current envelope level and stage
func (in *Instrument) Level(l light.ID) (float64, envelope.Stage) {
	env, ok := in.envs[l]
	if !ok {
		return 0, envelope.StageIdle
	}
	return env.Level(), env.Stage()
}

// Strobing reports whether an effect note is held
func (in *Instrument) Strobing() bool {
	return len(in.strobing) > 0
}

func pitchSet(pitches []uint8) map[uint8]bool {
	set := make(map[uint8]bool, len(pitches))
	for _, p := range pitches {
		set[p] = true
	}
	return set
}
