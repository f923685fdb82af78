// Package assign decides which lights a note switches on and remembers
// the choice until the matching note-off.
package assign

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go-lightsynth/light"
	"go-lightsynth/note"
)

// Kind names a policy in show files
type Kind string

const (
	KindFixed             Kind = "fixed"
	KindCycle             Kind = "cycle"
	KindVelocityScaling   Kind = "velocity_scaling"
	KindVelocitySelecting Kind = "velocity_selecting"
)

var (
	ErrNoLights       = errors.New("no lights")
	ErrEmptySlot      = errors.New("empty slot")
	ErrDuplicateLight = errors.New("light used twice")
	ErrBadBucket      = errors.New("bad velocity bucket")
)

// ConfigError reports a policy that cannot be built
type ConfigError struct {
	Policy Kind
	Err    error
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s policy: %v", e.Policy, e.Err)
	}
	return fmt.Sprintf("%s policy: %v: %s", e.Policy, e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Policy maps note events to lights. Implementations: *Fixed, *Cycle,
// *VelocityScaling, *VelocitySelecting.
type Policy interface {
	Kind() Kind

	// NoteOn returns the lights to trigger and records the binding
	NoteOn(ev note.Event, b *Bindings) []light.ID

	// NoteOff returns the lights to release. Unknown notes yield nothing.
	NoteOff(ev note.Event, b *Bindings) []light.ID

	// Lights returns every light the policy can touch
	Lights() []light.ID
}

// Fixed lights the whole list on every note. Stateless.
type Fixed struct {
	lights []light.ID
}

// NewFixed creates a fixed policy. An empty list is allowed and does nothing.
func NewFixed(lights []light.ID) *Fixed {
	return &Fixed{lights: clone(lights)}
}

func (f *Fixed) Kind() Kind { return KindFixed }

func (f *Fixed) NoteOn(ev note.Event, b *Bindings) []light.ID {
	return clone(f.lights)
}

func (f *Fixed) NoteOff(ev note.Event, b *Bindings) []light.ID {
	return clone(f.lights)
}

func (f *Fixed) Lights() []light.ID { return clone(f.lights) }

// Cycle steps through an ordered list of slots, one slot per note-on.
// A slot may hold several lights that act as one.
type Cycle struct {
	slots [][]light.ID
	next  int
}

// NewCycle creates a cycle policy over slots
func NewCycle(slots [][]light.ID) (*Cycle, error) {
	if len(slots) == 0 {
		return nil, &ConfigError{Policy: KindCycle, Err: ErrNoLights}
	}
	seen := make(map[light.ID]bool)
	c := &Cycle{slots: make([][]light.ID, len(slots))}
	for i, slot := range slots {
		if len(slot) == 0 {
			return nil, &ConfigError{Policy: KindCycle, Err: ErrEmptySlot, Detail: fmt.Sprintf("slot %d", i)}
		}
		for _, l := range slot {
			if seen[l] {
				return nil, &ConfigError{Policy: KindCycle, Err: ErrDuplicateLight, Detail: string(l)}
			}
			seen[l] = true
		}
		c.slots[i] = clone(slot)
	}
	return c, nil
}

// SingleSlots puts every light in its own slot
func SingleSlots(lights []light.ID) [][]light.ID {
	slots := make([][]light.ID, len(lights))
	for i, l := range lights {
		slots[i] = []light.ID{l}
	}
	return slots
}

func (c *Cycle) Kind() Kind { return KindCycle }

func (c *Cycle) NoteOn(ev note.Event, b *Bindings) []light.ID {
	slot := c.slots[c.next]
	c.next = (c.next + 1) % len(c.slots)
	b.Bind(ev.ID, slot, true)
	return clone(slot)
}

func (c *Cycle) NoteOff(ev note.Event, b *Bindings) []light.ID {
	lights, _ := b.Release(ev.ID)
	return lights
}

func (c *Cycle) Lights() []light.ID {
	var out []light.ID
	for _, slot := range c.slots {
		out = append(out, slot...)
	}
	return out
}

// Rewind puts the cycle back at its first slot
func (c *Cycle) Rewind() {
	c.next = 0
}

// VelocityScaling lights a prefix of the list whose length grows with velocity
type VelocityScaling struct {
	lights []light.ID
}

// NewVelocityScaling creates a velocity-scaling policy
func NewVelocityScaling(lights []light.ID) (*VelocityScaling, error) {
	if len(lights) == 0 {
		return nil, &ConfigError{Policy: KindVelocityScaling, Err: ErrNoLights}
	}
	if l, dup := firstDuplicate(lights); dup {
		return nil, &ConfigError{Policy: KindVelocityScaling, Err: ErrDuplicateLight, Detail: string(l)}
	}
	return &VelocityScaling{lights: clone(lights)}, nil
}

func (v *VelocityScaling) Kind() Kind { return KindVelocityScaling }

// Count returns how many lights a velocity turns on: ceil(v*n), at least 1
func (v *VelocityScaling) Count(velocity float64) int {
	n := len(v.lights)
	// tolerance keeps 0.3*10 at 3
	k := int(math.Ceil(light.Clamp01(velocity)*float64(n) - 1e-9))
	return min(max(k, 1), n)
}

func (v *VelocityScaling) NoteOn(ev note.Event, b *Bindings) []light.ID {
	lights := clone(v.lights[:v.Count(ev.Velocity)])
	b.Bind(ev.ID, lights, false)
	return lights
}

func (v *VelocityScaling) NoteOff(ev note.Event, b *Bindings) []light.ID {
	lights, _ := b.Release(ev.ID)
	return lights
}

func (v *VelocityScaling) Lights() []light.ID { return clone(v.lights) }

// Bucket maps velocities from Min (inclusive) up to the next bucket's Min
// onto a set of lights
type Bucket struct {
	Min    float64    `yaml:"min"`
	Lights []light.ID `yaml:"lights"`
}

// VelocitySelecting picks a disjoint light subset by velocity range
type VelocitySelecting struct {
	buckets []Bucket // sorted by Min
}

// NewVelocitySelecting creates a velocity-selecting policy
func NewVelocitySelecting(buckets []Bucket) (*VelocitySelecting, error) {
	if len(buckets) == 0 {
		return nil, &ConfigError{Policy: KindVelocitySelecting, Err: ErrNoLights}
	}
	sorted := make([]Bucket, len(buckets))
	for i, bk := range buckets {
		sorted[i] = Bucket{Min: bk.Min, Lights: clone(bk.Lights)}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	seen := make(map[light.ID]bool)
	for i, bk := range sorted {
		if bk.Min < 0 || bk.Min > 1 {
			return nil, &ConfigError{Policy: KindVelocitySelecting, Err: ErrBadBucket, Detail: fmt.Sprintf("min %v outside 0-1", bk.Min)}
		}
		if i > 0 && bk.Min == sorted[i-1].Min {
			return nil, &ConfigError{Policy: KindVelocitySelecting, Err: ErrBadBucket, Detail: fmt.Sprintf("two buckets start at %v", bk.Min)}
		}
		if len(bk.Lights) == 0 {
			return nil, &ConfigError{Policy: KindVelocitySelecting, Err: ErrEmptySlot, Detail: fmt.Sprintf("bucket at %v", bk.Min)}
		}
		for _, l := range bk.Lights {
			if seen[l] {
				return nil, &ConfigError{Policy: KindVelocitySelecting, Err: ErrDuplicateLight, Detail: string(l)}
			}
			seen[l] = true
		}
	}
	return &VelocitySelecting{buckets: sorted}, nil
}

func (v *VelocitySelecting) Kind() Kind { return KindVelocitySelecting }

// Select returns the lights for a velocity; nil if it is below every bucket
func (v *VelocitySelecting) Select(velocity float64) []light.ID {
	vel := light.Clamp01(velocity)
	var out []light.ID
	for _, bk := range v.buckets {
		if bk.Min > vel {
			break
		}
		out = bk.Lights
	}
	return out
}

func (v *VelocitySelecting) NoteOn(ev note.Event, b *Bindings) []light.ID {
	lights := clone(v.Select(ev.Velocity))
	b.Bind(ev.ID, lights, true)
	return lights
}

// NoteOff releases what the note-on stored. Note-off velocity is ignored:
// many sources send 0 or 64 there.
func (v *VelocitySelecting) NoteOff(ev note.Event, b *Bindings) []light.ID {
	lights, _ := b.Release(ev.ID)
	return lights
}

func (v *VelocitySelecting) Lights() []light.ID {
	var out []light.ID
	for _, bk := range v.buckets {
		out = append(out, bk.Lights...)
	}
	return out
}

func clone(lights []light.ID) []light.ID {
	if len(lights) == 0 {
		return nil
	}
	out := make([]light.ID, len(lights))
	copy(out, lights)
	return out
}

func firstDuplicate(lights []light.ID) (light.ID, bool) {
	seen := make(map[light.ID]bool, len(lights))
	for _, l := range lights {
		if seen[l] {
			return l, true
		}
		seen[l] = true
	}
	return "", false
}
