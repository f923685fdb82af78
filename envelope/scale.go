package envelope

import "time"

// Sensitivity selects which parts of the envelope follow velocity
type Sensitivity struct {
	Attack  bool `yaml:"attack"`
	Decay   bool `yaml:"decay"`
	Sustain bool `yaml:"sustain"`
	Release bool `yaml:"release"`
	Level   bool `yaml:"level"` // attack peak = velocity
}

// LevelOnly is the sensitivity used when an instrument is just "velocity sensitive"
var LevelOnly = Sensitivity{Level: true}

// Any reports whether velocity affects anything
func (s Sensitivity) Any() bool {
	return s.Attack || s.Decay || s.Sustain || s.Release || s.Level
}

// Scale derives per-trigger params from a template. Harder notes get
// shorter timed stages (x0.5 at full velocity, x1.5 at zero) and a
// sustain proportional to velocity. The peak level is not part of Params;
// see Peak.
func Scale(p Params, s Sensitivity, velocity float64) Params {
	v := clamp01(velocity)
	k := 1.5 - v
	if s.Attack {
		p.Attack = scaleDuration(p.Attack, k)
	}
	if s.Decay {
		p.Decay = scaleDuration(p.Decay, k)
	}
	if s.Release {
		p.Release = scaleDuration(p.Release, k)
	}
	if s.Sustain {
		p.Sustain = clamp01(p.Sustain) * v
	}
	return p
}

// Peak returns the attack peak for a trigger
func Peak(s Sensitivity, velocity float64) float64 {
	if s.Level {
		return clamp01(velocity)
	}
	return 1
}

func scaleDuration(d time.Duration, k float64) time.Duration {
	return time.Duration(float64(d) * k)
}
