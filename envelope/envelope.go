// Package envelope provides the per-light ADSR state machine
package envelope

import (
	"math"
	"time"
)

// Stage represents the current envelope stage
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	default:
		return "idle"
	}
}

// Curve selects how a stage interpolates between its start and target level
type Curve int

const (
	Linear Curve = iota
	Exponential
)

// MinDuration is the shortest stage that is actually timed. Anything at or
// below it is passed through instantly.
const MinDuration = time.Microsecond

// exponential curve steepness
const expK = 5.0

// Params describes one ADSR shape
type Params struct {
	Attack  time.Duration
	Decay   time.Duration
	Sustain float64 // 0-1, relative to the attack peak
	Release time.Duration
	Curve   Curve
}

// Default returns the stock light envelope: instant on, short dip, 100ms tail
func Default() Params {
	return Params{
		Attack:  0,
		Decay:   10 * time.Millisecond,
		Sustain: 0.9,
		Release: 100 * time.Millisecond,
	}
}

// sanitize clamps out-of-range values
func (p Params) sanitize() Params {
	p.Attack = max(p.Attack, 0)
	p.Decay = max(p.Decay, 0)
	p.Release = max(p.Release, 0)
	p.Sustain = clamp01(p.Sustain)
	return p
}

// Envelope is an ADSR generator advanced by elapsed time.
// The zero value is an idle envelope.
type Envelope struct {
	params  Params
	peak    float64
	stage   Stage
	elapsed time.Duration // time spent in the current stage
	start   float64       // level when the current stage was entered
	level   float64
}

// Trigger starts the attack toward velocity (clamped to 0-1). A running
// envelope attacks from wherever it currently is.
func (e *Envelope) Trigger(p Params, velocity float64) {
	e.params = p.sanitize()
	e.peak = clamp01(velocity)
	e.enter(StageAttack)
	e.settle()
}

// Release moves into the release stage from the current level.
// Idle and already-releasing envelopes are left alone.
func (e *Envelope) Release() {
	switch e.stage {
	case StageAttack, StageDecay, StageSustain:
		e.enter(StageRelease)
		e.settle()
	}
}

// Reset drops straight to idle (panic)
func (e *Envelope) Reset() {
	e.stage = StageIdle
	e.elapsed = 0
	e.start = 0
	e.level = 0
}

// Advance moves the envelope forward by dt and returns the new level
func (e *Envelope) Advance(dt time.Duration) float64 {
	for dt > 0 && e.timed() {
		remain := e.duration() - e.elapsed
		if dt < remain {
			e.elapsed += dt
			e.level = e.interpolate()
			break
		}
		dt -= remain
		e.finish()
		e.settle()
	}
	return e.level
}

// Level returns the current output level
func (e *Envelope) Level() float64 {
	return e.level
}

// Stage returns the current stage
func (e *Envelope) Stage() Stage {
	return e.stage
}

// Idle reports whether the envelope has finished
func (e *Envelope) Idle() bool {
	return e.stage == StageIdle
}

func (e *Envelope) enter(s Stage) {
	e.stage = s
	e.elapsed = 0
	e.start = e.level
}

// timed reports whether the current stage ends by itself
func (e *Envelope) timed() bool {
	switch e.stage {
	case StageAttack, StageDecay, StageRelease:
		return true
	}
	return false
}

func (e *Envelope) duration() time.Duration {
	switch e.stage {
	case StageAttack:
		return e.params.Attack
	case StageDecay:
		return e.params.Decay
	case StageRelease:
		return e.params.Release
	}
	return 0
}

func (e *Envelope) target() float64 {
	switch e.stage {
	case StageAttack:
		return e.peak
	case StageDecay, StageSustain:
		return e.params.Sustain * e.peak
	}
	return 0
}

// settle passes through zero-length stages
func (e *Envelope) settle() {
	for e.timed() && e.duration() <= MinDuration {
		e.finish()
	}
}

// finish lands on the stage target and enters the next stage
func (e *Envelope) finish() {
	e.level = e.target()
	switch e.stage {
	case StageAttack:
		e.enter(StageDecay)
	case StageDecay:
		if e.level <= 0 {
			// nothing to sustain: one-shot
			e.Reset()
			return
		}
		e.enter(StageSustain)
	case StageRelease:
		e.Reset()
	}
}

func (e *Envelope) interpolate() float64 {
	frac := float64(e.elapsed) / float64(e.duration())
	if e.params.Curve == Exponential {
		frac = (1 - math.Exp(-expK*frac)) / (1 - math.Exp(-expK))
	}
	return clamp01(e.start + (e.target()-e.start)*frac)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
