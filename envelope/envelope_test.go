package envelope

import (
	"math"
	"testing"
	"time"
)

const ms = time.Millisecond

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEnvelope_full_cycle(t *testing.T) {
	p := Params{Attack: 10 * ms, Decay: 20 * ms, Sustain: 0.6, Release: 50 * ms}
	var e Envelope
	if !e.Idle() {
		t.Fatal("zero envelope should be idle")
	}

	e.Trigger(p, 1)
	if e.Stage() != StageAttack {
		t.Fatalf("stage after Trigger = %v, want attack", e.Stage())
	}
	if got := e.Advance(5 * ms); !near(got, 0.5) {
		t.Errorf("mid-attack level = %v, want 0.5", got)
	}
	if got := e.Advance(5 * ms); got != 1 {
		t.Errorf("end of attack level = %v, want 1", got)
	}
	if got := e.Advance(20 * ms); !near(got, 0.6) {
		t.Errorf("end of decay level = %v, want 0.6", got)
	}
	if e.Stage() != StageSustain {
		t.Fatalf("stage = %v, want sustain", e.Stage())
	}
	if got := e.Advance(10 * time.Second); !near(got, 0.6) {
		t.Errorf("sustain should hold at 0.6, got %v", got)
	}

	e.Release()
	if e.Stage() != StageRelease {
		t.Fatalf("stage after Release = %v", e.Stage())
	}
	if got := e.Advance(25 * ms); !near(got, 0.3) {
		t.Errorf("mid-release level = %v, want 0.3", got)
	}
	if got := e.Advance(25 * ms); got != 0 {
		t.Errorf("end of release level = %v, want 0", got)
	}
	if !e.Idle() {
		t.Error("envelope should be idle after release")
	}
}

func TestEnvelope_Advance_crosses_stages(t *testing.T) {
	p := Params{Attack: 10 * ms, Decay: 10 * ms, Sustain: 0.5, Release: 10 * ms}
	var e Envelope
	e.Trigger(p, 1)
	if got := e.Advance(time.Second); !near(got, 0.5) {
		t.Errorf("one big step should land on sustain, got %v", got)
	}
}

func TestEnvelope_zero_attack_is_instant(t *testing.T) {
	p := Params{Attack: 0, Decay: 0, Sustain: 1, Release: 100 * ms}
	var e Envelope
	e.Trigger(p, 1)
	if e.Level() != 1 {
		t.Errorf("level right after Trigger = %v, want 1", e.Level())
	}
	if e.Stage() != StageSustain {
		t.Errorf("stage = %v, want sustain", e.Stage())
	}
	if got := e.Advance(0); got != 1 {
		t.Errorf("Advance(0) = %v, want 1", got)
	}
}

func TestEnvelope_retrigger_keeps_level(t *testing.T) {
	p := Params{Attack: 10 * ms, Decay: 100 * ms, Sustain: 0.2, Release: 10 * ms}
	var e Envelope
	e.Trigger(p, 1)
	e.Advance(10 * ms)
	before := e.Advance(50 * ms)
	if e.Stage() != StageDecay {
		t.Fatalf("stage = %v, want decay", e.Stage())
	}
	if !near(before, 0.6) {
		t.Fatalf("mid-decay level = %v, want 0.6", before)
	}

	e.Trigger(p, 1)
	if e.Level() != before {
		t.Errorf("Trigger moved level from %v to %v", before, e.Level())
	}
	step := time.Millisecond
	after := e.Advance(step)
	if math.Abs(after-before) > 0.05 {
		t.Errorf("retrigger jumped from %v to %v in one step", before, after)
	}
	if after < before {
		t.Errorf("retrigger should attack upward, %v -> %v", before, after)
	}
}

func TestEnvelope_Release_from_attack_preserves_level(t *testing.T) {
	p := Params{Attack: 10 * ms, Decay: 10 * ms, Sustain: 1, Release: 10 * ms}
	var e Envelope
	e.Trigger(p, 1)
	e.Advance(4 * ms)
	lvl := e.Level()
	e.Release()
	if e.Level() != lvl {
		t.Errorf("Release jumped from %v to %v", lvl, e.Level())
	}
	if got := e.Advance(5 * ms); !near(got, lvl/2) {
		t.Errorf("release halfway = %v, want %v", got, lvl/2)
	}
}

func TestEnvelope_Release_when_idle_is_noop(t *testing.T) {
	var e Envelope
	e.Release()
	if !e.Idle() || e.Level() != 0 {
		t.Errorf("Release on idle envelope changed state: %v %v", e.Stage(), e.Level())
	}
}

func TestEnvelope_one_shot(t *testing.T) {
	p := Params{Attack: 0, Decay: 20 * ms, Sustain: 0, Release: 10 * ms}
	var e Envelope
	e.Trigger(p, 1)
	e.Advance(20 * ms)
	if !e.Idle() {
		t.Errorf("sustain 0 should go idle after decay, stage = %v", e.Stage())
	}
}

func TestEnvelope_clamps_inputs(t *testing.T) {
	p := Params{Attack: -5 * ms, Decay: -1, Sustain: 3, Release: -ms}
	var e Envelope
	e.Trigger(p, 7)
	if e.Level() != 1 {
		t.Errorf("level = %v, want clamped peak 1", e.Level())
	}
	if got := e.Advance(-time.Second); got != 1 {
		t.Errorf("negative dt changed level to %v", got)
	}
	e.Release()
	if !e.Idle() {
		t.Error("negative release should be instant")
	}
}

func TestEnvelope_velocity_peak(t *testing.T) {
	p := Params{Attack: 0, Decay: 0, Sustain: 0.5, Release: 0}
	var e Envelope
	e.Trigger(p, 0.4)
	if !near(e.Level(), 0.2) {
		t.Errorf("sustain level = %v, want 0.2", e.Level())
	}
}

func TestEnvelope_exponential_curve(t *testing.T) {
	p := Params{Attack: 10 * ms, Decay: 0, Sustain: 1, Release: 10 * ms, Curve: Exponential}
	var e Envelope
	e.Trigger(p, 1)
	if got := e.Advance(5 * ms); got <= 0.5 || got >= 1 {
		t.Errorf("exponential attack halfway = %v, want in (0.5, 1)", got)
	}
	if got := e.Advance(5 * ms); got != 1 {
		t.Errorf("exponential attack end = %v, want 1", got)
	}
}

func TestEnvelope_Reset(t *testing.T) {
	var e Envelope
	e.Trigger(Default(), 1)
	e.Reset()
	if !e.Idle() || e.Level() != 0 {
		t.Errorf("Reset left %v at %v", e.Stage(), e.Level())
	}
}

func TestScale(t *testing.T) {
	p := Params{Attack: 100 * ms, Decay: 100 * ms, Sustain: 0.8, Release: 100 * ms}

	got := Scale(p, Sensitivity{}, 1)
	if got != p {
		t.Errorf("no sensitivity should not change params: %+v", got)
	}

	got = Scale(p, Sensitivity{Attack: true, Sustain: true}, 1)
	if got.Attack != 50*ms {
		t.Errorf("Attack = %v, want 50ms", got.Attack)
	}
	if got.Decay != 100*ms || got.Release != 100*ms {
		t.Errorf("unselected stages changed: %+v", got)
	}
	if !near(got.Sustain, 0.8) {
		t.Errorf("Sustain = %v, want 0.8", got.Sustain)
	}

	got = Scale(p, Sensitivity{Release: true, Sustain: true}, 0)
	if got.Release != 150*ms {
		t.Errorf("Release = %v, want 150ms", got.Release)
	}
	if got.Sustain != 0 {
		t.Errorf("Sustain = %v, want 0", got.Sustain)
	}
}

func TestPeak(t *testing.T) {
	if Peak(Sensitivity{}, 0.3) != 1 {
		t.Error("insensitive peak should be 1")
	}
	if Peak(LevelOnly, 0.3) != 0.3 {
		t.Error("level-sensitive peak should follow velocity")
	}
	if Peak(LevelOnly, -1) != 0 {
		t.Error("peak should clamp")
	}
}
