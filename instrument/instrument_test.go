package instrument

import (
	"errors"
	"math"
	"testing"
	"time"

	"go-lightsynth/assign"
	"go-lightsynth/colormap"
	"go-lightsynth/envelope"
	"go-lightsynth/light"
	"go-lightsynth/note"
)

const ms = time.Millisecond

var red = light.RGB{R: 1}

func lights(s ...string) []light.ID {
	out := make([]light.ID, len(s))
	for i, x := range s {
		out[i] = light.ID(x)
	}
	return out
}

func newCycle(t *testing.T, env envelope.Params) *Instrument {
	t.Helper()
	pol, err := assign.NewCycle(assign.SingleSlots(lights("a", "b", "c")))
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	in, err := New(Config{
		Name:     "cycle",
		Policy:   pol,
		Mapper:   colormap.NewStatic(red),
		Envelope: env,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return in
}

func sampleFor(samples []light.Sample, l light.ID) (light.Sample, bool) {
	for _, s := range samples {
		if s.Light == l {
			return s, true
		}
	}
	return light.Sample{}, false
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// 3 lights, cycle, red, ADSR 0/0/1/100ms: note at t=0, off at t=0.05,
// dark at t=0.15
func TestInstrument_cycle_scenario(t *testing.T) {
	in := newCycle(t, envelope.Params{Attack: 0, Decay: 0, Sustain: 1, Release: 100 * ms})
	id := note.ID{Pitch: 60, Voice: 1}

	if r := in.HandleEvent(note.NoteOn(id, 1, 0)); r != Applied {
		t.Fatalf("note-on result = %v", r)
	}
	s := in.Sample(0)
	if len(s) != 1 || s[0].Light != "a" || s[0].Level != 1 || s[0].Color != red {
		t.Fatalf("t=0 samples = %+v", s)
	}

	in.Sample(50 * ms) // t=0.05
	in.HandleEvent(note.NoteOff(id, 0, 50*ms))
	if _, stage := in.Level("a"); stage != envelope.StageRelease {
		t.Fatalf("stage after note-off = %v", stage)
	}

	s = in.Sample(50 * ms) // t=0.10
	if got, _ := sampleFor(s, "a"); !near(got.Level, 0.5) {
		t.Errorf("t=0.10 level = %v, want 0.5", got.Level)
	}

	s = in.Sample(50 * ms) // t=0.15
	got, ok := sampleFor(s, "a")
	if !ok || got.Level != 0 {
		t.Errorf("t=0.15 should report a at 0 once, got %+v", s)
	}
	if lvl, stage := in.Level("a"); lvl != 0 || stage != envelope.StageIdle {
		t.Errorf("a = %v %v, want idle", lvl, stage)
	}
	for _, other := range lights("b", "c") {
		if _, ok := sampleFor(s, other); ok {
			t.Errorf("%s should be untouched", other)
		}
	}
	if s := in.Sample(50 * ms); len(s) != 0 {
		t.Errorf("idle light should be pruned, got %+v", s)
	}
	if in.Active() != 0 {
		t.Errorf("Active = %d", in.Active())
	}
}

func TestInstrument_note_off_releases_own_light(t *testing.T) {
	in := newCycle(t, envelope.Params{Sustain: 1, Release: 10 * ms})
	first := note.ID{Pitch: 60, Voice: 1}
	second := note.ID{Pitch: 60, Voice: 2}
	in.HandleEvent(note.NoteOn(first, 1, 0))
	in.HandleEvent(note.NoteOn(second, 1, 0))
	in.HandleEvent(note.NoteOff(first, 0, 0))

	if _, stage := in.Level("a"); stage != envelope.StageRelease {
		t.Errorf("a stage = %v, want release", stage)
	}
	if _, stage := in.Level("b"); stage != envelope.StageSustain {
		t.Errorf("b stage = %v, want sustain", stage)
	}
}

func TestInstrument_unmatched_note_off(t *testing.T) {
	in := newCycle(t, envelope.Default())
	in.HandleEvent(note.NoteOn(note.ID{Pitch: 60, Voice: 1}, 1, 0))
	if r := in.HandleEvent(note.NoteOff(note.ID{Pitch: 60, Voice: 7}, 0, 0)); r != Unmatched {
		t.Errorf("result = %v, want Unmatched", r)
	}
	if _, stage := in.Level("a"); stage == envelope.StageRelease || stage == envelope.StageIdle {
		t.Errorf("unmatched note-off touched a: %v", stage)
	}
}

func TestInstrument_note_filter(t *testing.T) {
	pol := assign.NewFixed(lights("a"))
	in, err := New(Config{Name: "kick", Notes: []uint8{36}, Policy: pol, Mapper: colormap.NewStatic(red), Envelope: envelope.Default()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r := in.HandleEvent(note.NoteOn(note.ID{Pitch: 38, Voice: 1}, 1, 0)); r != Ignored {
		t.Errorf("foreign pitch result = %v", r)
	}
	if r := in.HandleEvent(note.NoteOn(note.ID{Pitch: 36, Voice: 2}, 1, 0)); r != Applied {
		t.Errorf("own pitch result = %v", r)
	}
}

func TestInstrument_velocity_sensitive_level(t *testing.T) {
	pol := assign.NewFixed(lights("a"))
	in, _ := New(Config{
		Policy:      pol,
		Mapper:      colormap.NewStatic(red),
		Envelope:    envelope.Params{Sustain: 1},
		Sensitivity: envelope.LevelOnly,
	})
	in.HandleEvent(note.NoteOn(note.ID{Pitch: 60, Voice: 1}, 0.25, 0))
	s := in.Sample(0)
	if len(s) != 1 || !near(s[0].Level, 0.25) {
		t.Errorf("samples = %+v, want level 0.25", s)
	}
}

func TestInstrument_velocity_selecting_scenario(t *testing.T) {
	pol, err := assign.NewVelocitySelecting([]assign.Bucket{
		{Min: 0, Lights: lights("A")},
		{Min: 0.5, Lights: lights("B")},
	})
	if err != nil {
		t.Fatalf("NewVelocitySelecting: %v", err)
	}
	in, _ := New(Config{Policy: pol, Mapper: colormap.NewStatic(red), Envelope: envelope.Params{Sustain: 1, Release: 10 * ms}})

	soft := note.ID{Pitch: 50, Voice: 1}
	loud := note.ID{Pitch: 60, Voice: 2}
	in.HandleEvent(note.NoteOn(soft, 0.2, 0))
	in.HandleEvent(note.NoteOn(loud, 0.9, 0))
	in.HandleEvent(note.NoteOff(loud, 0.9, 0))

	if _, stage := in.Level("B"); stage != envelope.StageRelease {
		t.Errorf("B stage = %v, want release", stage)
	}
	if _, stage := in.Level("A"); stage != envelope.StageSustain {
		t.Errorf("A stage = %v, want sustain", stage)
	}
}

func TestInstrument_strobe(t *testing.T) {
	pol := assign.NewFixed(lights("a"))
	in, err := New(Config{
		Notes:       []uint8{60},
		EffectNotes: []uint8{61},
		StrobeHz:    10,
		Policy:      pol,
		Mapper:      colormap.NewStatic(red),
		Envelope:    envelope.Params{Sustain: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in.HandleEvent(note.NoteOn(note.ID{Pitch: 60, Voice: 1}, 1, 0))
	fx := note.ID{Pitch: 61, Voice: 2}
	in.HandleEvent(note.NoteOn(fx, 1, 0))
	if !in.Strobing() {
		t.Fatal("effect note should start strobing")
	}

	want := []float64{1, 0, 1, 0}
	for i, w := range want {
		s := in.Sample(50 * ms)
		if len(s) != 1 || s[0].Level != w {
			t.Errorf("strobe step %d = %+v, want level %v", i, s, w)
		}
	}

	in.HandleEvent(note.NoteOff(fx, 0, 0))
	if s := in.Sample(50 * ms); s[0].Level != 1 {
		t.Errorf("after effect release level = %v, want 1", s[0].Level)
	}
}

func TestInstrument_AllOff(t *testing.T) {
	in := newCycle(t, envelope.Default())
	id := note.ID{Pitch: 60, Voice: 1}
	in.HandleEvent(note.NoteOn(id, 1, 0))
	in.AllOff()
	if in.Active() != 0 {
		t.Errorf("Active after AllOff = %d", in.Active())
	}
	if s := in.Sample(10 * ms); len(s) != 0 {
		t.Errorf("samples after AllOff = %+v", s)
	}
	if r := in.HandleEvent(note.NoteOff(id, 0, 0)); r != Unmatched {
		t.Errorf("note-off after AllOff = %v, want Unmatched", r)
	}
}

func TestInstrument_AllOff_rewinds_cycle(t *testing.T) {
	in := newCycle(t, envelope.Params{Sustain: 1})
	in.HandleEvent(note.NoteOn(note.ID{Pitch: 60, Voice: 1}, 1, 0))
	in.HandleEvent(note.NoteOn(note.ID{Pitch: 61, Voice: 2}, 1, 0))
	in.AllOff()

	in.HandleEvent(note.NoteOn(note.ID{Pitch: 62, Voice: 3}, 1, 0))
	s := in.Sample(0)
	if len(s) != 1 || s[0].Light != "a" {
		t.Errorf("first note after AllOff should take slot a, got %+v", s)
	}
}

func TestNew_config_errors(t *testing.T) {
	_, err := New(Config{Name: "x", Mapper: colormap.NewStatic(red)})
	var ce *ConfigError
	if !errors.As(err, &ce) || !errors.Is(err, ErrNoPolicy) || ce.Instrument != "x" {
		t.Errorf("nil policy: %v", err)
	}
	if _, err := New(Config{Policy: assign.NewFixed(nil)}); !errors.Is(err, ErrNoMapper) {
		t.Errorf("nil mapper: %v", err)
	}
	_, err = New(Config{
		Notes:       []uint8{60},
		EffectNotes: []uint8{60},
		Policy:      assign.NewFixed(nil),
		Mapper:      colormap.NewStatic(red),
	})
	if !errors.Is(err, ErrEffect) {
		t.Errorf("overlapping effect note: %v", err)
	}
}
