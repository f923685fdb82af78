package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-lightsynth/assign"
	"go-lightsynth/colormap"
	"go-lightsynth/engine"
	"go-lightsynth/envelope"
	"go-lightsynth/instrument"
	"go-lightsynth/light"
	"go-lightsynth/metrics"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ids := []light.ID{"a", "b"}
	pol, err := assign.NewCycle(assign.SingleSlots(ids))
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	in, err := instrument.New(instrument.Config{
		Name:     "test",
		Policy:   pol,
		Mapper:   colormap.NewStatic(light.RGB{R: 1}),
		Envelope: envelope.Params{Sustain: 1},
	})
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	return engine.New(ids, []*instrument.Instrument{in})
}

func newTestRouter(t *testing.T, eng *engine.Engine, m *metrics.Metrics) http.Handler {
	t.Helper()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler(eng, nil, log, m).Router(func() int { return 1 })
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandler_Health(t *testing.T) {
	r := newTestRouter(t, newTestEngine(t), nil)
	if rec := do(r, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_note_then_frame(t *testing.T) {
	eng := newTestEngine(t)
	r := newTestRouter(t, eng, nil)

	rec := do(r, http.MethodPost, "/notes/60/on?velocity=1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if eng.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", eng.Pending())
	}
	eng.Tick(10 * time.Millisecond)

	rec = do(r, http.MethodGet, "/frame")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var frame []LightState
	if err := json.NewDecoder(rec.Body).Decode(&frame); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frame) != 2 || frame[0].ID != "a" || frame[1].ID != "b" {
		t.Fatalf("frame = %+v", frame)
	}
	if frame[0].R != 1 || frame[0].Hex != "#ff0000" {
		t.Errorf("a = %+v, want red", frame[0])
	}
	if frame[1].Hex != "#000000" {
		t.Errorf("b = %+v, want black", frame[1])
	}

	if rec := do(r, http.MethodPost, "/notes/60/off"); rec.Code != http.StatusOK {
		t.Errorf("note-off: expected 200, got %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/notes/60/off"); rec.Code != http.StatusNotFound {
		t.Errorf("second note-off: expected 404, got %d", rec.Code)
	}
}

func TestHandler_bad_note_requests(t *testing.T) {
	r := newTestRouter(t, newTestEngine(t), nil)
	for _, p := range []string{"/notes/128/on", "/notes/x/on", "/notes/60/on?velocity=2", "/notes/-1/off"} {
		if rec := do(r, http.MethodPost, p); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", p, rec.Code)
		}
	}
}

func TestHandler_Panic(t *testing.T) {
	eng := newTestEngine(t)
	r := newTestRouter(t, eng, nil)
	do(r, http.MethodPost, "/notes/60/on")
	eng.Tick(10 * time.Millisecond)
	do(r, http.MethodPost, "/notes/61/on")

	if rec := do(r, http.MethodPost, "/panic"); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if eng.Pending() != 0 {
		t.Errorf("Pending after panic = %d", eng.Pending())
	}
	for l, c := range eng.Tick(10 * time.Millisecond) {
		if c != light.Black {
			t.Errorf("%s = %v after panic", l, c)
		}
	}
}

func TestHandler_metrics(t *testing.T) {
	eng := newTestEngine(t)
	r := newTestRouter(t, eng, metrics.New())
	do(r, http.MethodPost, "/notes/60/on")

	rec := do(r, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"lightsynth_pending_events 1", "lightsynth_midi_devices 1", "lightsynth_http_requests_total 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
