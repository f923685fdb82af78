package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-lightsynth/note"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_observer(t *testing.T) {
	m := New()
	m.EventApplied(note.On)
	m.EventApplied(note.On)
	m.EventApplied(note.Off)
	m.EventUnmatched()
	m.Dropped(3)
	m.Panicked()
	m.Ticked(2*time.Millisecond, 4)

	out := scrape(t, m, func() { m.SetPending(7); m.SetDevices(2) })
	for _, want := range []string{
		`lightsynth_events_total{kind="on"} 2`,
		`lightsynth_events_total{kind="off"} 1`,
		"lightsynth_events_unmatched_total 1",
		"lightsynth_events_dropped_total 3",
		"lightsynth_panics_total 1",
		"lightsynth_active_envelopes 4",
		"lightsynth_pending_events 7",
		"lightsynth_midi_devices 2",
		"lightsynth_tick_duration_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	for _, p := range []string{"/ok", "/bad", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	out := scrape(t, m, nil)
	if !strings.Contains(out, "lightsynth_http_requests_total 3") {
		t.Errorf("requests not counted:\n%s", out)
	}
	if !strings.Contains(out, "lightsynth_http_errors_total 1") {
		t.Errorf("errors not counted:\n%s", out)
	}
}
