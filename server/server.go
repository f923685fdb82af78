// Package server is the HTTP control surface: metrics, the current frame,
// panic and a note endpoint for driving a show without MIDI hardware.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go-lightsynth/light"
	"go-lightsynth/metrics"
	"go-lightsynth/note"

	"github.com/go-chi/chi/v5"
	"github.com/lucasb-eyer/go-colorful"
)

// Engine is the part of *engine.Engine the server uses
type Engine interface {
	Submit(ev note.Event)
	Panic()
	Pending() int
	Now() time.Duration
	Frame() light.Frame
	Lights() []light.ID
}

// Handler exposes the engine over HTTP
type Handler struct {
	eng     Engine
	tagger  *note.Tagger
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. tagger pairs note-offs from the note endpoint
// and may be shared with other transports. Metrics may be nil.
func NewHandler(eng Engine, tagger *note.Tagger, log *slog.Logger, m *metrics.Metrics) *Handler {
	if tagger == nil {
		tagger = note.NewTagger()
	}
	return &Handler{eng: eng, tagger: tagger, log: log, metrics: m}
}

// Router builds the chi router with logging and request metrics
func (h *Handler) Router(devices func() int) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(h.log))
	if h.metrics != nil {
		r.Use(metrics.RequestMiddleware(h.metrics))
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			h.metrics.Handler(func() {
				h.metrics.SetPending(h.eng.Pending())
				if devices != nil {
					h.metrics.SetDevices(devices())
				}
			}).ServeHTTP(w, r)
		})
	}
	r.Get("/healthz", h.Health)
	r.Get("/frame", h.GetFrame)
	r.Post("/panic", h.Panic)
	r.Route("/notes/{pitch}", func(r chi.Router) {
		r.Post("/on", h.NoteOn)
		r.Post("/off", h.NoteOff)
	})
	return r
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// LightState is one light in the /frame response
type LightState struct {
	ID  light.ID `json:"id"`
	R   float64  `json:"r"`
	G   float64  `json:"g"`
	B   float64  `json:"b"`
	Hex string   `json:"hex"`
}

// GetFrame handles GET /frame: the last composed frame in show order
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	frame := h.eng.Frame()
	out := make([]LightState, 0, len(frame))
	for _, id := range h.eng.Lights() {
		c := frame[id]
		out = append(out, LightState{
			ID:  id,
			R:   c.R,
			G:   c.G,
			B:   c.B,
			Hex: colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

// Panic handles POST /panic
func (h *Handler) Panic(w http.ResponseWriter, r *http.Request) {
	h.eng.Panic()
	h.tagger.Reset()
	h.log.Info("panic requested", slog.String("remote", r.RemoteAddr))
	w.WriteHeader(http.StatusAccepted)
}

// NoteOn handles POST /notes/{pitch}/on?velocity=0.8 (default 1)
func (h *Handler) NoteOn(w http.ResponseWriter, r *http.Request) {
	pitch, ok := parsePitch(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	vel := 1.0
	if s := r.URL.Query().Get("velocity"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			h.log.Debug("bad velocity", slog.String("velocity", s))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		vel = v
	}
	id := h.tagger.On(pitch)
	h.eng.Submit(note.NoteOn(id, vel, h.eng.Now()))
	writeNote(w, http.StatusCreated, id)
}

// NoteOff handles POST /notes/{pitch}/off, releasing the oldest sounding
// note of that pitch
func (h *Handler) NoteOff(w http.ResponseWriter, r *http.Request) {
	pitch, ok := parsePitch(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	id, ok := h.tagger.Off(pitch)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.eng.Submit(note.NoteOff(id, 0, h.eng.Now()))
	writeNote(w, http.StatusOK, id)
}

func parsePitch(r *http.Request) (uint8, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "pitch"))
	if err != nil || n < 0 || n > 127 {
		return 0, false
	}
	return uint8(n), true
}

func writeNote(w http.ResponseWriter, status int, id note.ID) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"pitch": id.Pitch, "voice": id.Voice})
}
