// Package engine drives a set of light instruments from a note queue and
// composes their output into one frame per tick.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go-lightsynth/debug"
	"go-lightsynth/instrument"
	"go-lightsynth/light"
	"go-lightsynth/note"
)

// Observer receives engine activity (metrics). Calls happen on the tick
// goroutine except Dropped, which comes from Panic's caller.
type Observer interface {
	EventApplied(kind note.Kind)
	EventUnmatched()
	Dropped(n int)
	Ticked(took time.Duration, active int)
	Panicked()
}

type nopObserver struct{}

func (nopObserver) EventApplied(note.Kind)    {}
func (nopObserver) EventUnmatched()           {}
func (nopObserver) Dropped(int)               {}
func (nopObserver) Ticked(time.Duration, int) {}
func (nopObserver) Panicked()                 {}

// Option configures an Engine
type Option func(*Engine)

// WithBlend sets how overlapping instruments combine (default Additive)
func WithBlend(b Blend) Option {
	return func(e *Engine) { e.blend = b }
}

// WithObserver attaches metrics
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.obs = o
		}
	}
}

// WithParallel samples instruments on separate goroutines each tick
func WithParallel(on bool) Option {
	return func(e *Engine) { e.parallel = on }
}

// Engine owns the instruments of a show. Submit and Panic may be called from
// any goroutine; Tick and Run belong to a single driver goroutine.
type Engine struct {
	instruments []*instrument.Instrument
	lights      []light.ID

	blend    Blend
	obs      Observer
	parallel bool

	mu           sync.Mutex // guards queue, seq, panicPending
	queue        eventQueue
	seq          uint64
	panicPending bool

	clock atomic.Int64 // time.Duration since start

	frameMu sync.RWMutex
	frame   light.Frame

	// per-tick scratch, tick goroutine only
	drained []note.Event
	samples [][]light.Sample
}

// New creates an engine. lights is the show's light set in display order;
// instrument lights missing from it are appended.
func New(lights []light.ID, instruments []*instrument.Instrument, opts ...Option) *Engine {
	e := &Engine{
		instruments: instruments,
		blend:       Additive,
		obs:         nopObserver{},
		samples:     make([][]light.Sample, len(instruments)),
	}
	seen := make(map[light.ID]bool)
	add := func(l light.ID) {
		if !seen[l] {
			seen[l] = true
			e.lights = append(e.lights, l)
		}
	}
	for _, l := range lights {
		add(l)
	}
	for _, in := range instruments {
		for _, l := range in.Lights() {
			add(l)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	e.frame = Compose(e.lights, nil, e.blend)
	return e
}

// Submit queues an event without blocking on the tick. Events are applied
// in timestamp order, ties in arrival order. Negative timestamps count as 0.
func (e *Engine) Submit(ev note.Event) {
	if ev.Time < 0 {
		ev.Time = 0
	}
	e.mu.Lock()
	e.seq++
	e.queue.push(ev, e.seq)
	e.mu.Unlock()
}

// Pending returns the number of queued events
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// Panic requests all-off: pending events are dropped and, before the next
// tick applies anything, every envelope goes idle and every binding is cleared.
func (e *Engine) Panic() {
	e.mu.Lock()
	dropped := e.queue.Len()
	e.queue = nil
	e.panicPending = true
	e.mu.Unlock()

	debug.Log("engine", "panic: dropped %d pending events", dropped)
	if dropped > 0 {
		e.obs.Dropped(dropped)
	}
}

// Now returns the engine clock; transports stamp events with it
func (e *Engine) Now() time.Duration {
	return time.Duration(e.clock.Load())
}

// Tick applies every pending event stamped at or before Now, samples all
// instruments over dt, composes the frame and moves the clock on by dt.
func (e *Engine) Tick(dt time.Duration) light.Frame {
	start := time.Now()
	if dt < 0 {
		dt = 0
	}

	e.mu.Lock()
	doPanic := e.panicPending
	e.panicPending = false
	e.drained = e.queue.popUntil(e.Now(), e.drained[:0])
	e.mu.Unlock()

	if doPanic {
		for _, in := range e.instruments {
			in.AllOff()
		}
		e.obs.Panicked()
	}

	for _, ev := range e.drained {
		e.dispatch(ev)
	}

	e.sample(dt)
	frame := Compose(e.lights, e.samples, e.blend)
	e.clock.Add(int64(dt))

	e.frameMu.Lock()
	e.frame = frame
	e.frameMu.Unlock()

	e.obs.Ticked(time.Since(start), e.Active())
	return frame
}

// dispatch hands one event to every instrument
func (e *Engine) dispatch(ev note.Event) {
	applied, unmatched := false, false
	for _, in := range e.instruments {
		switch in.HandleEvent(ev) {
		case instrument.Applied:
			applied = true
		case instrument.Unmatched:
			unmatched = true
		}
	}
	switch {
	case applied:
		e.obs.EventApplied(ev.Kind)
	case unmatched:
		debug.Trace("engine", "unmatched note-%s %v", ev.Kind, ev.ID)
		e.obs.EventUnmatched()
	}
}

func (e *Engine) sample(dt time.Duration) {
	if !e.parallel || len(e.instruments) < 2 {
		for i, in := range e.instruments {
			e.samples[i] = in.Sample(dt)
		}
		return
	}
	// instruments share no state, so each gets its own goroutine
	var wg sync.WaitGroup
	for i, in := range e.instruments {
		i, in := i, in
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.samples[i] = in.Sample(dt)
		}()
	}
	wg.Wait()
}

// Run ticks at hz until ctx is cancelled, passing each frame to sink.
// A black frame is sent on the way out.
func (e *Engine) Run(ctx context.Context, hz int, sink func(light.Frame)) {
	if hz <= 0 {
		hz = DefaultHz
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	emit := func(f light.Frame) {
		if sink != nil {
			sink(f)
		}
	}

	last := time.Now()
	emit(e.Tick(0))
	for {
		select {
		case <-ctx.Done():
			emit(Compose(e.lights, nil, e.blend))
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			emit(e.Tick(dt))
			debug.LogEvery(hz*10, "engine", "tick dt=%v active=%d", dt, e.Active())
		}
	}
}

// DefaultHz is the output rate used when none is configured
const DefaultHz = 60

// Frame returns the most recent frame. Do not modify it.
func (e *Engine) Frame() light.Frame {
	e.frameMu.RLock()
	defer e.frameMu.RUnlock()
	return e.frame
}

// Lights returns the show's light set in display order
func (e *Engine) Lights() []light.ID {
	out := make([]light.ID, len(e.lights))
	copy(out, e.lights)
	return out
}

// Instruments returns the instruments in compose order
func (e *Engine) Instruments() []*instrument.Instrument {
	return e.instruments
}

// Active returns the number of running envelopes across all instruments.
// Tick goroutine only.
func (e *Engine) Active() int {
	n := 0
	for _, in := range e.instruments {
		n += in.Active()
	}
	return n
}
