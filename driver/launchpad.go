package driver

import (
	"sync"

	"go-lightsynth/debug"
	"go-lightsynth/light"
	"go-lightsynth/midi"
)

// LEDSetter is the output half of a grid controller
type LEDSetter interface {
	SetLEDBatch(updates []midi.LEDUpdate) error
}

// Launchpad mirrors lights onto Launchpad pads, sending only pads whose
// colour changed since the last frame
type Launchpad struct {
	mu     sync.Mutex
	target LEDSetter
	pads   map[light.ID][2]int
	prev   map[[2]int][3]uint8 // for diffing
}

// NewLaunchpad creates a pad mirror. target may be nil until a device connects.
func NewLaunchpad(pads map[light.ID][2]int, target LEDSetter) *Launchpad {
	return &Launchpad{
		target: target,
		pads:   pads,
		prev:   make(map[[2]int][3]uint8),
	}
}

// SetTarget swaps the controller (hot-plug). The next frame is sent in full.
func (l *Launchpad) SetTarget(target LEDSetter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	debug.Log("led", "launchpad target changed, resetting diff state")
	l.target = target
	l.prev = make(map[[2]int][3]uint8) // reset state - diff will resend everything
}

func (l *Launchpad) Send(frame light.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.target == nil {
		return nil
	}

	var updates []midi.LEDUpdate
	for id, pad := range l.pads {
		c := frame[id].Bytes()
		// Only send if changed
		if prev, ok := l.prev[pad]; ok && prev == c {
			continue
		}
		updates = append(updates, midi.LEDUpdate{Row: pad[0], Col: pad[1], Color: c})
	}
	if len(updates) == 0 {
		return nil
	}
	if err := l.target.SetLEDBatch(updates); err != nil {
		return err
	}
	for _, u := range updates {
		l.prev[[2]int{u.Row, u.Col}] = u.Color
	}
	debug.LogEvery(600, "led", "launchpad flush: batch=%d", len(updates))
	return nil
}

// Close blanks the mirrored pads
func (l *Launchpad) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.target == nil {
		return nil
	}
	var updates []midi.LEDUpdate
	for _, pad := range l.pads {
		updates = append(updates, midi.LEDUpdate{Row: pad[0], Col: pad[1]})
	}
	l.prev = make(map[[2]int][3]uint8)
	return l.target.SetLEDBatch(updates)
}
