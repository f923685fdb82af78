package note

import (
	"fmt"
	"time"
)

// Kind distinguishes note-on from note-off
type Kind uint8

const (
	On Kind = iota
	Off
)

func (k Kind) String() string {
	if k == On {
		return "on"
	}
	return "off"
}

// ID identifies one sounding note instance. The same pitch retriggered
// before its release gets a new Voice.
type ID struct {
	Pitch uint8
	Voice uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%d#%d", id.Pitch, id.Voice)
}

// Event is a note-on or note-off. Produced by a transport and passed by value.
type Event struct {
	ID       ID
	Kind     Kind
	Pitch    uint8
	Velocity float64       // 0-1
	Time     time.Duration // engine clock
}

// NoteOn builds a note-on event
func NoteOn(id ID, velocity float64, at time.Duration) Event {
	return Event{ID: id, Kind: On, Pitch: id.Pitch, Velocity: velocity, Time: at}
}

// NoteOff builds a note-off event for a previously started note
func NoteOff(id ID, velocity float64, at time.Duration) Event {
	return Event{ID: id, Kind: Off, Pitch: id.Pitch, Velocity: velocity, Time: at}
}

// Velocity converts a 7-bit MIDI velocity to 0-1 with 64 at the midpoint
func Velocity(v uint8) float64 {
	switch {
	case v == 0:
		return 0
	case v == 64:
		return 0.5
	case v >= 127:
		return 1
	case v < 64:
		return float64(v) / 128
	default:
		return float64(v-1) / 126
	}
}
