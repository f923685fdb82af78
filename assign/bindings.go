package assign

import (
	"go-lightsynth/light"
	"go-lightsynth/note"
)

// Bindings records which lights each sounding note switched on, so its
// note-off releases exactly those. One table per instrument.
type Bindings struct {
	notes map[note.ID][]light.ID
	holds map[light.ID]int // live bindings per light
}

// NewBindings creates an empty table
func NewBindings() *Bindings {
	return &Bindings{
		notes: make(map[note.ID][]light.ID),
		holds: make(map[light.ID]int),
	}
}

// Bind records lights for a note. Exclusive bindings take their lights away
// from any other note holding them; otherwise lights may be shared.
// Rebinding a note replaces its previous entry.
func (b *Bindings) Bind(id note.ID, lights []light.ID, exclusive bool) {
	b.drop(id)
	if len(lights) == 0 {
		return
	}
	if exclusive {
		for _, l := range lights {
			if b.holds[l] > 0 {
				b.steal(l)
			}
		}
	}
	owned := make([]light.ID, len(lights))
	copy(owned, lights)
	b.notes[id] = owned
	for _, l := range owned {
		b.holds[l]++
	}
}

// Release removes the note's binding and returns the lights no other note
// still holds. ok is false when the note has no binding.
func (b *Bindings) Release(id note.ID) (free []light.ID, ok bool) {
	lights, ok := b.notes[id]
	if !ok {
		return nil, false
	}
	delete(b.notes, id)
	for _, l := range lights {
		if b.unhold(l) {
			free = append(free, l)
		}
	}
	return free, true
}

// Lookup returns the lights bound to a note
func (b *Bindings) Lookup(id note.ID) ([]light.ID, bool) {
	lights, ok := b.notes[id]
	return lights, ok
}

// Holders returns how many live notes hold a light
func (b *Bindings) Holders(l light.ID) int {
	return b.holds[l]
}

// Len returns the number of live bindings
func (b *Bindings) Len() int {
	return len(b.notes)
}

// Clear forgets every binding (panic)
func (b *Bindings) Clear() {
	b.notes = make(map[note.ID][]light.ID)
	b.holds = make(map[light.ID]int)
}

func (b *Bindings) drop(id note.ID) {
	lights, ok := b.notes[id]
	if !ok {
		return
	}
	delete(b.notes, id)
	for _, l := range lights {
		b.unhold(l)
	}
}

// steal removes a light from every binding that holds it
func (b *Bindings) steal(l light.ID) {
	for id, lights := range b.notes {
		kept := lights[:0:0]
		for _, x := range lights {
			if x != l {
				kept = append(kept, x)
			}
		}
		if len(kept) == len(lights) {
			continue
		}
		if len(kept) == 0 {
			delete(b.notes, id)
		} else {
			b.notes[id] = kept
		}
	}
	delete(b.holds, l)
}

// unhold decrements a light's hold count and reports whether it is now free
func (b *Bindings) unhold(l light.ID) bool {
	n := b.holds[l] - 1
	if n <= 0 {
		delete(b.holds, l)
		return true
	}
	b.holds[l] = n
	return false
}
