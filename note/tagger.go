package note

import "sync"

// Tagger hands out note IDs to a raw pitch stream. Note-ons get a fresh
// voice; a note-off resolves to the oldest unreleased voice of its pitch.
type Tagger struct {
	mu       sync.Mutex
	next     uint64
	sounding map[uint8][]ID
}

// NewTagger creates an empty tagger
func NewTagger() *Tagger {
	return &Tagger{sounding: make(map[uint8][]ID)}
}

// On tags a note-on
func (t *Tagger) On(pitch uint8) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := ID{Pitch: pitch, Voice: t.next}
	t.sounding[pitch] = append(t.sounding[pitch], id)
	return id
}

// Off resolves a note-off. ok is false if no voice of that pitch is sounding.
func (t *Tagger) Off(pitch uint8) (id ID, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.sounding[pitch]
	if len(ids) == 0 {
		return ID{}, false
	}
	id = ids[0]
	if len(ids) == 1 {
		delete(t.sounding, pitch)
	} else {
		t.sounding[pitch] = ids[1:]
	}
	return id, true
}

// Reset forgets every sounding voice (device lost, panic)
func (t *Tagger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sounding = make(map[uint8][]ID)
}

// Sounding returns how many voices are waiting for a note-off
func (t *Tagger) Sounding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, ids := range t.sounding {
		n += len(ids)
	}
	return n
}
