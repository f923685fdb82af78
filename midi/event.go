package midi

import (
	"context"
	"time"

	"go-lightsynth/debug"
	"go-lightsynth/note"
)

// NoteSink takes tagged note events; *engine.Engine satisfies it
type NoteSink interface {
	Submit(ev note.Event)
	Now() time.Duration
}

// Bridge turns controller input into engine note events. One Bridge (and
// its Tagger) serves every device so voice IDs never collide.
type Bridge struct {
	sink   NoteSink
	tagger *note.Tagger
}

// NewBridge creates a bridge into sink
func NewBridge(sink NoteSink, tagger *note.Tagger) *Bridge {
	if tagger == nil {
		tagger = note.NewTagger()
	}
	return &Bridge{sink: sink, tagger: tagger}
}

// Note submits a keyboard event stamped with the engine clock. A note-off
// with nothing sounding on its pitch is dropped.
func (b *Bridge) Note(ev NoteEvent) {
	at := b.sink.Now()
	if ev.On {
		id := b.tagger.On(ev.Note)
		b.sink.Submit(note.NoteOn(id, note.Velocity(ev.Velocity), at))
		return
	}
	id, ok := b.tagger.Off(ev.Note)
	if !ok {
		debug.Trace("midi", "note-off %d with no sounding voice", ev.Note)
		return
	}
	b.sink.Submit(note.NoteOff(id, note.Velocity(ev.Velocity), at))
}

// Pad plays a Launchpad pad as the note PadNote(row, col)
func (b *Bridge) Pad(ev PadEvent) {
	b.Note(NoteEvent{Note: PadNote(ev.Row, ev.Col), Velocity: ev.Velocity, On: ev.Pressed})
}

// Reset forgets sounding voices (after panic or a lost device)
func (b *Bridge) Reset() {
	b.tagger.Reset()
}

// Forward pumps a controller's input into the bridge until both its
// channels close or ctx is done
func (b *Bridge) Forward(ctx context.Context, c Controller) {
	notes, pads := c.NoteEvents(), c.PadEvents()
	for notes != nil || pads != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			b.Note(ev)
		case ev, ok := <-pads:
			if !ok {
				pads = nil
				continue
			}
			b.Pad(ev)
		}
	}
	debug.Log("midi", "%s: input closed", c.ID())
}
