package midi

import (
	"fmt"

	"go-lightsynth/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController handles a standard MIDI keyboard
type KeyboardController struct {
	id       string
	inPort   drivers.In
	channel  int // 1-16, 0 = omni
	stopFunc func()

	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// NewKeyboardController creates a keyboard controller (input only).
// channel filters to one MIDI channel (1-16); 0 accepts all.
func NewKeyboardController(id string, inPort drivers.In, channel int) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:       id,
		inPort:   inPort,
		channel:  channel,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent, 128),
	}

	// Open input
	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			if ev, ok := kb.translate(msg); ok {
				select {
				case kb.noteChan <- ev:
				default:
					debug.Warn("keyboard", "%s: note queue full, dropped %d", id, ev.Note)
				}
			}
		}, gomidi.HandleError(func(err error) {
			debug.Warn("keyboard", "%s: listener error: %v", id, err)
		}))
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

// translate turns a raw message into a note event. Note-ons with
// velocity 0 are note-offs.
func (kb *KeyboardController) translate(msg gomidi.Message) (NoteEvent, bool) {
	var channel, note, velocity uint8
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
	case msg.GetNoteEnd(&channel, &note):
		velocity = 0
	default:
		return NoteEvent{}, false
	}
	if kb.channel > 0 && int(channel)+1 != kb.channel {
		return NoteEvent{}, false
	}
	return NoteEvent{Note: note, Velocity: velocity, Channel: channel, On: velocity > 0}, true
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) PadEvents() <-chan PadEvent {
	return kb.padChan // Keyboards don't have pads
}

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

// SetLEDBatch is a no-op for keyboards
func (kb *KeyboardController) SetLEDBatch(updates []LEDUpdate) error {
	return nil
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	close(kb.padChan)
	close(kb.noteChan)
	return nil
}
