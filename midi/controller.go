package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerLaunchpad
	ControllerKeyboard
)

func (t ControllerType) String() string {
	switch t {
	case ControllerLaunchpad:
		return "launchpad"
	case ControllerKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// PadEvent is sent when a pad/button is pressed or released on a grid controller
type PadEvent struct {
	Row, Col int
	Velocity uint8
	Pressed  bool
}

// NoteEvent is sent when a note is played on a keyboard. A note-on with
// velocity 0 arrives as On=false.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
}

// LEDUpdate sets one pad. Color is 8-bit RGB.
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
}

// Controller is the interface for MIDI input devices
type Controller interface {
	ID() string
	Type() ControllerType

	// Input events from the controller
	PadEvents() <-chan PadEvent   // For grid controllers (Launchpad)
	NoteEvents() <-chan NoteEvent // For keyboards

	// Output to the controller; no-op on devices without LEDs
	SetLEDBatch(updates []LEDUpdate) error

	// Lifecycle
	Close() error
}
