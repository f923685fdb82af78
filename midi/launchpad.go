package midi

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go-lightsynth/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ledSendCount uint64

// Novation SysEx device IDs
const (
	deviceLaunchpadX    byte = 0x0C
	deviceLaunchpadMini byte = 0x0D
	deviceLaunchpadPro  byte = 0x0E
)

// LaunchpadController handles a Novation Launchpad X / Mini MK3 / Pro MK3
type LaunchpadController struct {
	id       string
	device   byte
	outPort  drivers.Out
	inPort   drivers.In
	send     func(msg gomidi.Message) error
	stopFunc func()

	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// NewLaunchpadController creates and configures a Launchpad
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out) (*LaunchpadController, error) {
	lp := &LaunchpadController{
		id:       id,
		device:   deviceID(id),
		inPort:   inPort,
		outPort:  outPort,
		padChan:  make(chan PadEvent, 64),
		noteChan: make(chan NoteEvent, 32),
	}

	// Open output
	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		lp.send = send

		// Programmer mode: X selects the programmer layout (00 7F),
		// Mini/Pro MK3 toggle it (0E 01)
		if lp.device == deviceLaunchpadX {
			lp.send(gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, lp.device, 0x00, 0x7F}))
		} else {
			lp.send(gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, lp.device, 0x0E, 0x01}))
		}

		// Set brightness to maximum (0-127)
		// F0 00 20 29 02 <dev> 08 <brightness> F7
		lp.send(gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, lp.device, 0x08, 0x7F}))
	}

	// Open input
	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			if ev, ok := padEvent(msg); ok {
				select {
				case lp.padChan <- ev:
				default:
				}
			}
		}, gomidi.HandleError(func(err error) {
			debug.Warn("launchpad", "%s: listener error: %v", id, err)
		}))
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		lp.stopFunc = stop
	}

	return lp, nil
}

// padEvent decodes grid notes and top-row CCs, presses and releases
func padEvent(msg gomidi.Message) (PadEvent, bool) {
	var channel, note, velocity uint8
	var cc, value uint8

	// Handle note messages (8x8 grid + side buttons)
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
	case msg.GetNoteEnd(&channel, &note):
		velocity = 0
	case msg.GetControlChange(&channel, &cc, &value):
		// Top row buttons CC 91-98
		row, col := ccToRowCol(cc)
		if row < 0 {
			return PadEvent{}, false
		}
		return PadEvent{Row: row, Col: col, Velocity: value, Pressed: value > 0}, true
	default:
		return PadEvent{}, false
	}
	row, col := noteToRowCol(note)
	if row < 0 {
		return PadEvent{}, false
	}
	return PadEvent{Row: row, Col: col, Velocity: velocity, Pressed: velocity > 0}, true
}

func deviceID(portName string) byte {
	name := strings.ToLower(portName)
	switch {
	case strings.Contains(name, "mini"):
		return deviceLaunchpadMini
	case strings.Contains(name, "pro"):
		return deviceLaunchpadPro
	default:
		return deviceLaunchpadX
	}
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.noteChan // Launchpad doesn't send note events in the keyboard sense
}

// SetLEDBatch lights pads with true RGB in one SysEx message
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}

	if err := lp.send(gomidi.SysEx(ledSysEx(lp.device, updates))); err != nil {
		return err
	}

	atomic.AddUint64(&ledSendCount, uint64(len(updates)))

	count := atomic.LoadUint64(&ledSendCount)
	if count%1000 < uint64(len(updates)) {
		debug.Log("lp-send", "batch count=%d (this batch=%d)", count, len(updates))
	}

	return nil
}

// ledSysEx builds the body (no F0/F7) of an LED lighting message using
// colour spec 3: index, r, g, b with 7-bit channels
func ledSysEx(device byte, updates []LEDUpdate) []byte {
	data := make([]byte, 0, 7+len(updates)*5)
	data = append(data, 0x00, 0x20, 0x29, 0x02, device, 0x03)
	for _, u := range updates {
		data = append(data, 0x03, rowColToNote(u.Row, u.Col),
			u.Color[0]>>1, u.Color[1]>>1, u.Color[2]>>1)
	}
	return data
}

func (lp *LaunchpadController) Close() error {
	// Clear all LEDs on close via batch
	if lp.send != nil {
		var updates []LEDUpdate
		for row := 0; row < 9; row++ {
			for col := 0; col < 9; col++ {
				if row == 8 && col == 8 {
					continue // no LED at 8,8
				}
				updates = append(updates, LEDUpdate{Row: row, Col: col})
			}
		}
		lp.SetLEDBatch(updates)
	}
	if lp.stopFunc != nil {
		lp.stopFunc()
	}
	close(lp.padChan)
	close(lp.noteChan)
	return nil
}

// Launchpad programmer-mode note mapping
// 8x8 Grid:  Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88
// Side col:  Col 8 (right side scene buttons) = notes 19, 29, 39, 49, 59, 69, 79, 89
// Top row:   Row 8 (top control row) = CC 91-98 (handled via CC messages)

func rowColToNote(row, col int) uint8 {
	// Top row uses CC, but for LED control we use notes 91-98
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

// PadNote returns the programmer-mode note number of a pad; shows use it as
// the pitch when a Launchpad plays lights
func PadNote(row, col int) uint8 {
	return rowColToNote(row, col)
}

func noteToRowCol(note uint8) (row, col int) {
	// Top row notes (91-98)
	if note >= 91 && note <= 98 {
		return 8, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	// Accept 8x8 grid (rows 0-7, cols 0-7) plus side column (col 8)
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

// ccToRowCol converts CC messages to row/col (for top row buttons)
func ccToRowCol(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return 8, int(cc - 91)
	}
	return -1, -1
}
