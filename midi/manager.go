package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-lightsynth/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of MIDI controllers
type DeviceManager struct {
	controllers map[string]Controller
	channels    map[string]int // keyboard port -> MIDI channel filter
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	keyboards   bool
}

// NewDeviceManager creates a new device manager. With keyboards set, every
// MIDI input that is not a Launchpad is opened as a keyboard.
func NewDeviceManager(keyboards bool) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		channels:    make(map[string]int),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		keyboards:   keyboards,
	}
}

// SetKeyboardChannel limits a keyboard port to one MIDI channel (1-16)
func (dm *DeviceManager) SetKeyboardChannel(portName string, channel int) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.channels[portName] = channel
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Count returns the number of connected controllers
func (dm *DeviceManager) Count() int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.controllers)
}

// GetLaunchpad returns the first connected Launchpad (or nil)
func (dm *DeviceManager) GetLaunchpad() Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, c := range dm.controllers {
		if c.Type() == ControllerLaunchpad {
			return c
		}
	}
	return nil
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		inPorts := gomidi.GetInPorts()
		outPorts := gomidi.GetOutPorts()
		ch <- portsResult{inPorts: inPorts, outPorts: outPorts}
	}()

	// Wait for result or timeout
	var inPorts []drivers.In
	var outPorts []drivers.Out

	select {
	case result := <-ch:
		inPorts = result.inPorts
		outPorts = result.outPorts
	case <-time.After(3 * time.Second):
		// CoreMIDI is hung - skip this scan
		// User needs to run: sudo killall coreaudiod midiserver
		debug.Warn("midi", "port scan timed out")
		return
	}

	// Build map of what we see now
	seenIDs := make(map[string]bool)
	var events []DeviceEvent

	for i, inPort := range inPorts {
		id := inPort.String()
		kind := classify(id)
		if kind == ControllerUnknown || (kind == ControllerKeyboard && !dm.keyboards) {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		channel := dm.channels[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var (
			c   Controller
			err error
		)
		if kind == ControllerLaunchpad {
			// Find matching output port
			var outPort drivers.Out
			for j, op := range outPorts {
				if strings.EqualFold(op.String(), id) {
					outPort = outPorts[j]
					break
				}
			}
			c, err = NewLaunchpadController(id, inPorts[i], outPort)
		} else {
			c, err = NewKeyboardController(id, inPorts[i], channel)
		}
		if err != nil {
			debug.Warn("midi", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()
		debug.Log("midi", "connected %s (%s)", id, kind)

		events = append(events, DeviceEvent{
			Type:       DeviceConnected,
			Controller: c,
			ID:         id,
		})
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		debug.Log("midi", "disconnected %s", id)
		events = append(events, DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		})
	}
	dm.mu.Unlock()

	for _, ev := range events {
		dm.events <- ev
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// classify decides what a port name is. Loopback and software ports are
// skipped.
func classify(name string) ControllerType {
	name = strings.ToLower(name)
	switch {
	case isLaunchpad(name):
		return ControllerLaunchpad
	case strings.Contains(name, "launchpad"):
		// DAW/DIN ports of a Launchpad
		return ControllerUnknown
	case strings.Contains(name, "through"), strings.Contains(name, "rtmidi"):
		return ControllerUnknown
	default:
		return ControllerKeyboard
	}
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
