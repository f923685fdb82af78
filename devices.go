package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go-lightsynth/config"
	"go-lightsynth/debug"
	"go-lightsynth/driver"
	"go-lightsynth/midi"
)

// deviceHandler reacts to hot-plug events: it forwards controller input into
// the engine and points the pad mirror at the Launchpad
type deviceHandler struct {
	mu      sync.Mutex // guards cfg
	cfg     *config.Config
	bridge  *midi.Bridge
	pads    *driver.Launchpad
	onPanic func()
	status  chan<- string

	// launchpad returns a connected Launchpad, if any (DeviceManager.GetLaunchpad)
	launchpad func() midi.Controller

	mirror    string          // port currently showing lights
	forwarded map[string]bool // ports feeding the bridge
}

func (d *deviceHandler) run(ctx context.Context, events <-chan midi.DeviceEvent) {
	for ev := range events {
		switch ev.Type {
		case midi.DeviceConnected:
			d.connected(ctx, ev)
		case midi.DeviceDisconnected:
			d.disconnected(ev)
		}
	}
}

func (d *deviceHandler) connected(ctx context.Context, ev midi.DeviceEvent) {
	d.mu.Lock()
	cc := d.cfg.FindController(ev.ID)
	if cc == nil {
		// remember new devices so they can be tuned in config.json
		d.cfg.AddController(controllerConfigFor(ev.ID, ev.Controller.Type()))
		cc = d.cfg.FindController(ev.ID)
	}
	ctrl := *cc
	d.mu.Unlock()

	if !ctrl.AutoConnect {
		debug.Log("midi", "%s: autoConnect off, ignoring", ev.ID)
		d.notify("ignored: %s", ev.ID)
		return
	}

	if d.forwarded == nil {
		d.forwarded = make(map[string]bool)
	}
	d.forwarded[ev.ID] = true
	go d.bridge.Forward(ctx, ev.Controller)

	if ev.Controller.Type() == midi.ControllerLaunchpad && ctrl.ShowLights && d.mirror == "" {
		d.mirror = ev.ID
		d.pads.SetTarget(ev.Controller)
	}
	d.notify("connected: %s (%s)", ev.ID, ev.Controller.Type())
}

// disconnected stops anything the device was holding. Ignored devices
// never played a note, so they leave the show alone.
func (d *deviceHandler) disconnected(ev midi.DeviceEvent) {
	if d.mirror == ev.ID {
		d.mirror = ""
		d.pads.SetTarget(nil)
		d.remirror()
	}
	if !d.forwarded[ev.ID] {
		d.notify("disconnected: %s", ev.ID)
		return
	}
	delete(d.forwarded, ev.ID)
	d.onPanic()
	d.notify("disconnected: %s (all notes off)", ev.ID)
}

// remirror moves the pad mirror to another connected Launchpad that plays
// into the show and has showLights set
func (d *deviceHandler) remirror() {
	if d.launchpad == nil {
		return
	}
	c := d.launchpad()
	if c == nil || !d.forwarded[c.ID()] {
		return
	}
	d.mu.Lock()
	cc := d.cfg.FindController(c.ID())
	show := cc != nil && cc.ShowLights
	d.mu.Unlock()
	if !show {
		return
	}
	d.mirror = c.ID()
	d.pads.SetTarget(c)
	d.notify("lights now on %s", c.ID())
}

// notify sends a status line without blocking
func (d *deviceHandler) notify(format string, args ...any) {
	select {
	case d.status <- fmt.Sprintf(format, args...):
	default:
	}
}

// save stores the config with any newly seen devices
func (d *deviceHandler) save(lastShow string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.UI.LastShow = lastShow
	return d.cfg.Save()
}

// controllerConfigFor picks the config entry for a device seen for the first time
func controllerConfigFor(portName string, kind midi.ControllerType) config.ControllerConfig {
	cc := config.ControllerConfig{PortName: portName, AutoConnect: true}
	if kind != midi.ControllerLaunchpad {
		cc.Type = config.ControllerKeyboard
		return cc
	}
	name := strings.ToLower(portName)
	switch {
	case strings.Contains(name, "mini"):
		cc.Type = config.ControllerLaunchpadMini
	case strings.Contains(name, "pro"):
		cc.Type = config.ControllerLaunchpadPro
	default:
		cc.Type = config.ControllerLaunchpadX
	}
	cc.ShowLights = true
	return cc
}
