package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-lightsynth/driver"
	"go-lightsynth/light"
	lsmidi "go-lightsynth/midi"
	"go-lightsynth/note"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "notes":
		printNotes()
	case "leds":
		testLEDs()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list    - List all MIDI ports")
	fmt.Println("  notes   - Print tagged note events from every controller")
	fmt.Println("  leds    - Light a hue sweep on a Launchpad")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

// printSink prints what the engine would receive
type printSink struct {
	start time.Time
}

func (p printSink) Submit(ev note.Event) {
	fmt.Printf("%8.3fs  %-3s %-8s vel=%.2f\n", ev.Time.Seconds(), ev.Kind, ev.ID, ev.Velocity)
}

func (p printSink) Now() time.Duration {
	return time.Since(p.start)
}

func printNotes() {
	fmt.Println("Listening for notes. Ctrl+C to exit.")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dm := lsmidi.NewDeviceManager(true)
	go dm.Run(ctx)

	bridge := lsmidi.NewBridge(printSink{start: time.Now()}, nil)
	for ev := range dm.Events() {
		switch ev.Type {
		case lsmidi.DeviceConnected:
			fmt.Printf("-> connected %s (%s)\n", ev.ID, ev.Controller.Type())
			go bridge.Forward(ctx, ev.Controller)
		case lsmidi.DeviceDisconnected:
			fmt.Printf("-> disconnected %s\n", ev.ID)
			bridge.Reset()
		}
	}
}

func testLEDs() {
	fmt.Println("Looking for a Launchpad...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dm := lsmidi.NewDeviceManager(false)
	go dm.Run(ctx)

	var lp lsmidi.Controller
	select {
	case ev := <-dm.Events():
		lp = ev.Controller
	case <-time.After(5 * time.Second):
		fmt.Println("No Launchpad found")
		return
	}
	fmt.Printf("Using %s\n", lp.ID())

	// one light per grid pad, hue sweeping across the grid
	pads := make(map[light.ID][2]int)
	frame := make(light.Frame)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			id := light.ID(fmt.Sprintf("%d%d", row, col))
			pads[id] = [2]int{row, col}
			c := colorful.Hsv(float64(row*8+col)*360/64, 1, 1)
			frame[id] = light.RGB{R: c.R, G: c.G, B: c.B}
		}
	}

	out := driver.NewLaunchpad(pads, lp)
	if err := out.Send(frame); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("Press Enter to clear...")
	fmt.Scanln()

	out.Close()
	fmt.Println("Done!")
}
