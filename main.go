package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-lightsynth/config"
	"go-lightsynth/debug"
	"go-lightsynth/driver"
	"go-lightsynth/engine"
	"go-lightsynth/light"
	"go-lightsynth/metrics"
	"go-lightsynth/midi"
	"go-lightsynth/note"
	"go-lightsynth/server"
	"go-lightsynth/theme"
	"go-lightsynth/tui"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// .env is optional
	_ = config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if len(os.Args) > 1 {
		cfg.ShowPath = os.Args[1]
	}

	debug.SetLevel(cfg.LogLevel)
	if err := debug.Enable(debug.DefaultPath()); err != nil {
		fmt.Printf("Warning: debug log disabled: %v\n", err)
	}
	defer debug.Disable()

	show, err := config.LoadShow(cfg.ShowPath)
	if err != nil {
		fmt.Printf("Error loading show: %v\n", err)
		os.Exit(1)
	}

	met := metrics.New()
	eng, err := show.Build(engine.WithObserver(met))
	if err != nil {
		fmt.Printf("Error building show: %v\n", err)
		os.Exit(1)
	}
	hz := cfg.TickHz
	if show.TickHz > 0 {
		hz = show.TickHz
	}
	debug.Log("main", "show %s: %d lights, %d instruments, %d Hz",
		cfg.ShowPath, len(eng.Lights()), len(eng.Instruments()), hz)

	// Outputs
	pads := driver.NewLaunchpad(show.Pads(), nil)
	out := driver.NewMulti(pads)
	if port := cfg.Outputs.Serial.Port; port != "" {
		s, err := driver.OpenSerial(port, cfg.Outputs.Serial.Baud, show.Pixels())
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			out.Add(s)
		}
	}
	if addr := cfg.Outputs.ArtNet.Addr; addr != "" {
		a, err := driver.DialArtNet(addr, cfg.Outputs.ArtNet.Universe, show.DMXChannels())
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			out.Add(a)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// One tagger for every transport so voice IDs never collide
	tagger := note.NewTagger()
	bridge := midi.NewBridge(eng, tagger)
	panicAll := func() {
		eng.Panic()
		bridge.Reset()
	}

	// MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager(true)
	for _, c := range cfg.Controllers {
		if c.Type == config.ControllerKeyboard && c.InputChannel > 0 {
			deviceMgr.SetKeyboardChannel(c.PortName, c.InputChannel)
		}
	}
	status := make(chan string, 16)
	devices := &deviceHandler{
		cfg:     cfg,
		bridge:  bridge,
		pads:    pads,
		onPanic: panicAll,
		status:  status,

		launchpad: deviceMgr.GetLaunchpad,
	}
	go deviceMgr.Run(ctx)
	go devices.run(ctx, deviceMgr.Events())

	// Engine loop
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx, hz, func(f light.Frame) {
			if err := out.Send(f); err != nil {
				debug.LogEvery(hz, "output", "send: %v", err)
			}
		})
	}()

	// HTTP control surface
	var srv *http.Server
	if cfg.HTTPAddr != "" {
		h := server.NewHandler(eng, tagger, debug.Logger(), met)
		srv = &http.Server{Addr: cfg.HTTPAddr, Handler: h.Router(deviceMgr.Count)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				debug.Warn("http", "server error: %v", err)
			}
		}()
		debug.Log("http", "listening on %s", cfg.HTTPAddr)
	}

	title := "go-lightsynth  " + strings.TrimSuffix(filepath.Base(cfg.ShowPath), filepath.Ext(cfg.ShowPath))
	if cfg.UI.Monitor {
		m := tui.NewModel(eng, theme.Default(), title, show.Pads(), status, panicAll)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			fmt.Printf("Error: %v\n", err)
		}
		cancel()
	} else {
		fmt.Println(title)
		fmt.Println("Connect MIDI devices any time - they'll be detected automatically")
		fmt.Println("Ctrl+C to quit")
		<-ctx.Done()
	}

	// Shutdown: the engine loop sends a black frame on its way out
	<-engineDone
	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(sctx); err != nil {
			debug.Warn("http", "shutdown: %v", err)
		}
		scancel()
	}
	if err := out.Close(); err != nil {
		debug.Warn("output", "close: %v", err)
	}

	if err := devices.save(cfg.ShowPath); err != nil {
		debug.Warn("main", "save config: %v", err)
	}
	debug.Log("main", "stopped")
}
