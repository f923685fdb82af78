package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-lightsynth/light"
	"go-lightsynth/theme"
	"go-lightsynth/widgets"
)

// Engine is the part of the engine the monitor reads
type Engine interface {
	Frame() light.Frame
	Lights() []light.ID
	Pending() int
	Now() time.Duration
}

type viewMode int

const (
	viewGrid viewMode = iota
	viewStrip
)

// refresh rate of the monitor, independent of the engine tick
const fps = 30

// Model is a read-only monitor of the engine's frames with a panic key
type Model struct {
	Engine  Engine
	Theme   *theme.Theme
	Title   string
	pads    map[light.ID][2]int
	status  <-chan string
	onPanic func()

	frame    light.Frame
	view     viewMode
	log      []string // recent device status lines
	panics   int
	height   int
	quitting bool
}

type frameMsg time.Time

type StatusMsg string

// NewModel creates a monitor. pads may be empty, in which case the strip
// view is shown. onPanic runs on the panic key; status lines (device
// connects and the like) are shown as they arrive.
func NewModel(eng Engine, th *theme.Theme, title string, pads map[light.ID][2]int, status <-chan string, onPanic func()) Model {
	m := Model{
		Engine:  eng,
		Theme:   th,
		Title:   title,
		pads:    pads,
		status:  status,
		onPanic: onPanic,
		frame:   eng.Frame(),
	}
	if len(pads) == 0 {
		m.view = viewStrip
	}
	return m
}

func tickFrames() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func ListenForStatus(status <-chan string) tea.Cmd {
	if status == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-status
		if !ok {
			return nil
		}
		return StatusMsg(line)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickFrames(),
		ListenForStatus(m.status),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case " ", "esc":
			m.panics++
			if m.onPanic != nil {
				m.onPanic()
			}

		case "tab":
			if m.view == viewGrid {
				m.view = viewStrip
			} else if len(m.pads) > 0 {
				m.view = viewGrid
			}
		}

	case tea.WindowSizeMsg:
		m.height = msg.Height

	case frameMsg:
		m.frame = m.Engine.Frame()
		return m, tickFrames()

	case StatusMsg:
		m.log = append(m.log, string(msg))
		if len(m.log) > 4 {
			m.log = m.log[len(m.log)-4:]
		}
		return m, ListenForStatus(m.status)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	lit := 0
	for _, c := range m.frame {
		if c.Bytes() != [3]uint8{} {
			lit++
		}
	}
	header := headerStyle.Render(fmt.Sprintf("%s  t=%6.2fs  lit:%d/%d  queued:%d",
		m.Title, m.Engine.Now().Seconds(), lit, len(m.frame), m.Engine.Pending()))

	var body string
	if m.view == viewGrid {
		body = widgets.RenderPadGrid(m.Theme, m.frame, m.pads)
	} else {
		rows := 16
		if m.height > 10 {
			rows = m.height - 10
		}
		body = widgets.RenderStrip(m.Theme, m.frame, m.Engine.Lights(), rows)
	}

	help := dimStyle.Render("space:panic  tab:grid/strip  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n\n")
	if m.panics > 0 {
		out.WriteString(warnStyle.Render(fmt.Sprintf("panic x%d", m.panics)))
		out.WriteString("\n")
	}
	for _, line := range m.log {
		out.WriteString(dimStyle.Render(line))
		out.WriteString("\n")
	}
	out.WriteString(help)

	return out.String()
}
