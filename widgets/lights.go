package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-lightsynth/light"
	"go-lightsynth/theme"
)

// GridSize covers the Launchpad's 8x8 pads plus the side column and top row
const GridSize = 9

// RenderPad renders a single colored pad. Black pads use the dark symbol so
// they stay visible.
func RenderPad(th *theme.Theme, c light.RGB) string {
	if c.Bytes() == [3]uint8{} {
		return lipgloss.NewStyle().Foreground(th.Muted()).Render(string(th.Symbols.Dark))
	}
	return lipgloss.NewStyle().Foreground(theme.Lipgloss(c)).Render(string(th.Symbols.Lit))
}

// RenderPadGrid renders the pad layout of a show (row 0 at bottom).
// Pads without a light are dotted.
func RenderPadGrid(th *theme.Theme, frame light.Frame, pads map[light.ID][2]int) string {
	var grid [GridSize][GridSize]*light.RGB
	for id, p := range pads {
		if p[0] < 0 || p[0] >= GridSize || p[1] < 0 || p[1] >= GridSize {
			continue
		}
		c := frame[id]
		grid[p[0]][p[1]] = &c
	}

	unmapped := lipgloss.NewStyle().Foreground(th.Muted()).Render(string(th.Symbols.Unmapped))
	var lines []string
	for row := GridSize - 1; row >= 0; row-- {
		var line strings.Builder
		for col := 0; col < GridSize; col++ {
			if col > 0 {
				line.WriteString(" ")
			}
			if c := grid[row][col]; c != nil {
				line.WriteString(RenderPad(th, *c))
			} else {
				line.WriteString(unmapped)
			}
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderStrip renders every light in order as "■ id #rrggbb", wrapping
// into columns of at most height rows
func RenderStrip(th *theme.Theme, frame light.Frame, ids []light.ID, height int) string {
	if height <= 0 {
		height = len(ids)
	}
	width := 0
	for _, id := range ids {
		width = max(width, len(id))
	}

	var cols []string
	for start := 0; start < len(ids); start += height {
		end := min(start+height, len(ids))
		var lines []string
		for _, id := range ids[start:end] {
			c := frame[id]
			lines = append(lines, fmt.Sprintf("%s %-*s %s  ", RenderPad(th, c), width, id, theme.Hex(c)))
		}
		cols = append(cols, strings.Join(lines, "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
