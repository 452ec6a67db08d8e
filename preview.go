package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"ambisync/internal/capture"
	"ambisync/internal/color"
	"ambisync/internal/layout"
)

func requireTerminal() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("this command needs an interactive terminal")
	}
	return nil
}

func runPreview(a *app) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	m := newPreviewModel(a.proc, a.cfg.Geometry(), a.cfg.Output.Rate, a.session.Backend())
	result, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	return result.(previewModel).fatal
}

// perimeterGrid lays the LEDs out as they sit around the screen. Cells
// hold an LED index, or -1 for the corners and the interior.
func perimeterGrid(g layout.Geometry) [][]int {
	rows, cols := g.LedsOnSide+2, g.LedsOnTop+2
	grid := make([][]int, rows)
	for r := range grid {
		grid[r] = make([]int, cols)
		for c := range grid[r] {
			grid[r][c] = -1
		}
	}
	for i := 0; i < g.Total(); i++ {
		edge, k := g.Locate(i)
		switch edge {
		case layout.Bottom:
			grid[rows-1][g.LedsOnTop-k] = i
		case layout.Left:
			grid[g.LedsOnSide-k][0] = i
		case layout.Top:
			grid[0][k+1] = i
		case layout.Right:
			grid[k+1][cols-1] = i
		}
	}
	return grid
}

type frameTickMsg time.Time

type previewModel struct {
	proc    producer
	grid    [][]int
	period  time.Duration
	backend string
	spinner spinner.Model

	buf    []byte
	frames uint64
	last   time.Duration
	err    error // last non-fatal cycle error
	fatal  error
}

func newPreviewModel(p producer, g layout.Geometry, rate float64, backend string) previewModel {
	return previewModel{
		proc:    p,
		grid:    perimeterGrid(g),
		period:  time.Duration(float64(time.Second) / rate),
		backend: backend,
		spinner: newSpinner(),
		buf:     make([]byte, p.BufferSize()),
	}
}

func (m previewModel) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return frameTickMsg(t) })
}

func (m previewModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.frames > 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case frameTickMsg:
		start := time.Now()
		err := m.proc.ProduceColors(m.buf, uint64(start.UnixNano()))
		if errors.Is(err, capture.ErrBackendFatal) {
			m.fatal = err
			return m, tea.Quit
		}
		m.err = err
		if err == nil {
			m.frames++
			m.last = time.Since(start)
		}
		return m, m.tick()
	}
	return m, nil
}

var emptyCell = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

func (m previewModel) View() string {
	if m.fatal != nil {
		return "\n" + errStyle.Render("  Error: "+m.fatal.Error()) + "\n\n"
	}
	if m.frames == 0 {
		return fmt.Sprintf("\n %s %s\n\n", m.spinner.View(), titleStyle.Render("Waiting for the first frame..."))
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, row := range m.grid {
		b.WriteString("  ")
		for _, i := range row {
			if i < 0 {
				b.WriteString(emptyCell.Render("  "))
				continue
			}
			b.WriteString(cellStyle(color.At(m.buf, i)).Render("  "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("  %s · frame %d · %s", m.backend, m.frames, m.last.Round(time.Microsecond))))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render("  "+m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("  q quit") + "\n")
	return b.String()
}

func cellStyle(c color.RGB) lipgloss.Style {
	return lipgloss.NewStyle().Background(lipgloss.Color(c.String()))
}
