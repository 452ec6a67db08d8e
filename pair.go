package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var hueCmd = &cobra.Command{
	Use:   "hue",
	Short: "Set up Philips Hue streaming",
}

var huePairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Find a bridge, pair with it and pick an entertainment area",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTerminal(); err != nil {
			return err
		}
		result, err := tea.NewProgram(newPairModel()).Run()
		if err != nil {
			return err
		}
		m := result.(pairModel)
		if m.err != nil {
			return m.err
		}
		if m.bridge == nil || m.area == nil {
			return nil // quit before finishing
		}
		return savePairing(cmd, *m.bridge, *m.area)
	},
}

var hueAreasCmd = &cobra.Command{
	Use:   "areas",
	Short: "List the entertainment areas of the configured bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Hue.Bridge == "" {
			return fmt.Errorf("hue.bridge is not set, run `ambisync hue pair`")
		}
		creds, found, err := LoadCredentials(cfg.Hue.BridgeID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no credentials for bridge %s, run `ambisync hue pair`", cfg.Hue.BridgeID)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), hueRequestTimeout)
		defer cancel()
		areas, err := hueBridge{host: cfg.Hue.Bridge, username: creds.Username}.Areas(ctx)
		if err != nil {
			return err
		}
		for _, a := range areas {
			mark := " "
			if a.ID == cfg.Hue.Area {
				mark = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", mark, a.ID, a)
		}
		return nil
	},
}

func init() {
	hueCmd.AddCommand(huePairCmd)
	hueCmd.AddCommand(hueAreasCmd)
}

// savePairing records the chosen bridge and area in the config file.
func savePairing(cmd *cobra.Command, bridge Device, area EntertainmentArea) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Hue.Bridge = bridge.IP.String()
	cfg.Hue.BridgeID = bridge.ID
	cfg.Hue.Area = area.ID

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved bridge and area to %s\n", path)
	if !containsFold(cfg.Output.Sinks, "hue") {
		fmt.Fprintln(cmd.OutOrStdout(), `Add "hue" to output.sinks to stream to it.`)
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

type pairStep int

const (
	stepScanning pairStep = iota
	stepSelectingBridge
	stepPressLink
	stepPairing
	stepFetchingAreas
	stepSelectingArea
	stepDone
)

type scanDoneMsg struct {
	bridges []Device
	err     error
}

type pairResultMsg struct {
	creds BridgeCredentials
	err   error
}

type areasFetchedMsg struct {
	areas []EntertainmentArea
	err   error
}

type pairModel struct {
	step    pairStep
	spinner spinner.Model
	err     error
	notice  string

	bridges []Device
	bridge  *Device
	creds   BridgeCredentials

	areas []EntertainmentArea
	area  *EntertainmentArea

	cursor int
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return s
}

func newPairModel() pairModel {
	return pairModel{step: stepScanning, spinner: newSpinner()}
}

func (m pairModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, scanCmd())
}

func scanCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		bridges, err := DiscoverBridges(ctx)
		return scanDoneMsg{bridges: bridges, err: err}
	}
}

func pairCmd(b hueBridge) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), hueRequestTimeout)
		defer cancel()
		creds, err := b.Pair(ctx)
		return pairResultMsg{creds: creds, err: err}
	}
}

func fetchAreasCmd(b hueBridge) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), hueRequestTimeout)
		defer cancel()
		areas, err := b.Areas(ctx)
		return areasFetchedMsg{areas: areas, err: err}
	}
}

func (m pairModel) client() hueBridge {
	return hueBridge{host: m.bridge.IP.String(), username: m.creds.Username}
}

func (m pairModel) fail(err error) (tea.Model, tea.Cmd) {
	m.err = err
	m.step = stepDone
	return m, tea.Quit
}

// chooseBridge moves on to area selection when credentials are stored,
// otherwise to pairing.
func (m pairModel) chooseBridge(b *Device) (tea.Model, tea.Cmd) {
	m.bridge = b
	m.cursor = 0
	if creds, found, _ := LoadCredentials(b.ID); found {
		m.creds = creds
		m.step = stepFetchingAreas
		return m, fetchAreasCmd(m.client())
	}
	m.step = stepPressLink
	return m, nil
}

func (m pairModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanDoneMsg:
		switch {
		case msg.err != nil:
			return m.fail(msg.err)
		case len(msg.bridges) == 0:
			return m.fail(fmt.Errorf("no Hue bridges found on the network"))
		case len(msg.bridges) == 1:
			return m.chooseBridge(&msg.bridges[0])
		}
		m.bridges = msg.bridges
		m.step = stepSelectingBridge
		return m, nil

	case pairResultMsg:
		if errors.Is(msg.err, ErrLinkButtonNotPressed) {
			m.notice = "Link button not pressed."
			m.step = stepPressLink
			return m, nil
		}
		if msg.err != nil {
			return m.fail(fmt.Errorf("pairing failed: %w", msg.err))
		}
		m.creds = msg.creds
		m.notice = ""
		if err := SaveCredentials(m.bridge.ID, m.creds); err != nil {
			return m.fail(fmt.Errorf("saving credentials: %w", err))
		}
		m.step = stepFetchingAreas
		return m, fetchAreasCmd(m.client())

	case areasFetchedMsg:
		if errors.Is(msg.err, ErrUnauthorized) {
			_ = DeleteCredentials(m.bridge.ID)
			m.creds = BridgeCredentials{}
			m.notice = "Stored credentials were rejected by the bridge."
			m.step = stepPressLink
			return m, nil
		}
		switch {
		case msg.err != nil:
			return m.fail(fmt.Errorf("fetching entertainment areas: %w", msg.err))
		case len(msg.areas) == 0:
			return m.fail(fmt.Errorf("no entertainment areas configured on this bridge"))
		case len(msg.areas) == 1:
			m.area = &msg.areas[0]
			m.step = stepDone
			return m, tea.Quit
		}
		m.areas = msg.areas
		m.step = stepSelectingArea
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch m.step {
	case stepSelectingBridge:
		if m.moveCursor(key.String(), len(m.bridges)) {
			return m, nil
		}
		if key.String() == "enter" {
			return m.chooseBridge(&m.bridges[m.cursor])
		}

	case stepPressLink:
		if key.String() == "enter" {
			m.step = stepPairing
			return m, pairCmd(m.client())
		}

	case stepSelectingArea:
		if m.moveCursor(key.String(), len(m.areas)) {
			return m, nil
		}
		if key.String() == "enter" {
			m.area = &m.areas[m.cursor]
			m.step = stepDone
			return m, tea.Quit
		}
	}
	return m, nil
}

// moveCursor handles up/down keys within a list of n items.
func (m *pairModel) moveCursor(key string, n int) bool {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}
	default:
		return false
	}
	return true
}

func (m pairModel) View() string {
	switch m.step {
	case stepScanning:
		return m.busy("Scanning for Hue bridges...")
	case stepPairing:
		return m.busy("Pairing with bridge...")
	case stepFetchingAreas:
		return m.busy("Fetching entertainment areas...")

	case stepSelectingBridge:
		labels := make([]string, len(m.bridges))
		for i, b := range m.bridges {
			labels[i] = fmt.Sprintf("%s (%s) at %s", b.Name, b.ID, b.IP)
		}
		return m.list("Select a Hue bridge:", labels)

	case stepSelectingArea:
		labels := make([]string, len(m.areas))
		for i, a := range m.areas {
			labels[i] = a.String()
		}
		return m.list("Select an entertainment area:", labels)

	case stepPressLink:
		var b strings.Builder
		b.WriteString("\n")
		if m.notice != "" {
			b.WriteString(errStyle.Render("  "+m.notice) + "\n\n")
		}
		b.WriteString(titleStyle.Render("  Press the link button on your Hue bridge, then press Enter.") + "\n\n")
		b.WriteString(helpStyle.Render("  enter pair · q quit") + "\n")
		return b.String()

	case stepDone:
		if m.err != nil {
			return "\n" + errStyle.Render("  Error: "+m.err.Error()) + "\n\n"
		}
		var b strings.Builder
		if m.bridge != nil {
			fmt.Fprintf(&b, "\n  Bridge: %s\n", m.bridge)
		}
		if m.area != nil {
			fmt.Fprintf(&b, "  Area:   %s\n\n", m.area)
		}
		return b.String()
	}
	return ""
}

func (m pairModel) busy(title string) string {
	return fmt.Sprintf("\n %s %s\n\n", m.spinner.View(), titleStyle.Render(title))
}

func (m pairModel) list(title string, labels []string) string {
	var b strings.Builder
	b.WriteString("\n" + titleStyle.Render("  "+title) + "\n\n")
	for i, label := range labels {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▸ "+label) + "\n")
		} else {
			b.WriteString(itemStyle.Render(label) + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("  ↑/k up · ↓/j down · enter select · q quit") + "\n")
	return b.String()
}
