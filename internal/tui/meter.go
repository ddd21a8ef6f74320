// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"

	"dbmeter/internal/loudness"
	"dbmeter/internal/session"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// MeterFloor is the level drawn as an empty bar.
	MeterFloor = -60.0
	meterRows  = 12
	// Bars above this normalized height are drawn in the peak color.
	peakThreshold = 0.85
)

type meterKeys struct {
	Stop key.Binding
	Quit key.Binding
}

var meterKeyMap = meterKeys{
	Stop: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type stateMsg session.State

type stoppedMsg struct{ err error }

type updatesClosedMsg struct{}

// MeterModel renders the live decibel history of a controller.
type MeterModel struct {
	updates <-chan session.State
	stop    func() error

	state    session.State
	stopErr  error
	quitting bool
}

// NewMeterModel returns a model that renders states from updates and calls
// stop when the user stops the session.
func NewMeterModel(updates <-chan session.State, stop func() error) MeterModel {
	return MeterModel{updates: updates, stop: stop}
}

func waitForState(updates <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return stateMsg(st)
	}
}

func (m MeterModel) stopCmd() tea.Cmd {
	return func() tea.Msg {
		return stoppedMsg{err: m.stop()}
	}
}

// Init starts listening for states.
func (m MeterModel) Init() tea.Cmd {
	return waitForState(m.updates)
}

// Update handles states and key presses.
func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = session.State(msg)
		return m, waitForState(m.updates)

	case updatesClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case stoppedMsg:
		m.stopErr = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, meterKeyMap.Quit):
			m.quitting = true
			return m, tea.Sequence(m.stopCmd(), tea.Quit)
		case key.Matches(msg, meterKeyMap.Stop):
			return m, m.stopCmd()
		}
	}
	return m, nil
}

// State returns the last state the model received.
func (m MeterModel) State() session.State {
	return m.state
}

// View renders the meter.
func (m MeterModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("dB Meter"))
	sb.WriteString("\n\n")

	status := dimStyle.Render("idle")
	if m.state.Active {
		status = highlightStyle.Render("capturing")
	}
	label := m.state.SourceLabel
	if label == "" {
		label = "-"
	}
	fmt.Fprintf(&sb, "%s  %s\n\n", infoStyle.Render(label), status)

	for _, row := range renderBars(m.state.History, meterRows) {
		sb.WriteString(row)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if n := len(m.state.History); n > 0 {
		fmt.Fprintf(&sb, "Level: %s\n", levelLabel(m.state.History[n-1]))
	}
	if m.state.LastError != nil {
		sb.WriteString(errorStyle.Render("Error: " + m.state.LastError.Error()))
		sb.WriteString("\n")
	}
	if m.stopErr != nil {
		sb.WriteString(errorStyle.Render("Stop failed: " + m.stopErr.Error()))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("s: Stop • q: Quit"))
	return sb.String()
}

// levelLabel shows the magnitude of a level, or "silence" for the sentinel.
func levelLabel(db float64) string {
	if db == loudness.SilenceDB {
		return "silence"
	}
	return fmt.Sprintf("%.1f dB", loudness.Magnitude(db))
}

// barHeights converts levels to bar heights in [0, rows].
func barHeights(history []float64, rows int) []int {
	heights := make([]int, len(history))
	for i, db := range history {
		heights[i] = int(math.Round(loudness.Normalize(db, MeterFloor) * float64(rows)))
	}
	return heights
}

// renderBars draws one column per level, top row first.
func renderBars(history []float64, rows int) []string {
	heights := barHeights(history, rows)
	out := make([]string, rows)
	for r := range rows {
		level := rows - r
		var sb strings.Builder
		for _, h := range heights {
			switch {
			case h < level:
				sb.WriteString(" ")
			case float64(level)/float64(rows) > peakThreshold:
				sb.WriteString(peakStyle.Render("█"))
			default:
				sb.WriteString(barStyle.Render("█"))
			}
		}
		out[r] = sb.String()
	}
	return out
}
