package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	dialogue "github.com/speakpair/dialogue-core/core"
)

type statusMsg dialogue.Status

type levelMsg float64

type transcriptMsg struct {
	text   string
	isUser bool
}

type correctionMsg string

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	tutorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	tipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Italic(true)
	meterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

const meterWidth = 40

type practiceModel struct {
	topic  string
	status dialogue.Status
	level  float64
	lines  []string

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int

	send func(text string)
}

func newPracticeModel(topic string) practiceModel {
	input := textinput.New()
	input.Placeholder = "Type instead of speaking..."
	input.Focus()

	return practiceModel{
		topic:  topic,
		status: dialogue.StatusDisconnected,
		input:  input,
		send:   func(string) {},
	}
}

func (m practiceModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m practiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if text := strings.TrimSpace(m.input.Value()); text != "" {
				m.send(text)
				m.input.Reset()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - 7
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = height
		}
		m.refreshTranscript()
		return m, nil

	case statusMsg:
		m.status = dialogue.Status(msg)
		if m.status == dialogue.StatusDisconnected {
			return m, tea.Quit
		}
		return m, nil

	case levelMsg:
		m.level = float64(msg)
		return m, nil

	case transcriptMsg:
		speaker := tutorStyle.Render("Tutor")
		if msg.isUser {
			speaker = userStyle.Render("You")
		}
		m.lines = append(m.lines, fmt.Sprintf("%s  %s", speaker, msg.text))
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case correctionMsg:
		m.lines = append(m.lines, tipStyle.Render("Tip: "+string(msg)))
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *practiceModel) refreshTranscript() {
	if !m.ready {
		return
	}
	wrapped := make([]string, len(m.lines))
	for i, line := range m.lines {
		wrapped[i] = wordwrap.String(line, m.viewport.Width)
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n"))
}

func (m practiceModel) View() string {
	if !m.ready {
		return "starting..."
	}

	header := fmt.Sprintf("%s %s",
		headerStyle.Render("speakpair · "+m.topic),
		statusStyle.Render("["+string(m.status)+"]"),
	)

	filled := int(m.level * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	meter := meterStyle.Render(strings.Repeat("█", filled)) +
		statusStyle.Render(strings.Repeat("░", meterWidth-filled))

	return fmt.Sprintf("%s\n%s\n%s\n%s\n",
		header,
		meter,
		borderStyle.Render(m.viewport.View()),
		m.input.View(),
	)
}
