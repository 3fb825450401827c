package main

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/snekrl/presenter"
)

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

var (
	boardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	bodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	foodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	hudStyle    = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// playModel drives a presenter.Session from bubbletea's tick loop. All
// game state lives in the session; the model only keeps the last frame.
type playModel struct {
	session *presenter.Session
	frame   presenter.Frame
	err     error
}

func newPlayModel(s *presenter.Session) playModel {
	return playModel{session: s, frame: s.Frame()}
}

func (m playModel) Init() tea.Cmd {
	return tickCmd(m.session.Speed())
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "space", "p":
			m.session.TogglePause()
		case "r":
			m.session.Restart()
		case "m":
			m.session.TogglePolicy()
		case "+", "=":
			m.session.SpeedUp()
		case "-", "_":
			m.session.SpeedDown()
		}
		m.frame = m.session.Frame()
		return m, nil
	case tickMsg:
		f, err := m.session.Tick()
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.frame = f
		return m, tickCmd(m.session.Speed())
	}
	return m, nil
}

func (m playModel) View() string {
	var board strings.Builder
	for i, row := range m.frame.Rows {
		if i > 0 {
			board.WriteByte('\n')
		}
		for j := 0; j < len(row); j++ {
			if j > 0 {
				board.WriteByte(' ')
			}
			board.WriteString(glyphStyle(row[j]).Render(string(row[j])))
		}
	}

	s := boardStyle.Render(board.String()) + "\n"
	s += hudStyle.Render(presenter.HUD(m.frame)) + "\n"
	s += statusStyle.Render(presenter.Status(m.frame)) + "\n"
	if m.err != nil {
		s += errStyle.Render(m.err.Error()) + "\n"
	}
	s += statusStyle.Render(presenter.ControlsHelp) + "\n"
	return s
}

func glyphStyle(g byte) lipgloss.Style {
	switch g {
	case presenter.GlyphHead:
		return headStyle
	case presenter.GlyphBody:
		return bodyStyle
	case presenter.GlyphFood:
		return foodStyle
	}
	return emptyStyle
}

// runTUI blocks until the user quits or ctx is cancelled.
func runTUI(ctx context.Context, s *presenter.Session) error {
	p := tea.NewProgram(newPlayModel(s), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	if m, ok := final.(playModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
