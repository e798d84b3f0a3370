package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mhartmeier/chartmorph/pkg/vision"
)

// Dashboard styles
var (
	dashLabelStyle = lipgloss.NewStyle().Foreground(colorGray)
	dashValueStyle = lipgloss.NewStyle().Foreground(colorWhite)
	dashDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// DashboardModel - Live appliance status
// =============================================================================

// statusTickMsg carries a fresh status sample into the model.
type statusTickMsg struct {
	status vision.Status
	at     time.Time
}

// DashboardModel is the bubbletea model for the live run dashboard.
type DashboardModel struct {
	orch   *vision.Orchestrator
	symbol string
	status vision.Status
	last   time.Time
	spin   int
}

// newDashboardModel creates the dashboard for a running orchestrator.
func newDashboardModel(orch *vision.Orchestrator, symbol string) DashboardModel {
	return DashboardModel{
		orch:   orch,
		symbol: symbol,
		status: orch.Status(),
	}
}

func (m DashboardModel) pollStatus() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return statusTickMsg{status: m.orch.Status(), at: t}
	})
}

func (m DashboardModel) Init() tea.Cmd {
	return m.pollStatus()
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case statusTickMsg:
		m.status = msg.status
		m.last = msg.at
		m.spin++
		return m, m.pollStatus()
	}
	return m, nil
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("ChartMorph " + m.symbol))
	b.WriteString("\n")
	b.WriteString(dashDimStyle.Render("q quit"))
	b.WriteString("\n\n")

	s := m.status

	stateStyle := dashValueStyle
	switch s.State {
	case "morphing":
		stateStyle = StyleSuccess
	case "cut":
		stateStyle = StyleWarning
	}

	activity := dashDimStyle.Render("idle")
	if s.InFlight {
		activity = StyleSuccess.Render(spinnerFrames[m.spin%len(spinnerFrames)] + " generating")
	}

	rows := [][]string{
		{"State", stateStyle.Render(s.State)},
		{"Displayed seq", fmt.Sprintf("%d", s.DisplaySeq)},
		{"Generation", activity},
		{"Morphs / cuts", fmt.Sprintf("%d / %d", s.Morphs, s.Cuts)},
		{"Failures", fmt.Sprintf("%d", s.Failures)},
		{"Uptime", s.Uptime.Round(time.Second).String()},
	}
	if s.LastError != "" {
		rows = append(rows, []string{"Last error", StyleError.Render(s.LastError)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return dashLabelStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	if !m.last.IsZero() {
		b.WriteString(dashDimStyle.Render("  updated " + m.last.Format("15:04:05")))
		b.WriteString("\n")
	}

	return b.String()
}
