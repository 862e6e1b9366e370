package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/mammut/ui/common"
	"github.com/deemkeen/mammut/ui/followrequests"
	"github.com/deemkeen/mammut/ui/header"
	"github.com/deemkeen/mammut/ui/relays"
	"github.com/deemkeen/mammut/ui/reports"
	"github.com/deemkeen/mammut/util"
)

var tabNames = []string{"reports", "follow requests", "relays"}

var (
	tabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_USERNAME)).
			Bold(true).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(common.COLOR_MUTED)).
				Padding(0, 2)
)

// Model is the top-level admin console: a header, a tab bar and one of
// the moderation views.
type Model struct {
	conf           *util.AppConfig
	state          common.SessionState
	width          int
	height         int
	header         header.Model
	reports        reports.Model
	followRequests followrequests.Model
	relays         relays.Model
}

func NewModel(conf *util.AppConfig, width, height int) Model {
	return Model{
		conf:           conf,
		state:          common.ReportsView,
		width:          width,
		height:         height,
		header:         header.Model{Width: width, Domain: conf.Conf.SslDomain},
		reports:        reports.InitialModel(width, height),
		followRequests: followrequests.InitialModel(conf, width, height),
		relays:         relays.InitialModel(width, height),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.reports.Init(), m.followRequests.Init(), m.relays.Init())
}

func (m Model) activate(state common.SessionState) (Model, tea.Cmd) {
	m.state = state
	var cmd tea.Cmd
	switch state {
	case common.ReportsView:
		m.reports, cmd = m.reports.Update(common.ActivateViewMsg{})
	case common.FollowRequestsView:
		m.followRequests, cmd = m.followRequests.Update(common.ActivateViewMsg{})
	case common.RelaysView:
		m.relays, cmd = m.relays.Update(common.ActivateViewMsg{})
	}
	return m, cmd
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.header.Width = msg.Width
		m.reports.Width = msg.Width
		m.reports.Height = msg.Height
		m.followRequests.Width = msg.Width
		m.followRequests.Height = msg.Height
		m.relays.Width = msg.Width
		m.relays.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			next := (m.state + 1) % 3
			return m.activate(next)
		case "shift+tab":
			prev := (m.state + 2) % 3
			return m.activate(prev)
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case common.ReportsView:
		m.reports, cmd = m.reports.Update(msg)
	case common.FollowRequestsView:
		m.followRequests, cmd = m.followRequests.Update(msg)
	case common.RelaysView:
		m.relays, cmd = m.relays.Update(msg)
	}
	return m, cmd
}

func (m Model) tabBar() string {
	var tabs []string
	for i, name := range tabNames {
		if common.SessionState(i) == m.state {
			tabs = append(tabs, tabActiveStyle.Render(name))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(name))
		}
	}
	return strings.Join(tabs, "|")
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(m.header.View())
	s.WriteString("\n")
	s.WriteString(m.tabBar())
	s.WriteString("\n")

	switch m.state {
	case common.ReportsView:
		s.WriteString(m.reports.View())
	case common.FollowRequestsView:
		s.WriteString(m.followRequests.View())
	case common.RelaysView:
		s.WriteString(m.relays.View())
	}

	s.WriteString("\n")
	s.WriteString(common.HelpStyle.Render("tab: switch view - q: quit"))

	return s.String()
}
