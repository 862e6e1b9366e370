package relays

import (
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/mammut/db"
	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/ui/common"
)

type Model struct {
	Relays   []domain.Relay
	Selected int
	Offset   int
	Width    int
	Height   int
}

func InitialModel(width, height int) Model {
	return Model{
		Relays: []domain.Relay{},
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadRelays()
}

type relaysLoadedMsg struct {
	relays []domain.Relay
}

func loadRelays() tea.Cmd {
	return func() tea.Msg {
		err, relays := db.GetDB().ReadRelays()
		if err != nil {
			log.Printf("Failed to load relays: %v", err)
			return relaysLoadedMsg{relays: []domain.Relay{}}
		}
		if relays == nil {
			return relaysLoadedMsg{relays: []domain.Relay{}}
		}
		return relaysLoadedMsg{relays: *relays}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case relaysLoadedMsg:
		m.Relays = msg.relays
		m.Selected = 0
		m.Offset = 0
		return m, nil

	case common.ActivateViewMsg:
		return m, loadRelays()

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
				if m.Selected < m.Offset {
					m.Offset = m.Selected
				}
			}
		case "down", "j":
			if len(m.Relays) > 0 && m.Selected < len(m.Relays)-1 {
				m.Selected++
				if m.Selected >= m.Offset+common.DefaultItemsPerPage {
					m.Offset = m.Selected - common.DefaultItemsPerPage + 1
				}
			}
		}
	}

	return m, nil
}

func stateBadge(relay domain.Relay) string {
	switch relay.State {
	case domain.RelayStateAccepted:
		if relay.AcceptedAt != nil {
			return fmt.Sprintf(" [accepted %s]", relay.AcceptedAt.Format("2006-01-02"))
		}
		return " [accepted]"
	case domain.RelayStateRejected:
		return " [rejected]"
	default:
		return " [pending]"
	}
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("relay subscriptions (%d)", len(m.Relays))))
	s.WriteString("\n\n")

	if len(m.Relays) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No relay subscriptions."))
		return s.String()
	}

	start := m.Offset
	end := min(start+common.DefaultItemsPerPage, len(m.Relays))

	for i := start; i < end; i++ {
		relay := m.Relays[i]
		badge := stateBadge(relay)

		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + common.ListItemSelectedStyle.Render(relay.ActorURI+badge))
		} else {
			badgeStyle := common.ListBadgeStyle
			if relay.State == domain.RelayStatePending {
				badgeStyle = common.ListBadgeWarnStyle
			}
			s.WriteString(common.ListUnselectedPrefix + common.ListItemStyle.Render(relay.ActorURI) + badgeStyle.Render(badge))
		}
		s.WriteString("\n")
	}

	if len(m.Relays) > common.DefaultItemsPerPage {
		s.WriteString("\n")
		s.WriteString(common.ListBadgeStyle.Render(fmt.Sprintf("showing %d-%d of %d", start+1, end, len(m.Relays))))
	}

	s.WriteString("\n")
	s.WriteString(common.HelpStyle.Render("j/k: navigate"))

	return s.String()
}
