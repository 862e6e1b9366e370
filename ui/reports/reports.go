package reports

import (
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/mammut/db"
	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/ui/common"
	"github.com/google/uuid"
)

// Entry pairs a report with the resolved handles of both parties.
type Entry struct {
	Report   domain.Report
	Reporter string
	Target   string
}

type Model struct {
	Entries  []Entry
	Selected int
	Offset   int
	Width    int
	Height   int
	Status   string
	Error    string
	detail   viewport.Model
}

func InitialModel(width, height int) Model {
	vp := viewport.New(common.DefaultWindowWidth(width), 6)
	return Model{
		Entries:  []Entry{},
		Selected: 0,
		Offset:   0,
		Width:    width,
		Height:   height,
		detail:   vp,
	}
}

func (m Model) Init() tea.Cmd {
	return loadReports()
}

type reportsLoadedMsg struct {
	entries []Entry
}

type reportResolvedMsg struct {
	reportId uuid.UUID
}

func handleFor(accountId uuid.UUID) string {
	err, acc := db.GetDB().ReadAccountById(accountId)
	if err != nil {
		return "(unknown)"
	}
	if acc.Domain == "" {
		return "@" + acc.Username
	}
	return fmt.Sprintf("@%s@%s", acc.Username, acc.Domain)
}

func loadReports() tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()
		err, reports := database.ReadOpenReports()
		if err != nil {
			log.Printf("Failed to load reports: %v", err)
			return reportsLoadedMsg{entries: []Entry{}}
		}
		if reports == nil {
			return reportsLoadedMsg{entries: []Entry{}}
		}

		entries := make([]Entry, 0, len(*reports))
		for _, report := range *reports {
			entries = append(entries, Entry{
				Report:   report,
				Reporter: handleFor(report.AccountId),
				Target:   handleFor(report.TargetAccountId),
			})
		}
		return reportsLoadedMsg{entries: entries}
	}
}

func resolveReport(reportId uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		if err := db.GetDB().ResolveReport(reportId); err != nil {
			log.Printf("Failed to resolve report: %v", err)
		}
		return reportResolvedMsg{reportId: reportId}
	}
}

func (m *Model) syncDetail() {
	if len(m.Entries) == 0 || m.Selected >= len(m.Entries) {
		m.detail.SetContent("")
		return
	}
	entry := m.Entries[m.Selected]
	comment := entry.Report.Comment
	if comment == "" {
		comment = "(no comment)"
	}
	m.detail.SetContent(comment)
	m.detail.GotoTop()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsLoadedMsg:
		m.Entries = msg.entries
		m.Selected = 0
		m.Offset = 0
		m.syncDetail()
		return m, nil

	case reportResolvedMsg:
		m.Status = "Report resolved"
		m.Error = ""
		return m, loadReports()

	case common.ActivateViewMsg:
		return m, loadReports()

	case tea.KeyMsg:
		m.Status = ""
		m.Error = ""

		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
				if m.Selected < m.Offset {
					m.Offset = m.Selected
				}
				m.syncDetail()
			}
		case "down", "j":
			if len(m.Entries) > 0 && m.Selected < len(m.Entries)-1 {
				m.Selected++
				if m.Selected >= m.Offset+common.DefaultItemsPerPage {
					m.Offset = m.Selected - common.DefaultItemsPerPage + 1
				}
				m.syncDetail()
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		case "r":
			if len(m.Entries) > 0 && m.Selected < len(m.Entries) {
				return m, resolveReport(m.Entries[m.Selected].Report.Id)
			}
		}
	}

	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("open reports (%d)", len(m.Entries))))
	s.WriteString("\n\n")

	if len(m.Entries) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No open reports."))
		return s.String()
	}

	start := m.Offset
	end := min(start+common.DefaultItemsPerPage, len(m.Entries))

	for i := start; i < end; i++ {
		entry := m.Entries[i]

		line := fmt.Sprintf("%s reported %s", entry.Reporter, entry.Target)
		badge := fmt.Sprintf(" [%d statuses]", len(entry.Report.StatusIds))

		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + common.ListItemSelectedStyle.Render(line+badge))
		} else {
			s.WriteString(common.ListUnselectedPrefix + common.ListItemStyle.Render(line) + common.ListBadgeStyle.Render(badge))
		}
		s.WriteString("\n")
	}

	if len(m.Entries) > common.DefaultItemsPerPage {
		s.WriteString("\n")
		s.WriteString(common.ListBadgeStyle.Render(fmt.Sprintf("showing %d-%d of %d", start+1, end, len(m.Entries))))
	}

	s.WriteString("\n")
	s.WriteString(common.DetailBorderStyle.Render(m.detail.View()))
	s.WriteString("\n")

	if m.Status != "" {
		s.WriteString(common.ListStatusStyle.Render(m.Status))
		s.WriteString("\n")
	}

	if m.Error != "" {
		s.WriteString(common.ListErrorStyle.Render("Error: " + m.Error))
		s.WriteString("\n")
	}

	s.WriteString(common.HelpStyle.Render("j/k: navigate - r: resolve - pgup/pgdn: scroll comment"))

	return s.String()
}
