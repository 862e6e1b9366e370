package followrequests

import (
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/mammut/activitypub"
	"github.com/deemkeen/mammut/db"
	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/ui/common"
	"github.com/deemkeen/mammut/util"
)

// Entry pairs a pending request with the resolved handles of both parties.
type Entry struct {
	Request  domain.FollowRequest
	Follower string
	Target   string
}

type Model struct {
	Conf     *util.AppConfig
	Entries  []Entry
	Selected int
	Offset   int
	Width    int
	Height   int
	Status   string
	Error    string
}

func InitialModel(conf *util.AppConfig, width, height int) Model {
	return Model{
		Conf:    conf,
		Entries: []Entry{},
		Width:   width,
		Height:  height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadRequests()
}

type requestsLoadedMsg struct {
	entries []Entry
}

type requestDecidedMsg struct {
	approved bool
}

func handleFor(acc *domain.Account) string {
	if acc == nil {
		return "(unknown)"
	}
	if acc.Domain == "" {
		return "@" + acc.Username
	}
	return fmt.Sprintf("@%s@%s", acc.Username, acc.Domain)
}

func loadRequests() tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()
		err, requests := database.ReadPendingFollowRequests()
		if err != nil {
			log.Printf("Failed to load follow requests: %v", err)
			return requestsLoadedMsg{entries: []Entry{}}
		}
		if requests == nil {
			return requestsLoadedMsg{entries: []Entry{}}
		}

		entries := make([]Entry, 0, len(*requests))
		for _, req := range *requests {
			_, follower := database.ReadAccountById(req.AccountId)
			_, target := database.ReadAccountById(req.TargetAccountId)
			entries = append(entries, Entry{
				Request:  req,
				Follower: handleFor(follower),
				Target:   handleFor(target),
			})
		}
		return requestsLoadedMsg{entries: entries}
	}
}

// approveRequest promotes the request to a follow and sends the Accept to
// the remote follower.
func approveRequest(req domain.FollowRequest, conf *util.AppConfig) tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()

		err, follower := database.ReadAccountById(req.AccountId)
		if err != nil {
			log.Printf("Failed to load follower for request %s: %v", req.Id, err)
			return requestDecidedMsg{approved: true}
		}
		err, target := database.ReadAccountById(req.TargetAccountId)
		if err != nil {
			log.Printf("Failed to load target for request %s: %v", req.Id, err)
			return requestDecidedMsg{approved: true}
		}

		if err := database.PromoteFollowRequest(req.Id); err != nil {
			log.Printf("Failed to promote follow request %s: %v", req.Id, err)
			return requestDecidedMsg{approved: true}
		}

		deps := activitypub.NewDeps(conf)
		activitypub.EmitAccept(map[string]any{
			"type":   "Follow",
			"id":     req.URI,
			"actor":  follower.URI,
			"object": target.URI,
		}, target, follower, deps)

		return requestDecidedMsg{approved: true}
	}
}

// denyRequest drops the request and sends the Reject.
func denyRequest(req domain.FollowRequest, conf *util.AppConfig) tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()

		err, follower := database.ReadAccountById(req.AccountId)
		if err != nil {
			log.Printf("Failed to load follower for request %s: %v", req.Id, err)
		}
		err, target := database.ReadAccountById(req.TargetAccountId)
		if err != nil {
			log.Printf("Failed to load target for request %s: %v", req.Id, err)
		}

		if err := database.DeleteFollowRequestById(req.Id); err != nil {
			log.Printf("Failed to delete follow request %s: %v", req.Id, err)
			return requestDecidedMsg{approved: false}
		}

		if follower != nil && target != nil {
			deps := activitypub.NewDeps(conf)
			activitypub.EmitReject(map[string]any{
				"type":   "Follow",
				"id":     req.URI,
				"actor":  follower.URI,
				"object": target.URI,
			}, target, follower, deps)
		}

		return requestDecidedMsg{approved: false}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case requestsLoadedMsg:
		m.Entries = msg.entries
		m.Selected = 0
		m.Offset = 0
		return m, nil

	case requestDecidedMsg:
		if msg.approved {
			m.Status = "Follow request approved"
		} else {
			m.Status = "Follow request denied"
		}
		m.Error = ""
		return m, loadRequests()

	case common.ActivateViewMsg:
		return m, loadRequests()

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
			}
		case "down", "j":
			if len(m.Entries) > 0 && m.Selected < len(m.Entries)-1 {
				m.Selected++
				if m.Selected >= m.Offset+common.DefaultItemsPerPage {
					m.Offset = m.Selected - common.DefaultItemsPerPage + 1
				}
			}
		case "a":
			if len(m.Entries) > 0 && m.Selected < len(m.Entries) {
				return m, approveRequest(m.Entries[m.Selected].Request, m.Conf)
			}
		case "d":
			if len(m.Entries) > 0 && m.Selected < len(m.Entries) {
				return m, denyRequest(m.Entries[m.Selected].Request, m.Conf)
			}
		}
	}

	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("pending follow requests (%d)", len(m.Entries))))
	s.WriteString("\n\n")

	if len(m.Entries) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No pending follow requests."))
		return s.String()
	}

	start := m.Offset
	end := min(start+common.DefaultItemsPerPage, len(m.Entries))

	for i := start; i < end; i++ {
		entry := m.Entries[i]
		line := fmt.Sprintf("%s wants to follow %s", entry.Follower, entry.Target)
		badge := fmt.Sprintf(" [%s]", entry.Request.CreatedAt.Format("2006-01-02"))

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

	if m.Status != "" {
		s.WriteString(common.ListStatusStyle.Render(m.Status))
		s.WriteString("\n")
	}

	if m.Error != "" {
		s.WriteString(common.ListErrorStyle.Render("Error: " + m.Error))
		s.WriteString("\n")
	}

	s.WriteString(common.HelpStyle.Render("j/k: navigate - a: approve - d: deny"))

	return s.String()
}
