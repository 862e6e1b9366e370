package header

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/mammut/ui/common"
	"github.com/deemkeen/mammut/util"
	"github.com/mattn/go-runewidth"
)

type Model struct {
	Width  int
	Domain string
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	return GetHeaderStyle(m.Domain, m.Width)
}

func GetHeaderStyle(domain string, width int) string {
	// Single-line header with manual spacing

	leftText := fmt.Sprintf("mammut admin v%s", util.GetVersion())
	centerText := domain
	rightText := time.Now().Format("2006-01-02")

	leftLen := runewidth.StringWidth(leftText)
	centerLen := runewidth.StringWidth(centerText)
	rightLen := runewidth.StringWidth(rightText)

	totalTextLen := leftLen + centerLen + rightLen
	totalSpacing := max(width-totalTextLen-common.HeaderTotalPadding, 2)

	// Split spacing: half before center, half after
	leftSpacing := totalSpacing / 2
	rightSpacing := totalSpacing - leftSpacing

	header := fmt.Sprintf("  %s%s%s%s%s  ",
		leftText,
		strings.Repeat(" ", leftSpacing),
		centerText,
		strings.Repeat(" ", rightSpacing),
		rightText,
	)

	return lipgloss.NewStyle().
		Width(width).
		MaxWidth(width).
		Background(lipgloss.Color(common.COLOR_ACCENT)).
		Foreground(lipgloss.Color(common.COLOR_WHITE)).
		Bold(true).
		Render(header)
}
