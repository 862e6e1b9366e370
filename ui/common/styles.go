package common

import "github.com/charmbracelet/lipgloss"

const (
	// === Primary UI Colors ===
	COLOR_ACCENT    = "69" // ANSI 69 (#5f87ff) - borders, selections, header
	COLOR_SECONDARY = "75" // ANSI 75 (#5fafff) - timestamps, domains

	// === Text Colors ===
	COLOR_WHITE = "255" // ANSI 255 (#eeeeee) - primary text
	COLOR_MUTED = "245" // ANSI 245 (#8a8a8a) - hints, help text
	COLOR_DIM   = "240" // ANSI 240 (#585858) - badges, separators

	// === Semantic Colors ===
	COLOR_USERNAME = "48"  // ANSI 48 (#00ff87) - usernames, selections
	COLOR_SUCCESS  = "48"  // ANSI 48 (#00ff87) - success messages
	COLOR_ERROR    = "196" // ANSI 196 (#ff0000) - errors, rejections
	COLOR_WARNING  = "214" // ANSI 214 (#ffaf00) - pending states

	// === Section/Title Colors ===
	COLOR_CAPTION = "170" // ANSI 170 (#d75fd7) - section captions
)

var (
	HelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_MUTED)).Padding(0, 2)
	CaptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_CAPTION)).Padding(2)

	// === Shared List Styles ===
	// Use these for consistent list rendering across the admin views

	// ListItemStyle is the base style for unselected list items
	ListItemStyle = lipgloss.NewStyle()

	// ListItemSelectedStyle is for the selected item text
	ListItemSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(COLOR_USERNAME)).
				Bold(true)

	// ListEmptyStyle is for empty list messages
	ListEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_DIM)).
			Italic(true)

	// ListStatusStyle is for status messages (success, info)
	ListStatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_SUCCESS))

	// ListErrorStyle is for error messages
	ListErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_ERROR))

	// ListBadgeStyle is for inline badges like [pending], [accepted]
	ListBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_DIM))

	// ListBadgeWarnStyle is for pending/attention badges
	ListBadgeWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(COLOR_WARNING))

	// DetailBorderStyle frames the detail pane under a list
	DetailBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(COLOR_DIM)).
				Padding(0, 1)
)

const (
	// ListSelectedPrefix is the indicator shown before selected items
	ListSelectedPrefix = "> "
	// ListUnselectedPrefix is the spacing for unselected items (same width as selected)
	ListUnselectedPrefix = "  "

	// DefaultItemsPerPage is how many list rows each view shows before paging
	DefaultItemsPerPage = 15

	// HeaderTotalPadding accounts for the 2 spaces on each side of header content
	HeaderTotalPadding = 4
)

// DefaultWindowWidth returns the usable width after accounting for outer margins
func DefaultWindowWidth(width int) int {
	return width - 10
}

// DefaultWindowHeight returns the usable height after accounting for outer margins
func DefaultWindowHeight(height int) int {
	return height - 10
}
