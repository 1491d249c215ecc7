package ui

import "github.com/charmbracelet/lipgloss"

// Theme groups the lipgloss styles used by the voting view.
type Theme struct {
	Name     string
	Title    lipgloss.Style
	Header   lipgloss.Style
	Row      lipgloss.Style
	Selected lipgloss.Style
	Voted    lipgloss.Style
	Inactive lipgloss.Style
	Count    lipgloss.Style
	Banner   lipgloss.Style
	ErrText  lipgloss.Style
	Help     lipgloss.Style
}

func midnightTheme() Theme {
	return Theme{
		Name:     "Midnight",
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bd93f9")),
		Header:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd")),
		Row:      lipgloss.NewStyle().Foreground(lipgloss.Color("#f8f8f2")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50fa7b")),
		Voted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c")),
		Inactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4")),
		Count:    lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c")),
		Banner: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#ff5555")).
			Padding(0, 1),
		ErrText: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4")),
	}
}

func daylightTheme() Theme {
	return Theme{
		Name:     "Daylight",
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7c3aed")),
		Header:   lipgloss.NewStyle().Foreground(lipgloss.Color("#0369a1")),
		Row:      lipgloss.NewStyle().Foreground(lipgloss.Color("#1f2937")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#047857")),
		Voted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#b45309")),
		Inactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")),
		Count:    lipgloss.NewStyle().Foreground(lipgloss.Color("#92400e")),
		Banner: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#dc2626")).
			Padding(0, 1),
		ErrText: lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")),
	}
}

// ThemeByName resolves a preference string to a Theme, defaulting to
// Midnight for unknown names.
func ThemeByName(name string) Theme {
	if name == "Daylight" {
		return daylightTheme()
	}
	return midnightTheme()
}

// NextThemeName cycles through the available themes.
func NextThemeName(current string) string {
	if current == "Midnight" {
		return "Daylight"
	}
	return "Midnight"
}
