package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n\n")
	b.WriteString(m.rosterView())
	if banner := m.bannerView(); banner != "" {
		b.WriteString("\n")
		b.WriteString(banner)
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render("↑/↓ move · enter vote · r retry/dismiss · R reset · t theme · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) headerView() string {
	sn := m.voteSn
	if sn.Session == nil {
		title := m.theme.Title.Render("voteview")
		if m.pollSn.IsOffline() {
			return title + "  " + m.theme.ErrText.Render("offline — retrying")
		}
		return title + "  " + m.spin.View() + m.theme.Header.Render(" loading session…")
	}

	parts := []string{m.theme.Title.Render(sn.Session.Name)}

	remaining := sn.Session.MaxVotesPerUser - sn.User.TotalVotes
	if remaining < 0 {
		remaining = 0
	}
	parts = append(parts, m.theme.Header.Render(
		fmt.Sprintf("%d of %d votes left", remaining, sn.Session.MaxVotesPerUser)))

	switch {
	case !sn.WindowActive:
		parts = append(parts, m.theme.Inactive.Render("voting closed"))
	default:
		parts = append(parts, m.theme.Header.Render("closes in "+closesIn(sn.Session.EndsAt)))
	}

	if m.pollSn.IsOffline() {
		parts = append(parts, m.theme.ErrText.Render("offline"))
	}
	if sn.Loading {
		parts = append(parts, m.spin.View())
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(parts, "  ·  "))
}

func (m Model) rosterView() string {
	sn := m.voteSn
	if len(sn.Contestants) == 0 {
		return m.theme.Inactive.Render("  no contestants yet")
	}

	var rows []string
	for i, c := range sn.Contestants {
		marker := "  "
		style := m.theme.Row
		if i == m.cursor {
			marker = "> "
			style = m.theme.Selected
		}

		name := c.Name
		if !c.Active {
			style = m.theme.Inactive
			name += " (inactive)"
		}

		check := "  "
		if sn.User.HasVoted(c.ID) {
			check = m.theme.Voted.Render("✓ ")
		}

		count := m.theme.Count.Render(fmt.Sprintf("%6d", c.VoteCount))
		row := fmt.Sprintf("%s%s%s  %s", marker, check, count, style.Render(name))
		if c.Category != "" {
			row += "  " + m.theme.Inactive.Render(c.Category)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (m Model) bannerView() string {
	if m.lastErr == nil {
		return ""
	}
	msg := m.lastErr.Message
	if msg == "" {
		msg = m.lastErr.Error()
	}
	hint := "press r to dismiss"
	if m.lastErr.Retry != nil {
		hint = "press r to try again"
	}
	body := m.theme.ErrText.Render(msg) + "  " + m.theme.Help.Render(hint)
	return m.theme.Banner.Render(body)
}

func closesIn(end time.Time) string {
	d := time.Until(end)
	if d <= 0 {
		return "0m"
	}
	d = d.Round(time.Minute)
	h := d / time.Hour
	mins := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
