package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"itinera/internal/itinerary"
	"itinera/internal/session"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dayStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	progressStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// renderDocument formats a finished itinerary for the terminal.
func renderDocument(doc itinerary.Document) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(doc.Destination))
	if doc.Duration != "" {
		b.WriteString(mutedStyle.Render(" · " + string(doc.Duration)))
	}
	b.WriteString("\n")
	if doc.Summary != "" {
		b.WriteString(doc.Summary + "\n")
	}
	if doc.TotalBudget != "" {
		b.WriteString(mutedStyle.Render("Budget: "+string(doc.TotalBudget)) + "\n")
	}
	for _, d := range doc.Days {
		b.WriteString("\n" + renderDay(d))
	}
	if len(doc.LocalTips) > 0 {
		b.WriteString("\n" + dayStyle.Render("Local tips") + "\n")
		for _, tip := range doc.LocalTips {
			fmt.Fprintf(&b, "  • %s\n", tip)
		}
	}
	return b.String()
}

func renderDay(d itinerary.Day) string {
	var b strings.Builder
	heading := fmt.Sprintf("Day %d", d.Day)
	if d.Theme != "" {
		heading += ": " + string(d.Theme)
	}
	b.WriteString(dayStyle.Render(heading))
	if d.Date != "" {
		b.WriteString(mutedStyle.Render(" (" + string(d.Date) + ")"))
	}
	b.WriteString("\n")
	for _, a := range d.Activities {
		line := fmt.Sprintf("  %-8s %s", a.Time, a.Name)
		if a.Cost != "" {
			line += mutedStyle.Render(" [" + string(a.Cost) + "]")
		}
		b.WriteString(line + "\n")
	}
	for _, m := range d.Meals {
		fmt.Fprintf(&b, "  %-8s %s\n", m.Meal, m.Restaurant)
	}
	return b.String()
}

// renderUpdate prints the progress line and any section that just arrived.
func renderUpdate(u session.Update) string {
	if u.State == session.StateFailed {
		return errorStyle.Render(u.Progress) + "\n"
	}
	out := progressStyle.Render(u.Progress) + "\n"
	if u.Event != nil && u.Event.Kind == itinerary.KindDay {
		for _, d := range u.Draft.Days {
			if d.Day == u.Event.DayNumber {
				out += renderDay(d)
			}
		}
	}
	return out
}
