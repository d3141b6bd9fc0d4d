package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Panel renders content inside a rounded-border box with the title
// embedded in the top border.
//
//	╭─ Title ──────────────────────╮
//	│  content here                │
//	╰──────────────────────────────╯
func Panel(title, content string, width int) string {
	// Account for left/right border (1 char each) and inner padding (1 char each).
	innerWidth := width - 4
	if innerWidth < 10 {
		innerWidth = 10
		width = innerWidth + 4
	}

	borderFg := lipgloss.NewStyle().Foreground(colorBorder)
	titleRendered := titleStyle.Render(title)

	var top strings.Builder
	top.WriteString(borderFg.Render("╭─ "))
	top.WriteString(titleRendered)
	top.WriteString(borderFg.Render(" "))

	// lipgloss.Width accounts for ANSI.
	used := 3 + lipgloss.Width(titleRendered) + 1 // "╭─ " + title + " "
	remaining := width - used - 1                  // -1 for "╮"
	if remaining < 0 {
		remaining = 0
	}
	top.WriteString(borderFg.Render(strings.Repeat("─", remaining) + "╮"))

	var body strings.Builder
	for _, line := range strings.Split(content, "\n") {
		pad := innerWidth - lipgloss.Width(line)
		if pad < 0 {
			pad = 0
		}
		body.WriteString(borderFg.Render("│"))
		body.WriteString(" ")
		body.WriteString(line)
		body.WriteString(strings.Repeat(" ", pad))
		body.WriteString(" ")
		body.WriteString(borderFg.Render("│"))
		body.WriteString("\n")
	}

	bottom := borderFg.Render("╰" + strings.Repeat("─", width-2) + "╯")

	return top.String() + "\n" + body.String() + bottom
}

// Row renders a single "label value" line.
func Row(label, value string) string {
	return fmt.Sprintf("%s%s", detailLabelStyle.Render(label), detailValueStyle.Render(value))
}

type helpItem struct {
	key  string
	desc string
}

// renderHelpBar renders a styled help bar: "key desc · key desc ..."
func renderHelpBar(items []helpItem) string {
	var parts []string
	for _, item := range items {
		parts = append(parts,
			helpKeyStyle.Render(item.key)+" "+helpDescStyle.Render(item.desc),
		)
	}
	sep := helpSepStyle.Render("·")
	return "  " + strings.Join(parts, " "+sep+" ")
}

// scrollWindow returns the [start, end) slice of a list of total rows that
// keeps cursor visible in height rows.
func scrollWindow(cursor, total, height int) (int, int) {
	if total <= height {
		return 0, total
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > total {
		end = total
		start = end - height
	}
	return start, end
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
