package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const choiceListHeight = 10

// Option is one entry in a choice list.
type Option struct {
	Label  string
	Detail string
}

type choiceModel struct {
	question  string
	options   []Option
	cursor    int
	done      bool
	cancelled bool
}

func newChoiceModel(question string, options []Option, start int) choiceModel {
	if start < 0 || start >= len(options) {
		start = 0
	}
	return choiceModel{question: question, options: options, cursor: start}
}

func (m choiceModel) Init() tea.Cmd { return nil }

func (m choiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(km, keys.Enter):
		if len(m.options) > 0 {
			m.done = true
			return m, tea.Quit
		}
	case key.Matches(km, keys.Cancel):
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m choiceModel) View() string {
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))

	if m.cancelled {
		b.WriteString(" " + dimStyle.Render("cancelled") + "\n")
		return b.String()
	}
	if m.done {
		b.WriteString(" " + statusOKStyle.Render(m.options[m.cursor].Label) + "\n")
		return b.String()
	}
	b.WriteString("\n")

	start, end := scrollWindow(m.cursor, len(m.options), choiceListHeight)
	for i := start; i < end; i++ {
		o := m.options[i]
		suffix := ""
		if o.Detail != "" {
			suffix = "  " + dimStyle.Render(truncate(o.Detail, 48))
		}
		if i == m.cursor {
			fmt.Fprintf(&b, "%s %s%s\n",
				cursorStyle.Render("▸"),
				selectedRowStyle.Render(fmt.Sprintf("%-32s", truncate(o.Label, 32))),
				suffix,
			)
		} else {
			fmt.Fprintf(&b, "  %s%s\n",
				normalRowStyle.Render(fmt.Sprintf("%-32s", truncate(o.Label, 32))),
				suffix,
			)
		}
	}
	if len(m.options) > choiceListHeight {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.options))))
		b.WriteString("\n")
	}
	b.WriteString(renderHelpBar([]helpItem{
		{"up/down", "move"},
		{"enter", "select"},
		{"esc", "cancel"},
	}))
	b.WriteString("\n")
	return b.String()
}
