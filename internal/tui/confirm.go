package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type confirmModel struct {
	question  string
	def       bool
	answer    bool
	done      bool
	cancelled bool
}

func newConfirmModel(question string, def bool) confirmModel {
	return confirmModel{question: question, def: def}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, keys.Yes):
		m.answer, m.done = true, true
	case key.Matches(km, keys.No):
		m.answer, m.done = false, true
	case key.Matches(km, keys.Enter):
		m.answer, m.done = m.def, true
	case key.Matches(km, keys.Cancel):
		m.cancelled = true
	default:
		return m, nil
	}
	return m, tea.Quit
}

func (m confirmModel) View() string {
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString(" ")

	switch {
	case m.cancelled:
		b.WriteString(dimStyle.Render("cancelled"))
	case m.done && m.answer:
		b.WriteString(statusOKStyle.Render("yes"))
	case m.done:
		b.WriteString(statusSkippedStyle.Render("no"))
	case m.def:
		b.WriteString(confirmStyle.Render("[Y/n]"))
	default:
		b.WriteString(confirmStyle.Render("[y/N]"))
	}
	b.WriteString("\n")
	return b.String()
}
