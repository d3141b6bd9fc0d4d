package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// inputModel asks for a single line of text. Secret inputs echo a mask
// character and never render the value, even after submission.
type inputModel struct {
	question  string
	def       string
	secret    bool
	required  bool
	input     textinput.Model
	value     string
	err       string
	done      bool
	cancelled bool
}

func newInputModel(question, def string, secret, required bool) inputModel {
	ti := textinput.New()
	ti.Prompt = "› "
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	} else if def != "" {
		ti.Placeholder = def
	}
	ti.Focus()
	return inputModel{
		question: question,
		def:      def,
		secret:   secret,
		required: required,
		input:    ti,
	}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Cancel):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, keys.Enter):
			v := strings.TrimSpace(m.input.Value())
			if v == "" {
				v = m.def
			}
			if v == "" && m.required {
				m.err = "a value is required (esc to cancel)"
				return m, nil
			}
			m.value = v
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = ""
	return m, cmd
}

func (m inputModel) View() string {
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))

	if m.done || m.cancelled {
		b.WriteString(" ")
		switch {
		case m.cancelled:
			b.WriteString(dimStyle.Render("cancelled"))
		case m.secret && m.value != "":
			b.WriteString(dimStyle.Render("(hidden)"))
		case m.value == "":
			b.WriteString(dimStyle.Render("(empty)"))
		default:
			b.WriteString(statusOKStyle.Render(m.value))
		}
		b.WriteString("\n")
		return b.String()
	}

	if m.secret && m.def != "" {
		b.WriteString(dimStyle.Render(" (enter to keep current)"))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err))
		b.WriteString("\n")
	}
	b.WriteString(renderHelpBar([]helpItem{
		{"enter", "submit"},
		{"esc", "cancel"},
	}))
	b.WriteString("\n")
	return b.String()
}
