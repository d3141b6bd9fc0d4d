// Package tui renders the interactive prompts and the styled summary used
// when stackup runs on a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user presses esc or ctrl+c.
var ErrCancelled = errors.New("cancelled by user")

func run(ctx context.Context, m tea.Model, in io.Reader, out io.Writer) (tea.Model, error) {
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, fmt.Errorf("running prompt: %w", err)
	}
	return final, nil
}

// Input asks for a line of text. An empty answer yields def; required
// inputs keep asking until a value or a cancel arrives.
func Input(ctx context.Context, in io.Reader, out io.Writer, question, def string, secret, required bool) (string, error) {
	final, err := run(ctx, newInputModel(question, def, secret, required), in, out)
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.value, nil
}

// Confirm asks a yes/no question.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, question string, def bool) (bool, error) {
	final, err := run(ctx, newConfirmModel(question, def), in, out)
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.cancelled {
		return false, ErrCancelled
	}
	return m.answer, nil
}

// Choose asks the user to pick one option and returns its index. The cursor
// starts on options[start].
func Choose(ctx context.Context, in io.Reader, out io.Writer, question string, options []Option, start int) (int, error) {
	if len(options) == 0 {
		return -1, errors.New("no options to choose from")
	}
	final, err := run(ctx, newChoiceModel(question, options, start), in, out)
	if err != nil {
		return -1, err
	}
	m := final.(choiceModel)
	if m.cancelled {
		return -1, ErrCancelled
	}
	return m.cursor, nil
}
