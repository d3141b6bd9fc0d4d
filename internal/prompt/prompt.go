// Package prompt asks the user questions. Components depend on the Prompter
// interface so tests can script answers.
package prompt

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/protocollar/stackup/internal/tui"
)

// ErrCancelled is returned when the user interrupts a prompt.
var ErrCancelled = tui.ErrCancelled

// ErrNoInput is returned when stdin closes before an answer arrives.
var ErrNoInput = errors.New("input closed: stackup requires an interactive terminal")

// Prompter is the capability every interactive component is handed.
type Prompter interface {
	// Text asks for free text. An empty answer returns def.
	Text(question, def string) (string, error)
	// Secret asks for a value without echoing it. An empty answer returns "".
	Secret(question string) (string, error)
	// YesNo asks a yes/no question.
	YesNo(question string, def bool) (bool, error)
	// Choice returns the index of the picked option.
	Choice(question string, options []string, def int) (int, error)
}

// New returns a Terminal prompter when in is a terminal and a Line prompter
// otherwise. Prompts return ErrCancelled once ctx is done.
func New(ctx context.Context, in *os.File, out io.Writer) Prompter {
	if IsInteractive(in) {
		return &Terminal{Ctx: ctx, In: in, Out: out}
	}
	return NewLineContext(ctx, in, out)
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
