package prompt

import (
	"context"
	"io"

	"github.com/protocollar/stackup/internal/tui"
)

// Terminal prompts with inline bubbletea programs.
type Terminal struct {
	Ctx context.Context // nil means context.Background()
	In  io.Reader
	Out io.Writer
}

func (t *Terminal) ctx() context.Context {
	if t.Ctx == nil {
		return context.Background()
	}
	return t.Ctx
}

func (t *Terminal) Text(question, def string) (string, error) {
	return tui.Input(t.ctx(), t.In, t.Out, question, def, false, false)
}

func (t *Terminal) Secret(question string) (string, error) {
	return tui.Input(t.ctx(), t.In, t.Out, question, "", true, false)
}

func (t *Terminal) YesNo(question string, def bool) (bool, error) {
	return tui.Confirm(t.ctx(), t.In, t.Out, question, def)
}

func (t *Terminal) Choice(question string, options []string, def int) (int, error) {
	opts := make([]tui.Option, len(options))
	for i, o := range options {
		opts[i] = tui.Option{Label: o}
	}
	return tui.Choose(t.ctx(), t.In, t.Out, question, opts, def)
}
