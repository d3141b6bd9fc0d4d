package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Line reads one answer per line. It is used when stdin is piped, where
// bubbletea cannot take over the terminal.
type Line struct {
	ctx     context.Context
	r       *bufio.Reader
	out     io.Writer
	pending chan lineRead
}

type lineRead struct {
	s   string
	err error
}

// NewLine returns a Line prompter reading from in and writing questions to out.
func NewLine(in io.Reader, out io.Writer) *Line {
	return NewLineContext(context.Background(), in, out)
}

// NewLineContext is NewLine with a context. Once ctx is done, a pending or
// later read returns ErrCancelled.
func NewLineContext(ctx context.Context, in io.Reader, out io.Writer) *Line {
	return &Line{ctx: ctx, r: bufio.NewReader(in), out: out}
}

func (l *Line) readLine() (string, error) {
	// A read abandoned on cancel stays pending so two goroutines never
	// share the reader.
	if l.pending == nil {
		ch := make(chan lineRead, 1)
		go func() {
			s, err := l.r.ReadString('\n')
			ch <- lineRead{s, err}
		}()
		l.pending = ch
	}
	var got lineRead
	select {
	case <-l.ctx.Done():
		return "", ErrCancelled
	case got = <-l.pending:
		l.pending = nil
	}
	s, err := got.s, got.err
	if err != nil {
		if errors.Is(err, io.EOF) {
			if s == "" {
				return "", ErrNoInput
			}
		} else {
			return "", fmt.Errorf("reading answer: %w", err)
		}
	}
	return strings.TrimSpace(s), nil
}

func (l *Line) Text(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(l.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(l.out, "%s: ", question)
	}
	s, err := l.readLine()
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

func (l *Line) Secret(question string) (string, error) {
	fmt.Fprintf(l.out, "%s (input hidden from logs): ", question)
	return l.readLine()
}

func (l *Line) YesNo(question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(l.out, "%s [%s]: ", question, hint)
		s, err := l.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(s) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(l.out, "Please answer y or n.")
	}
}

func (l *Line) Choice(question string, options []string, def int) (int, error) {
	if len(options) == 0 {
		return -1, errors.New("no options to choose from")
	}
	if def < 0 || def >= len(options) {
		def = 0
	}
	fmt.Fprintln(l.out, question)
	for i, o := range options {
		fmt.Fprintf(l.out, "  %d) %s\n", i+1, o)
	}
	for {
		fmt.Fprintf(l.out, "Choose 1-%d [%d]: ", len(options), def+1)
		s, err := l.readLine()
		if err != nil {
			return -1, err
		}
		if s == "" {
			return def, nil
		}
		n, err := strconv.Atoi(s)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(l.out, "Enter a number between 1 and %d.\n", len(options))
	}
}
