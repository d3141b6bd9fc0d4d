// Package prompttest provides a scripted prompt.Prompter for tests.
package prompttest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/protocollar/stackup/internal/prompt"
)

// Answer is one scripted reply. Exactly one field is meaningful, chosen by
// the method that consumes it. Cancel makes the prompt return
// prompt.ErrCancelled.
type Answer struct {
	Text   string
	Yes    bool
	Choice int
	Cancel bool
}

// Text answers a Text or Secret prompt.
func Text(s string) Answer { return Answer{Text: s} }

// Yes answers a YesNo prompt with yes.
func Yes() Answer { return Answer{Yes: true} }

// No answers a YesNo prompt with no.
func No() Answer { return Answer{} }

// Pick answers a Choice prompt.
func Pick(i int) Answer { return Answer{Choice: i} }

// Cancel interrupts the prompt.
func Cancel() Answer { return Answer{Cancel: true} }

// Scripted replays answers in order. Running out of answers is an error so
// unexpected questions fail the test loudly.
type Scripted struct {
	mu        sync.Mutex
	answers   []Answer
	Questions []string
}

// New returns a Scripted prompter.
func New(answers ...Answer) *Scripted {
	return &Scripted{answers: answers}
}

// Remaining reports how many answers were not consumed.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

// Asked reports whether any question contained substr.
func (s *Scripted) Asked(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.Questions {
		if strings.Contains(q, substr) {
			return true
		}
	}
	return false
}

func (s *Scripted) next(question string) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Questions = append(s.Questions, question)
	if len(s.answers) == 0 {
		return Answer{}, fmt.Errorf("prompttest: unexpected question %q", question)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	if a.Cancel {
		return a, prompt.ErrCancelled
	}
	return a, nil
}

func (s *Scripted) Text(question, def string) (string, error) {
	a, err := s.next(question)
	if err != nil {
		return "", err
	}
	if a.Text == "" {
		return def, nil
	}
	return a.Text, nil
}

func (s *Scripted) Secret(question string) (string, error) {
	a, err := s.next(question)
	if err != nil {
		return "", err
	}
	return a.Text, nil
}

func (s *Scripted) YesNo(question string, _ bool) (bool, error) {
	a, err := s.next(question)
	if err != nil {
		return false, err
	}
	return a.Yes, nil
}

func (s *Scripted) Choice(question string, options []string, _ int) (int, error) {
	a, err := s.next(question)
	if err != nil {
		return -1, err
	}
	if a.Choice < 0 || a.Choice >= len(options) {
		return -1, fmt.Errorf("prompttest: choice %d out of range for %q (%d options)", a.Choice, question, len(options))
	}
	return a.Choice, nil
}
