package prompt

import (
	"context"
	"fmt"
	"sync"
)

// Answer is one scripted reply. Cancel simulates the user pressing escape.
type Answer struct {
	Value  string
	Cancel bool
}

// Scripted replays canned answers in order and records what was asked.
// It also implements Notifier so tests can assert on messages.
type Scripted struct {
	mu      sync.Mutex
	answers []Answer
	Asked   []Options
	Infos   []string
	Errors  []string
}

// NewScripted returns a prompter that answers with the given replies in order.
func NewScripted(answers ...Answer) *Scripted {
	return &Scripted{answers: answers}
}

// Input implements Prompter. Running out of answers is reported as an error.
func (s *Scripted) Input(_ context.Context, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Asked = append(s.Asked, opts)
	if len(s.answers) == 0 {
		return "", fmt.Errorf("unexpected prompt %q", opts.Prompt)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	if a.Cancel {
		return "", ErrCancelled
	}
	return a.Value, nil
}

// Info implements Notifier.
func (s *Scripted) Info(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Infos = append(s.Infos, msg)
}

// Error implements Notifier.
func (s *Scripted) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, msg)
}

// Remaining returns how many scripted answers were not consumed.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}
