// Package prompt provides interactive input and user notifications.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrCancelled is returned when the user dismisses a prompt.
var ErrCancelled = errors.New("prompt cancelled")

// Options describes a single input request.
type Options struct {
	Prompt   string
	Value    string // pre-filled value offered to the user
	Password bool   // mask input
}

// Prompter asks the user for a line of input.
type Prompter interface {
	Input(ctx context.Context, opts Options) (string, error)
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// Terminal prompts on a terminal. Ctrl-D (EOF) cancels a prompt.
type Terminal struct {
	in  *bufio.Reader
	fd  int
	out io.Writer

	mu sync.Mutex
}

// NewTerminal returns a prompter reading from stdin and writing to stderr.
func NewTerminal() *Terminal {
	return &Terminal{
		in:  bufio.NewReader(os.Stdin),
		fd:  int(os.Stdin.Fd()),
		out: os.Stderr,
	}
}

// Input implements Prompter.
func (t *Terminal) Input(ctx context.Context, opts Options) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	label := opts.Prompt
	if opts.Value != "" && !opts.Password {
		label = fmt.Sprintf("%s [%s]", label, opts.Value)
	}
	fmt.Fprintf(t.out, "%s: ", label)

	if opts.Password && term.IsTerminal(t.fd) {
		b, err := term.ReadPassword(t.fd)
		fmt.Fprintln(t.out)
		if err != nil {
			return "", ErrCancelled
		}
		return string(b), nil
	}

	line, err := t.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		fmt.Fprintln(t.out)
		return "", ErrCancelled
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" && opts.Value != "" {
		return opts.Value, nil
	}
	return line, nil
}

// Info implements Notifier.
func (t *Terminal) Info(msg string) {
	fmt.Fprintln(t.out, msg)
}

// Error implements Notifier.
func (t *Terminal) Error(msg string) {
	fmt.Fprintln(t.out, "Error: "+msg)
}

// NoInput cancels every prompt. Used for non-interactive hosts such as a
// background mount without a controlling terminal.
type NoInput struct{}

func (NoInput) Input(context.Context, Options) (string, error) {
	return "", ErrCancelled
}

// Discard drops all notifications.
type Discard struct{}

func (Discard) Info(string)  {}
func (Discard) Error(string) {}
