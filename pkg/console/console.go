// Package console is the interactive line-input and output surface of a
// session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks the user for one line of text. The returned line carries
// exactly what the user typed minus the line terminator.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// Console reads from an input stream and writes to an output stream. Writes
// are serialized so concurrent stages can share it.
type Console struct {
	in  *bufio.Reader
	mu  sync.Mutex
	out io.Writer
}

// New creates a Console over in and out (typically os.Stdin and os.Stdout).
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Prompt writes message and blocks until a full line is read. It is not
// interruptible mid-read; ctx is only checked before prompting.
func (c *Console) Prompt(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := io.WriteString(c, message); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}

	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return trimTerminator(line), nil
		}
		return "", err
	}
	return trimTerminator(line), nil
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// Println writes a line of output.
func (c *Console) Println(a ...any) {
	_, _ = fmt.Fprintln(c, a...)
}

// Printf writes formatted output.
func (c *Console) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(c, format, a...)
}

func trimTerminator(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// Script is a Prompter that replays canned answers, for tests and dry runs.
// Once the answers run out every prompt returns io.EOF.
type Script struct {
	mu      sync.Mutex
	answers []string
	prompts []string
}

// NewScript returns a Script answering with lines in order.
func NewScript(lines ...string) *Script {
	return &Script{answers: lines}
}

func (s *Script) Prompt(_ context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, message)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	line := s.answers[0]
	s.answers = s.answers[1:]
	return line, nil
}

// Prompts returns every message the script was prompted with.
func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Remaining reports how many answers have not been consumed.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}
