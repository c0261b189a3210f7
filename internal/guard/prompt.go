package guard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompt asks on Out and reads the answer from In. Only "y" (any case,
// surrounding space ignored) confirms; an empty line or EOF is a no.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

// NewPrompt returns a Prompt reading in and writing out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{In: in, Out: out}
}

type answer struct {
	line string
	err  error
}

// Confirm writes question and waits for a line or for ctx to end.
func (p *Prompt) Confirm(ctx context.Context, question string) (bool, error) {
	if _, err := fmt.Fprintf(p.Out, "%s [y/N]: ", question); err != nil {
		return false, err
	}

	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", a.err)
		}
		return IsAffirmative(a.line), nil
	}
}

// IsAffirmative reports whether the line s is exactly "y" or "Y". Only the
// line terminator is stripped.
func IsAffirmative(s string) bool {
	return strings.EqualFold(strings.TrimRight(s, "\r\n"), "y")
}

// AlwaysConfirm approves every deletion. It backs --yes.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(context.Context, string) (bool, error) {
	return true, nil
}
