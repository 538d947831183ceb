package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// prompter reads answers line by line. Reads happen on a goroutine so a
// cancelled context unblocks a waiting prompt.
type prompter struct {
	lines <-chan string
	out   io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return &prompter{lines: lines, out: out}
}

// ask prints prompt and returns the trimmed reply. It returns io.EOF when
// input is closed.
func (p *prompter) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			fmt.Fprintln(p.out)
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// confirm asks a yes/no question. Anything but y/yes is no.
func (p *prompter) confirm(ctx context.Context, question string) bool {
	reply, err := p.ask(ctx, question+" [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(reply) {
	case "y", "yes":
		return true
	}
	return false
}
