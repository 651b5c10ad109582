package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ConfirmFunc asks whether the pending request described by description may
// be sent.
type ConfirmFunc func(ctx context.Context, description string) (bool, error)

var questionStyle = color.New(color.Bold)

type readResult struct {
	line string
	err  error
}

// TerminalConfirm asks on out and reads a single line from in. Only "y"
// (any case, surrounding whitespace ignored) confirms. End of input counts as
// a refusal. Cancelling ctx (Ctrl-C) abandons the read and returns ctx.Err().
func TerminalConfirm(in io.Reader, out io.Writer) ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, description string) (bool, error) {
		questionStyle.Fprintf(out, "%s Proceed? (y/n): ", description)

		// The read cannot be interrupted, so it runs on its own goroutine and
		// is left behind on cancellation; the process exits right after.
		done := make(chan readResult, 1)
		go func() {
			line, err := reader.ReadString('\n')
			done <- readResult{line: line, err: err}
		}()

		var res readResult
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return false, ctx.Err()
		case res = <-done:
		}
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", res.err)
		}
		return strings.ToLower(strings.TrimSpace(res.line)) == "y", nil
	}
}
