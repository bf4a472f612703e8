package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/danshapiro/handrail/internal/tools"
)

type promptApprover struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptApprover(in io.Reader, out io.Writer) *promptApprover {
	return &promptApprover{in: bufio.NewReader(in), out: out}
}

func (a *promptApprover) Approve(ctx context.Context, call tools.Call) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(a.out, "Tool: %s\n", call.Name)
	if args := strings.TrimSpace(call.Arguments); args != "" {
		fmt.Fprintf(a.out, "Arguments: %s\n", args)
	}
	fmt.Fprint(a.out, "Run tool? [y/N]: ")
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// terminalApprover prompts on stdin when it is a terminal. Without one there
// is nobody to ask.
func terminalApprover(cmd *cobra.Command) tools.Approver {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return newPromptApprover(f, cmd.ErrOrStderr())
}
