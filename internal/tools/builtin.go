package tools

import (
	"context"
	"time"

	"github.com/danshapiro/handrail/internal/pty"
)

func echoTool() Definition {
	return Definition{
		Name:        "echo",
		Description: "Echo back the provided text.",
		Params:      []Param{{Name: "text", Type: "string", Description: "Text to echo back."}},
		Required:    []string{"text"},
		Executor: func(_ context.Context, _ *Context, args map[string]any) (string, error) {
			text, ok := stringArg(args, "text")
			if !ok {
				return "", InvalidArgs("missing 'text'")
			}
			return text, nil
		},
	}
}

func timeNowTool() Definition {
	return Definition{
		Name:        "time_now",
		Description: "Return the current UTC time in RFC3339 format.",
		Executor: func(context.Context, *Context, map[string]any) (string, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	}
}

// Builtins returns the built-in tools in their canonical order. The shell
// tools are included only when a PTY manager is supplied.
func Builtins(ptys *pty.Manager) []Definition {
	defs := []Definition{echoTool(), timeNowTool()}
	if ptys != nil {
		defs = append(defs, shellTool(ptys), shellWriteTool(ptys))
	}
	return append(defs,
		fileReadTool(),
		searchTool(),
		lsTool(),
		patchTool(),
		planTool(),
		rollbackTool(),
	)
}
