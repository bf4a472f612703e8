package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/danshapiro/handrail/internal/pty"
)

const defaultYieldTimeMS = 5000

type shellArgs struct {
	Cmd         string `json:"cmd"`
	Workdir     string `json:"workdir"`
	Shell       string `json:"shell"`
	YieldTimeMS int    `json:"yield_time_ms"`
}

type shellWriteArgs struct {
	SessionID   uint64 `json:"session_id"`
	Chars       string `json:"chars"`
	YieldTimeMS int    `json:"yield_time_ms"`
}

type shellMetadata struct {
	ExitCode        *int    `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
	SessionID       uint64  `json:"session_id"`
	HasExited       bool    `json:"has_exited"`
}

type shellResult struct {
	Output   string        `json:"output"`
	Metadata shellMetadata `json:"metadata"`
}

func shellTool(m *pty.Manager) Definition {
	return Definition{
		Name:        "shell",
		Description: "Execute a shell command in a PTY. Returns output and session_id for follow-up writes. Use shell_write to send input to an existing session.",
		Params: []Param{
			{Name: "cmd", Type: "string", Description: "Shell command to execute."},
			{Name: "workdir", Type: "string", Description: "Working directory for the command (defaults to the tool working directory)."},
			{Name: "shell", Type: "string", Description: "Shell binary to use (defaults to /bin/bash)."},
			{Name: "yield_time_ms", Type: "integer", Description: "How long to wait for output before returning (default 5000ms)."},
		},
		Required: []string{"cmd"},
		Executor: func(ctx context.Context, tc *Context, args map[string]any) (string, error) {
			a := shellArgs{YieldTimeMS: defaultYieldTimeMS}
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			workdir := tc.workingDir()
			if a.Workdir != "" {
				workdir = tc.resolve(a.Workdir)
			}
			out, err := m.Spawn(ctx, pty.SpawnRequest{
				Shell:      a.Shell,
				Command:    a.Cmd,
				WorkingDir: workdir,
				YieldTime:  yieldWithin(ctx, a.YieldTimeMS),
			})
			if err != nil {
				return "", Execution("%v", err)
			}
			tc.logger().Debug("shell spawned", "session_id", out.SessionID, "has_exited", out.HasExited)
			return renderShellOutput(out)
		},
	}
}

func shellWriteTool(m *pty.Manager) Definition {
	return Definition{
		Name:        "shell_write",
		Description: "Write characters to an existing PTY session. Use the session_id from a previous shell call. Returns new output from the session.",
		Params: []Param{
			{Name: "session_id", Type: "integer", Description: "Session ID from a previous shell call."},
			{Name: "chars", Type: "string", Description: "Characters to send to the session (can include \\n for enter)."},
			{Name: "yield_time_ms", Type: "integer", Description: "How long to wait for output before returning (default 5000ms)."},
		},
		Required: []string{"session_id", "chars"},
		Executor: func(ctx context.Context, _ *Context, args map[string]any) (string, error) {
			a := shellWriteArgs{YieldTimeMS: defaultYieldTimeMS}
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			out, err := m.Write(ctx, pty.ID(a.SessionID), a.Chars, yieldWithin(ctx, a.YieldTimeMS))
			switch {
			case errors.Is(err, pty.ErrSessionNotFound):
				return "", NotFound("session %d", a.SessionID)
			case err != nil:
				return "", Execution("%v", err)
			}
			return renderShellOutput(out)
		},
	}
}

// yieldWithin keeps the collection window inside the call deadline so that a
// default-length yield does not trip the registry's timeout check.
func yieldWithin(ctx context.Context, ms int) time.Duration {
	yield := time.Duration(ms) * time.Millisecond
	if ms <= 0 {
		yield = defaultYieldTimeMS * time.Millisecond
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl) * 9 / 10; left > 0 && left < yield {
			yield = left
		}
	}
	return yield
}

func renderShellOutput(out pty.Output) (string, error) {
	b, err := json.Marshal(shellResult{
		Output: out.Output,
		Metadata: shellMetadata{
			ExitCode:        out.ExitCode,
			DurationSeconds: out.Duration.Seconds(),
			SessionID:       uint64(out.SessionID),
			HasExited:       out.HasExited,
		},
	})
	if err != nil {
		return "", Execution("encode shell output: %v", err)
	}
	return string(b), nil
}
