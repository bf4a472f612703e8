package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danshapiro/handrail/internal/config"
	"github.com/danshapiro/handrail/internal/sandbox"
)

const (
	msgExecutionDisabled = "Tool execution disabled"
	msgApprovalRequired  = "Tool execution requires approval"
	msgDeclined          = "Tool execution declined"
)

// Approver asks a human whether call may run.
type Approver interface {
	Approve(ctx context.Context, call Call) (bool, error)
}

type ApproverFunc func(ctx context.Context, call Call) (bool, error)

func (f ApproverFunc) Approve(ctx context.Context, call Call) (bool, error) { return f(ctx, call) }

// Outcome is what a runner reports back for one call. Output is always the
// text to hand to the model.
type Outcome struct {
	Call     Call
	Output   string
	Executed bool
	Success  bool
	Err      error
}

// Runner gates registry calls behind the configured execution mode.
type Runner struct {
	Registry *Registry
	Mode     config.ExecutionMode
	// Approver is consulted in ask mode. Nil means no human is available.
	Approver Approver
	Logger   *slog.Logger
}

func NewRunner(reg *Registry, mode config.ExecutionMode, approver Approver) *Runner {
	return &Runner{Registry: reg, Mode: mode, Approver: approver}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// AutoApproved reports whether call can skip the approval prompt in ask mode:
// read-only tools, and shell commands the classifier considers safe.
func AutoApproved(call Call) bool {
	if !IsMutating(call.Name) {
		return true
	}
	if call.Name != "shell" {
		return false
	}
	args, err := parseArgs(call.Arguments)
	if err != nil {
		return false
	}
	cmd, ok := stringArg(args, "cmd")
	if !ok {
		return false
	}
	return sandbox.IsSafeCommand([]string{"bash", "-c", cmd})
}

func (r *Runner) decide(ctx context.Context, call Call) (bool, string, error) {
	switch r.Mode {
	case config.ExecutionAlways:
		return true, "", nil
	case config.ExecutionNever:
		return false, msgExecutionDisabled, nil
	case config.ExecutionAsk, "":
		if AutoApproved(call) {
			return true, "", nil
		}
		if r.Approver == nil {
			return false, msgApprovalRequired, nil
		}
		ok, err := r.Approver.Approve(ctx, call)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, msgDeclined, nil
		}
		return true, "", nil
	default:
		return false, "", fmt.Errorf("invalid execution mode: %q", r.Mode)
	}
}

func (r *Runner) Run(ctx context.Context, call Call, tc *Context) Outcome {
	ok, reason, err := r.decide(ctx, call)
	if err != nil {
		return Outcome{Call: call, Output: fmt.Sprintf("Tool error: %v", err), Err: err}
	}
	if !ok {
		r.logger().Info("tool call declined", "tool", call.Name, "reason", reason)
		return Outcome{Call: call, Output: reason}
	}
	out, err := r.Registry.Execute(ctx, call.Name, call.Arguments, tc)
	if err != nil {
		return Outcome{Call: call, Output: fmt.Sprintf("Tool error: %v", err), Executed: true, Err: err}
	}
	return Outcome{Call: call, Output: out, Executed: true, Success: true}
}

// RunAll runs calls sequentially in order.
func (r *Runner) RunAll(ctx context.Context, calls []Call, tc *Context) []Outcome {
	out := make([]Outcome, 0, len(calls))
	for _, c := range calls {
		out = append(out, r.Run(ctx, c, tc))
	}
	return out
}
