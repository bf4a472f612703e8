package tools

import (
	"context"
	"fmt"
	"strings"
)

type planStatus string

const (
	statusPending    planStatus = "pending"
	statusInProgress planStatus = "in_progress"
	statusCompleted  planStatus = "completed"
)

type planItem struct {
	Step   string     `json:"step"`
	Status planStatus `json:"status"`
}

type planArgs struct {
	Explanation string     `json:"explanation"`
	Plan        []planItem `json:"plan"`
}

func planTool() Definition {
	return Definition{
		Name:        "plan",
		Description: "Update the task plan. Use to track progress on multi-step tasks. Only one task can be in_progress at a time.",
		Params: []Param{
			{Name: "explanation", Type: "string", Description: "Optional explanation of what changed in the plan."},
			{Name: "plan", Type: "array", Items: "object", Description: "Array of plan items with 'step' (string) and 'status' (pending|in_progress|completed)."},
		},
		Required: []string{"plan"},
		Executor: execPlan,
	}
}

func execPlan(_ context.Context, _ *Context, args map[string]any) (string, error) {
	var a planArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	inProgress, completed := 0, 0
	for i, it := range a.Plan {
		switch it.Status {
		case statusInProgress:
			inProgress++
		case statusCompleted:
			completed++
		case statusPending:
		default:
			return "", InvalidArgs("plan[%d]: invalid status %q (want pending|in_progress|completed)", i, it.Status)
		}
	}
	if inProgress > 1 {
		return "", RespondToModel("Only one task can be in_progress at a time")
	}

	var b strings.Builder
	if a.Explanation != "" {
		fmt.Fprintf(&b, "Plan update: %s\n\n", a.Explanation)
	}
	b.WriteString("Current plan:\n")
	for i, it := range a.Plan {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, statusIcon(it.Status), it.Step)
	}
	fmt.Fprintf(&b, "\nProgress: %d/%d completed", completed, len(a.Plan))
	return b.String(), nil
}

func statusIcon(s planStatus) string {
	switch s {
	case statusInProgress:
		return "[→]"
	case statusCompleted:
		return "[✓]"
	default:
		return "[ ]"
	}
}
