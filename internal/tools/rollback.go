package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/danshapiro/handrail/internal/changes"
)

type rollbackArgs struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

type rollbackFileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type rollbackOutput struct {
	Success       bool                `json:"success"`
	RolledBack    []string            `json:"rolled_back"`
	RestoredFiles []string            `json:"restored_files"`
	Errors        []rollbackFileError `json:"errors"`
	Message       string              `json:"message"`
}

type changeSummary struct {
	Index       int       `json:"index"`
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Description string    `json:"description"`
	FileCount   int       `json:"file_count"`
	Timestamp   time.Time `json:"timestamp"`
}

func rollbackTool() Definition {
	return Definition{
		Name:        "rollback",
		Description: "Rollback file changes made by tools. Can rollback the last N change groups, preview what a rollback would do, or show a summary of changes.",
		Params: []Param{
			{Name: "action", Type: "string", Description: "Action to perform: 'rollback' to undo changes, 'preview' to show the diff a rollback would apply, 'summary' to list changes, 'clear' to discard tracking."},
			{Name: "count", Type: "integer", Description: "Number of change groups to rollback or preview (default: 1)."},
		},
		Required: []string{"action"},
		Executor: execRollback,
	}
}

func execRollback(_ context.Context, tc *Context, args map[string]any) (string, error) {
	a := rollbackArgs{Count: 1}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	t := tc.Tracker
	if t == nil {
		return "", RespondToModel("change tracking is not enabled")
	}

	switch a.Action {
	case "rollback":
		res, err := t.Rollback(a.Count)
		if err != nil {
			return "", RespondToModel("Rollback failed: %v", err)
		}
		out := rollbackOutput{
			Success:       res.OK(),
			RolledBack:    nonNil(res.Groups),
			RestoredFiles: nonNil(res.Restored),
			Errors:        []rollbackFileError{},
			Message:       res.Format(),
		}
		for _, e := range res.Errors {
			out.Errors = append(out.Errors, rollbackFileError{File: e.Path, Error: e.Err.Error()})
		}
		tc.logger().Info("rollback", "groups", len(res.Groups), "restored", len(res.Restored), "errors", len(res.Errors))
		return marshalIndent(out)
	case "preview":
		s, err := t.Preview(a.Count)
		if errors.Is(err, changes.ErrNoChanges) {
			return "No changes tracked", nil
		}
		if err != nil {
			return "", Execution("%v", err)
		}
		return s, nil
	case "summary":
		sum := t.Summary()
		if len(sum) == 0 {
			return marshalCompact(map[string]any{"message": "No changes tracked", "changes": []any{}})
		}
		items := make([]changeSummary, 0, len(sum))
		for _, s := range sum {
			items = append(items, changeSummary{
				Index:       s.Index,
				ID:          s.ID,
				Tool:        s.Tool,
				Description: s.Description,
				FileCount:   s.FileCount,
				Timestamp:   s.Timestamp,
			})
		}
		return marshalIndent(map[string]any{"total_groups": len(items), "changes": items})
	case "clear":
		t.Clear()
		return marshalCompact(map[string]any{"success": true, "message": "Change tracking cleared"})
	default:
		return "", InvalidArgs("Unknown action: '%s'. Use 'rollback', 'preview', 'summary', or 'clear'.", a.Action)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func marshalIndent(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", Execution("encode result: %v", err)
	}
	return string(b), nil
}

func marshalCompact(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", Execution("encode result: %v", err)
	}
	return string(b), nil
}
