package changes

import (
	"fmt"
	"strings"
)

type FileError struct {
	Path string
	Err  error
}

// RollbackResult aggregates the outcome of a rollback. Groups lists the tool
// name of each rolled back group, newest first.
type RollbackResult struct {
	Groups   []string
	Restored []string
	Errors   []FileError
}

func (r *RollbackResult) OK() bool { return len(r.Errors) == 0 }

func (r *RollbackResult) Format() string {
	var lines []string
	if len(r.Groups) > 0 {
		lines = append(lines, fmt.Sprintf("Rolled back %d change group(s): %s", len(r.Groups), strings.Join(r.Groups, ", ")))
	}
	if len(r.Restored) > 0 {
		lines = append(lines, fmt.Sprintf("Restored %d file(s):", len(r.Restored)))
		for _, p := range r.Restored {
			lines = append(lines, "  - "+p)
		}
	}
	if len(r.Errors) > 0 {
		lines = append(lines, fmt.Sprintf("Errors (%d):", len(r.Errors)))
		for _, e := range r.Errors {
			lines = append(lines, fmt.Sprintf("  - %s: %v", e.Path, e.Err))
		}
	}
	return strings.Join(lines, "\n")
}
