package tools

import (
	"fmt"
	"strings"
)

type TruncationStrategy string

const (
	TruncHeadTail TruncationStrategy = "head_tail"
	TruncTail     TruncationStrategy = "tail"
)

// OutputLimit bounds what ExecuteCall hands back to the model. The untruncated
// text stays available in Result.FullOutput.
type OutputLimit struct {
	MaxChars int
	MaxLines int
	Strategy TruncationStrategy
}

func defaultLimit(toolName string) OutputLimit {
	switch toolName {
	case "file_read":
		return OutputLimit{MaxChars: 50_000, Strategy: TruncHeadTail}
	case "shell", "shell_write":
		return OutputLimit{MaxChars: 30_000, MaxLines: 256, Strategy: TruncHeadTail}
	case "search":
		return OutputLimit{MaxChars: 20_000, MaxLines: 200, Strategy: TruncTail}
	case "ls":
		return OutputLimit{MaxChars: 20_000, MaxLines: 500, Strategy: TruncTail}
	case "patch":
		return OutputLimit{MaxChars: 10_000, Strategy: TruncTail}
	default:
		return OutputLimit{MaxChars: 20_000, Strategy: TruncHeadTail}
	}
}

func applyLimit(s string, lim OutputLimit) string {
	out := truncateChars(s, lim.MaxChars, lim.Strategy)
	if lim.MaxLines > 0 {
		out = truncateLines(out, lim.MaxLines)
	}
	return out
}

func truncateChars(s string, max int, strat TruncationStrategy) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	removed := len(s) - max
	switch strat {
	case TruncTail:
		marker := fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", removed)
		return marker + s[len(s)-max:]
	default:
		headCount := max / 2
		tailCount := max - headCount
		marker := fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. Re-run the tool with more targeted parameters to see specific parts.]\n\n", removed)
		return s[:headCount] + marker + s[len(s)-tailCount:]
	}
}

func truncateLines(s string, max int) string {
	if max <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	headCount := max / 2
	tailCount := max - headCount
	omitted := len(lines) - headCount - tailCount
	marker := fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted)
	head := strings.Join(lines[:headCount], "\n")
	tail := strings.Join(lines[len(lines)-tailCount:], "\n")
	return head + marker + tail
}
