package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	tabWidth         = 4
	maxLineLength    = 500
	defaultReadLimit = 2000
)

type indentationArgs struct {
	AnchorLine *int `json:"anchor_line"`
	MaxLevels  int  `json:"max_levels"`
	MaxLines   *int `json:"max_lines"`
	// Accepted for compatibility with existing callers; block selection
	// does not depend on them.
	IncludeSiblings bool `json:"include_siblings"`
	IncludeHeader   bool `json:"include_header"`
}

type fileReadArgs struct {
	FilePath    string           `json:"file_path"`
	Offset      int              `json:"offset"`
	Limit       int              `json:"limit"`
	Mode        string           `json:"mode"`
	Indentation *indentationArgs `json:"indentation"`
}

func fileReadTool() Definition {
	return Definition{
		Name:        "file_read",
		Description: "Read a file with optional indentation-aware block extraction. Use mode='indentation' to extract code blocks based on indentation.",
		Params: []Param{
			{Name: "file_path", Type: "string", Description: "Absolute path to the file to read."},
			{Name: "offset", Type: "integer", Description: "1-indexed line number to start from (default: 1)."},
			{Name: "limit", Type: "integer", Description: "Maximum lines to return (default: 2000)."},
			{Name: "mode", Type: "string", Description: "Read mode: 'slice' (default) or 'indentation'."},
			{Name: "indentation", Type: "object", Description: "Indentation options: anchor_line, max_levels, max_lines, include_siblings, include_header."},
		},
		Required: []string{"file_path"},
		Executor: execFileRead,
	}
}

func execFileRead(_ context.Context, _ *Context, args map[string]any) (string, error) {
	a := fileReadArgs{Offset: 1, Limit: defaultReadLimit, Mode: "slice"}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Offset <= 0 {
		return "", RespondToModel("offset must be a 1-indexed line number")
	}
	if a.Limit <= 0 {
		return "", RespondToModel("limit must be greater than zero")
	}
	if !filepath.IsAbs(a.FilePath) {
		return "", RespondToModel("file_path must be an absolute path")
	}

	var (
		out []string
		err error
	)
	switch a.Mode {
	case "", "slice":
		out, err = readSlice(a.FilePath, a.Offset, a.Limit)
	case "indentation":
		opts := indentationArgs{IncludeHeader: true}
		if a.Indentation != nil {
			opts = *a.Indentation
		}
		out, err = readIndentation(a.FilePath, a.Offset, a.Limit, opts)
	default:
		return "", InvalidArgs("unknown mode %q (want slice|indentation)", a.Mode)
	}
	if err != nil {
		return "", err
	}
	return strings.Join(out, "\n"), nil
}

func readLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Execution("%v", err)
	}
	return splitLines(string(b)), nil
}

// splitLines splits on \n, drops one trailing empty line and strips \r.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func readSlice(path string, offset, limit int) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if offset > len(lines) {
		return nil, RespondToModel("offset exceeds file length")
	}
	start := offset - 1
	end := min(start+limit, len(lines))
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, formatLine(i+1, lines[i]))
	}
	return out, nil
}

func readIndentation(path string, offset, limit int, opts indentationArgs) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	anchor := offset
	if opts.AnchorLine != nil {
		anchor = *opts.AnchorLine
	}
	if anchor <= 0 || anchor > len(lines) {
		return nil, RespondToModel("anchor_line exceeds file length")
	}
	anchorIdx := anchor - 1

	indents := effectiveIndents(lines)
	floor := 0
	if opts.MaxLevels > 0 {
		floor = max(0, indents[anchorIdx]-opts.MaxLevels*tabWidth)
	}

	final := limit
	if opts.MaxLines != nil && *opts.MaxLines < final {
		final = *opts.MaxLines
	}
	final = min(final, len(lines))
	if final <= 1 {
		return []string{formatLine(anchor, lines[anchorIdx])}, nil
	}

	lo, hi := anchorIdx, anchorIdx // inclusive window
	up, down := anchorIdx-1, anchorIdx+1
	for hi-lo+1 < final {
		progressed := false
		if up >= 0 {
			if indents[up] >= floor {
				lo = up
				up--
				progressed = true
			} else {
				up = -1
			}
		}
		if down < len(lines) && hi-lo+1 < final {
			if indents[down] >= floor {
				hi = down
				down++
				progressed = true
			} else {
				down = len(lines)
			}
		}
		if !progressed {
			break
		}
	}

	for lo < hi && strings.TrimSpace(lines[lo]) == "" {
		lo++
	}
	for hi > lo && strings.TrimSpace(lines[hi]) == "" {
		hi--
	}
	if strings.TrimSpace(lines[lo]) == "" {
		return nil, nil
	}

	out := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, formatLine(i+1, lines[i]))
	}
	return out, nil
}

func measureIndent(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += tabWidth
		default:
			return n
		}
	}
	return n
}

// effectiveIndents carries the previous indent across blank lines.
func effectiveIndents(lines []string) []int {
	out := make([]int, len(lines))
	prev := 0
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			prev = measureIndent(l)
		}
		out[i] = prev
	}
	return out
}

func formatLine(n int, line string) string {
	return fmt.Sprintf("L%d: %s", n, truncateLine(line))
}

func truncateLine(line string) string {
	if len(line) <= maxLineLength {
		return line
	}
	cut := maxLineLength
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}
