package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	defaultLsLimit = 25
	defaultLsDepth = 2
	maxEntryLength = 500
	indentSpaces   = 2
)

type lsArgs struct {
	DirPath string `json:"dir_path"`
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit"`
	Depth   int    `json:"depth"`
}

type dirEntry struct {
	name  string
	depth int
	mode  fs.FileMode
}

func (e dirEntry) String() string {
	suffix := ""
	switch {
	case e.mode&fs.ModeSymlink != 0:
		suffix = "@"
	case e.mode.IsDir():
		suffix = "/"
	case !e.mode.IsRegular():
		suffix = "?"
	}
	return strings.Repeat(" ", e.depth*indentSpaces) + e.name + suffix
}

func lsTool() Definition {
	return Definition{
		Name:        "ls",
		Description: "List directory contents with recursive traversal. Returns file names with type indicators (/ for dirs, @ for symlinks).",
		Params: []Param{
			{Name: "dir_path", Type: "string", Description: "Absolute path to the directory to list."},
			{Name: "offset", Type: "integer", Description: "1-indexed entry number to start from (default: 1)."},
			{Name: "limit", Type: "integer", Description: "Maximum entries to return (default: 25)."},
			{Name: "depth", Type: "integer", Description: "Maximum directory depth (default: 2)."},
		},
		Required: []string{"dir_path"},
		Executor: execLs,
	}
}

func execLs(_ context.Context, _ *Context, args map[string]any) (string, error) {
	a := lsArgs{Offset: 1, Limit: defaultLsLimit, Depth: defaultLsDepth}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	switch {
	case a.Offset <= 0:
		return "", RespondToModel("offset must be a 1-indexed entry number")
	case a.Limit <= 0:
		return "", RespondToModel("limit must be greater than zero")
	case a.Depth <= 0:
		return "", RespondToModel("depth must be greater than zero")
	}
	if !filepath.IsAbs(a.DirPath) {
		return "", RespondToModel("dir_path must be an absolute path")
	}
	if st, err := os.Stat(a.DirPath); err != nil || !st.IsDir() {
		return "", RespondToModel("dir_path is not a directory")
	}

	entries, err := collectEntries(a.DirPath, a.Depth)
	if err != nil {
		return "", err
	}
	lines := []string{"Absolute path: " + a.DirPath}
	if len(entries) == 0 {
		return lines[0], nil
	}
	start := a.Offset - 1
	if start >= len(entries) {
		return "", RespondToModel("offset exceeds entry count")
	}
	end := min(start+a.Limit, len(entries))
	for _, e := range entries[start:end] {
		lines = append(lines, e.String())
	}
	if end < len(entries) {
		lines = append(lines, fmt.Sprintf("More than %d entries found", a.Limit))
	}
	return strings.Join(lines, "\n"), nil
}

// collectEntries walks breadth first. Within a directory entries are sorted
// by name; symlinks are listed but never followed.
func collectEntries(root string, maxDepth int) ([]dirEntry, error) {
	type pending struct {
		dir   string
		depth int
		left  int
	}
	var out []dirEntry
	queue := []pending{{dir: root, depth: 0, left: maxDepth}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		des, err := os.ReadDir(cur.dir)
		if err != nil {
			return nil, Execution("Failed to read dir: %v", err)
		}
		sort.Slice(des, func(i, j int) bool { return des[i].Name() < des[j].Name() })
		for _, de := range des {
			name := de.Name()
			out = append(out, dirEntry{name: truncateName(name), depth: cur.depth, mode: de.Type()})
			if de.IsDir() && cur.left > 1 {
				queue = append(queue, pending{dir: filepath.Join(cur.dir, name), depth: cur.depth + 1, left: cur.left - 1})
			}
		}
	}
	return out, nil
}

func truncateName(name string) string {
	if len(name) <= maxEntryLength {
		return name
	}
	return truncateLine(name)
}
