package diff

import (
	"fmt"
	"strconv"
	"strings"
)

const noNewlineMarker = `\ No newline at end of file`

// Parse reads unified diff text. Lines outside of a hunk that are not file or
// hunk headers (git extended headers, commentary) are ignored.
func Parse(input string) (*View, error) {
	view := &View{}
	cur := -1
	var pendingOld *string
	// Remaining line budget of the current hunk per its header. While either
	// side still expects lines, a lone "--- " or "+++ " line is hunk body. A
	// "--- " line directly followed by "+++ " always starts a new file, so a
	// hunk that overstates its counts cannot swallow the next file.
	remOld, remNew := 0, 0

	lines := splitLines(input)
	for i, line := range lines {
		inBody := cur >= 0 && len(view.Files[cur].Hunks) > 0 && (remOld > 0 || remNew > 0)
		if inBody && isFileHeaderPair(lines, i) {
			inBody = false
			remOld, remNew = 0, 0
		}
		if !inBody {
			if rest, ok := strings.CutPrefix(line, "--- "); ok {
				p := cleanPath(rest)
				pendingOld = &p
				continue
			}
			if rest, ok := strings.CutPrefix(line, "+++ "); ok {
				if pendingOld == nil {
					return nil, ErrMissingFileHeader
				}
				view.Files = append(view.Files, File{OldPath: *pendingOld, NewPath: cleanPath(rest)})
				pendingOld = nil
				cur = len(view.Files) - 1
				continue
			}
		}
		if strings.HasPrefix(line, "@@") {
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			if cur < 0 {
				return nil, ErrMissingFileHeader
			}
			view.Files[cur].Hunks = append(view.Files[cur].Hunks, h)
			remOld, remNew = h.OldLines, h.NewLines
			continue
		}
		if cur < 0 || len(view.Files[cur].Hunks) == 0 {
			continue
		}
		hunk := &view.Files[cur].Hunks[len(view.Files[cur].Hunks)-1]
		if line == noNewlineMarker || strings.HasPrefix(line, `\ `) {
			if n := len(hunk.Lines); n > 0 {
				hunk.Lines[n-1].NoNewline = true
			}
			continue
		}
		l, ok := parseBodyLine(line)
		if !ok {
			if inBody && line == "" && remOld > 0 && remNew > 0 {
				// Editors strip the lone space of blank context lines.
				l, ok = Line{Kind: LineContext}, true
			} else {
				// The hunk ended short of its header counts.
				remOld, remNew = 0, 0
				continue
			}
		}
		hunk.Lines = append(hunk.Lines, l)
		switch l.Kind {
		case LineContext:
			remOld--
			remNew--
		case LineRemove:
			remOld--
		case LineAdd:
			remNew--
		}
	}

	if len(view.Files) == 0 {
		return nil, ErrEmptyDiff
	}
	return view, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// parseHunkHeader reads "@@ -a[,b] +c[,d] @@ [section]".
func isFileHeaderPair(lines []string, i int) bool {
	return strings.HasPrefix(lines[i], "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
}

func parseHunkHeader(line string) (Hunk, error) {
	bad := func() (Hunk, error) {
		return Hunk{}, fmt.Errorf("%w: %s", ErrInvalidHunkHeader, line)
	}
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "@@")
	if !ok {
		return bad()
	}
	end := strings.Index(rest, "@@")
	if end < 0 {
		return bad()
	}
	parts := strings.Fields(rest[:end])
	if len(parts) < 2 {
		return bad()
	}
	oldStart, oldLines, ok := parseRange(parts[0], '-')
	if !ok {
		return bad()
	}
	newStart, newLines, ok := parseRange(parts[1], '+')
	if !ok {
		return bad()
	}
	return Hunk{
		Header:   line,
		OldStart: oldStart,
		OldLines: oldLines,
		NewStart: newStart,
		NewLines: newLines,
		Decision: DecisionPending,
	}, nil
}

// parseRange reads "-start[,count]". A missing count means 1.
func parseRange(tok string, prefix byte) (start, count int, ok bool) {
	if len(tok) < 2 || tok[0] != prefix {
		return 0, 0, false
	}
	startStr, countStr, hasCount := strings.Cut(tok[1:], ",")
	start, err := strconv.Atoi(startStr)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	count = 1
	if hasCount {
		count, err = strconv.Atoi(countStr)
		if err != nil || count < 0 {
			return 0, 0, false
		}
	}
	return start, count, true
}

func parseBodyLine(line string) (Line, bool) {
	if line == "" {
		return Line{}, false
	}
	var kind LineKind
	switch line[0] {
	case '+':
		kind = LineAdd
	case '-':
		kind = LineRemove
	case ' ':
		kind = LineContext
	default:
		return Line{}, false
	}
	return Line{Kind: kind, Content: line[1:]}, true
}

// cleanPath drops a trailing timestamp and a single git a/ or b/ prefix.
func cleanPath(raw string) string {
	p := raw
	if i := strings.IndexByte(p, '\t'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == DevNull {
		return p
	}
	if rest, ok := strings.CutPrefix(p, "a/"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(p, "b/"); ok {
		return rest
	}
	return p
}
