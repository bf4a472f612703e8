package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

type lineOp struct {
	kind      opKind
	text      string
	noNewline bool
}

// Unified renders a unified diff turning a into b. It returns "" when the
// contents are identical. An empty a is rendered against /dev/null, an empty
// b likewise.
func Unified(oldName, newName, a, b string, context int) string {
	if a == b {
		return ""
	}
	if context < 0 {
		context = DefaultContext
	}
	ops := lineDiff(a, b)

	oldHeader, newHeader := "a/"+oldName, "b/"+newName
	if a == "" {
		oldHeader = DevNull
	}
	if b == "" {
		newHeader = DevNull
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldHeader, newHeader)

	for _, g := range groupChanges(ops, context) {
		writeHunk(&sb, ops, g[0], g[1])
	}
	return sb.String()
}

func lineDiff(a, b string) []lineOp {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var ops []lineOp
	for _, d := range diffs {
		var k opKind
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			k = opDelete
		case diffmatchpatch.DiffInsert:
			k = opInsert
		default:
			k = opEqual
		}
		text := d.Text
		for text != "" {
			line, rest, found := strings.Cut(text, "\n")
			ops = append(ops, lineOp{kind: k, text: line, noNewline: !found})
			text = rest
		}
	}
	return ops
}

// groupChanges returns [start,end) op ranges, each a hunk with context
// padding. Changes closer than 2*context lines share a hunk.
func groupChanges(ops []lineOp, context int) [][2]int {
	var groups [][2]int
	for i := 0; i < len(ops); {
		if ops[i].kind == opEqual {
			i++
			continue
		}
		start := max(0, i-context)
		end := i
		for end < len(ops) {
			if ops[end].kind != opEqual {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].kind == opEqual {
				run++
			}
			if run == len(ops) || run-end > 2*context {
				end = min(len(ops), end+context)
				break
			}
			end = run
		}
		if n := len(groups); n > 0 && start <= groups[n-1][1] {
			groups[n-1][1] = end
		} else {
			groups = append(groups, [2]int{start, end})
		}
		i = end
	}
	return groups
}

func writeHunk(sb *strings.Builder, ops []lineOp, start, end int) {
	oldLine, newLine := 1, 1
	for _, op := range ops[:start] {
		if op.kind != opInsert {
			oldLine++
		}
		if op.kind != opDelete {
			newLine++
		}
	}
	oldCount, newCount := 0, 0
	for _, op := range ops[start:end] {
		if op.kind != opInsert {
			oldCount++
		}
		if op.kind != opDelete {
			newCount++
		}
	}
	if oldCount == 0 {
		oldLine--
	}
	if newCount == 0 {
		newLine--
	}
	fmt.Fprintf(sb, "@@ -%s +%s @@\n", hunkRange(oldLine, oldCount), hunkRange(newLine, newCount))
	for _, op := range ops[start:end] {
		prefix := " "
		switch op.kind {
		case opDelete:
			prefix = "-"
		case opInsert:
			prefix = "+"
		}
		sb.WriteString(prefix + op.text + "\n")
		if op.noNewline {
			sb.WriteString(noNewlineMarker + "\n")
		}
	}
}

func hunkRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
