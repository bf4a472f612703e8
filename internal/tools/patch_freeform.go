package tools

import (
	"fmt"
	"strings"
)

const (
	beginPatchMarker = "*** Begin Patch"
	endPatchMarker   = "*** End Patch"
	addFilePrefix    = "*** Add File: "
	deleteFilePrefix = "*** Delete File: "
	updateFilePrefix = "*** Update File: "
	moveToPrefix     = "*** Move to: "
	endOfFileMarker  = "*** End of File"
)

// ParseFreeform parses the "*** Begin Patch" envelope format:
//
//	*** Begin Patch
//	*** Add File: path
//	+line
//	*** Update File: path
//	*** Move to: other
//	@@ context
//	 context
//	-removed
//	+added
//	*** Delete File: path
//	*** End Patch
func ParseFreeform(input string) (Patch, error) {
	if !strings.Contains(input, beginPatchMarker) {
		return Patch{}, InvalidArgs("Freeform patch must start with '%s'", beginPatchMarker)
	}
	lines := splitLines(input)
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) != beginPatchMarker {
		i++
	}
	if i == len(lines) {
		return Patch{}, InvalidArgs("Failed to parse patch: '%s' must be on its own line", beginPatchMarker)
	}
	i++

	var (
		p      Patch
		cur    *PatchOp
		add    []string
		ctx    []string
		remove []string
	)
	flush := func() {
		if cur == nil {
			return
		}
		switch cur.Kind {
		case OpAdd:
			cur.Content = strings.Join(add, "\n")
		case OpUpdate:
			if len(ctx) > 0 {
				s := strings.Join(ctx, "\n")
				cur.Context = &s
			}
			if len(remove) > 0 {
				s := strings.Join(remove, "\n")
				cur.Remove = &s
			}
			cur.Content = strings.Join(add, "\n")
		}
		p.Ops = append(p.Ops, *cur)
		cur, add, ctx, remove = nil, nil, nil, nil
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.TrimSpace(line) == endPatchMarker:
			flush()
			return p, nil
		case strings.HasPrefix(line, addFilePrefix):
			flush()
			cur = &PatchOp{Kind: OpAdd, Path: strings.TrimSpace(strings.TrimPrefix(line, addFilePrefix))}
		case strings.HasPrefix(line, deleteFilePrefix):
			flush()
			cur = &PatchOp{Kind: OpDelete, Path: strings.TrimSpace(strings.TrimPrefix(line, deleteFilePrefix))}
		case strings.HasPrefix(line, updateFilePrefix):
			flush()
			cur = &PatchOp{Kind: OpUpdate, Path: strings.TrimSpace(strings.TrimPrefix(line, updateFilePrefix))}
		case cur == nil:
			if strings.TrimSpace(line) == "" {
				continue
			}
			return Patch{}, InvalidArgs("Failed to parse patch: line %d: expected a file header, got %q", i+1, line)
		case cur.Kind == OpAdd:
			if !strings.HasPrefix(line, "+") {
				return Patch{}, InvalidArgs("Failed to parse patch: line %d: added file lines must start with '+'", i+1)
			}
			add = append(add, line[1:])
		case cur.Kind == OpDelete:
			if strings.TrimSpace(line) != "" {
				return Patch{}, InvalidArgs("Failed to parse patch: line %d: unexpected content after delete", i+1)
			}
		default:
			if err := parseUpdateLine(cur, line, &ctx, &remove, &add); err != nil {
				return Patch{}, InvalidArgs("Failed to parse patch: line %d: %v", i+1, err)
			}
		}
	}
	return Patch{}, InvalidArgs("Failed to parse patch: missing '%s'", endPatchMarker)
}

func parseUpdateLine(cur *PatchOp, line string, ctx, remove, add *[]string) error {
	switch {
	case strings.HasPrefix(line, moveToPrefix):
		cur.NewPath = strings.TrimSpace(strings.TrimPrefix(line, moveToPrefix))
	case line == endOfFileMarker:
	case strings.HasPrefix(line, "@@"):
		if header := strings.TrimSpace(strings.TrimPrefix(line, "@@")); header != "" {
			*ctx = append(*ctx, header)
		}
	case line == "":
		*ctx = append(*ctx, "")
	case line[0] == ' ':
		*ctx = append(*ctx, line[1:])
	case line[0] == '-':
		*remove = append(*remove, line[1:])
	case line[0] == '+':
		*add = append(*add, line[1:])
	default:
		return fmt.Errorf("unexpected line %q", line)
	}
	return nil
}
