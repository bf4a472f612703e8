package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danshapiro/handrail/internal/changes"
	"github.com/danshapiro/handrail/internal/diff"
)

type OpKind int

const (
	OpAdd OpKind = iota + 1
	OpDelete
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// PatchOp is one structured file edit. For updates, Context locates the edit,
// Remove names lines dropped after it and Content is inserted in their place.
// With neither Context nor Remove, Content is appended.
type PatchOp struct {
	Kind    OpKind
	Path    string
	NewPath string
	Context *string
	Remove  *string
	Content string
}

type Patch struct {
	Ops []PatchOp
}

type jsonPatchOp struct {
	Path      string  `json:"path"`
	Operation string  `json:"operation"`
	Content   *string `json:"content"`
	Context   *string `json:"context"`
	Remove    *string `json:"remove"`
	NewPath   *string `json:"new_path"`
}

func patchTool() Definition {
	return Definition{
		Name:        "patch",
		Description: "Apply file modifications. Accepts a JSON 'patches' array, freeform text starting with '*** Begin Patch', or a unified diff.",
		Params: []Param{
			{Name: "patches", Type: "array|string", Description: "Array of patch operations (path, operation add|update|delete, content, context, remove, new_path) or patch text."},
			{Name: "input", Type: "array|string", Description: "Alternative to 'patches' when the arguments are a bare array or string."},
		},
		Executor: execPatch,
	}
}

func execPatch(_ context.Context, tc *Context, args map[string]any) (string, error) {
	raw, ok := args["patches"]
	if !ok {
		raw, ok = args["input"]
	}
	if !ok {
		return "", InvalidArgs("Expected 'patches' array or freeform text")
	}

	var (
		p   Patch
		err error
	)
	switch v := raw.(type) {
	case string:
		if looksLikeUnifiedDiff(v) {
			g := changes.NewGroup("patch", "unified diff")
			out, err := applyUnifiedDiff(v, tc, g)
			record(tc, g)
			return out, err
		}
		p, err = ParseFreeform(v)
	case []any:
		p, err = parseJSONPatches(v)
	default:
		return "", InvalidArgs("Invalid patch format")
	}
	if err != nil {
		return "", err
	}
	g := changes.NewGroup("patch", describePatch(p))
	out, err := ApplyPatch(p, tc, g)
	record(tc, g)
	return out, err
}

func record(tc *Context, g *changes.Group) {
	if tc.Tracker == nil || g.Empty() {
		return
	}
	tc.Tracker.AddGroup(g)
	tc.logger().Debug("change group recorded", "group", g.ID, "files", len(g.Changes))
}

func describePatch(p Patch) string {
	parts := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		parts = append(parts, op.Kind.String()+" "+op.Path)
	}
	return strings.Join(parts, ", ")
}

func parseJSONPatches(items []any) (Patch, error) {
	var ops []jsonPatchOp
	if err := decodeValue(items, &ops); err != nil {
		return Patch{}, InvalidArgs("Invalid JSON patch format: %v", err)
	}
	p := Patch{Ops: make([]PatchOp, 0, len(ops))}
	for _, o := range ops {
		if strings.TrimSpace(o.Path) == "" {
			return Patch{}, InvalidArgs("patch operation requires 'path'")
		}
		switch o.Operation {
		case "add":
			if o.Content == nil {
				return Patch{}, InvalidArgs("'add' operation requires 'content'")
			}
			p.Ops = append(p.Ops, PatchOp{Kind: OpAdd, Path: o.Path, Content: *o.Content})
		case "delete":
			p.Ops = append(p.Ops, PatchOp{Kind: OpDelete, Path: o.Path})
		case "update":
			op := PatchOp{Kind: OpUpdate, Path: o.Path, Context: o.Context, Remove: o.Remove}
			if o.Content != nil {
				op.Content = *o.Content
			}
			if o.NewPath != nil {
				op.NewPath = *o.NewPath
			}
			p.Ops = append(p.Ops, op)
		default:
			return Patch{}, InvalidArgs("Unknown operation: %s. Use 'add', 'update', or 'delete'", o.Operation)
		}
	}
	return p, nil
}

// ApplyPatch applies ops in order, stopping at the first failure. Every file
// touched before that point is recorded in g.
func ApplyPatch(p Patch, tc *Context, g *changes.Group) (string, error) {
	results := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		var (
			msg string
			err error
		)
		switch op.Kind {
		case OpAdd:
			msg, err = applyAdd(op, tc, g)
		case OpDelete:
			msg, err = applyDelete(op, tc, g)
		case OpUpdate:
			msg, err = applyUpdate(op, tc, g)
		default:
			err = InvalidArgs("unknown patch operation %d", op.Kind)
		}
		if err != nil {
			return "", err
		}
		results = append(results, msg)
	}
	return strings.Join(results, "\n"), nil
}

func applyAdd(op PatchOp, tc *Context, g *changes.Group) (string, error) {
	full := tc.resolve(op.Path)
	if !tc.IsWriteAllowed(full) {
		return "", Denied("Write not allowed to: %s", full)
	}
	prior, existed, err := readExisting(full)
	if err != nil {
		return "", Execution("Failed to read file: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", Execution("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(full, []byte(op.Content), 0o644); err != nil {
		return "", Execution("Failed to write file: %v", err)
	}
	if existed {
		g.Modified(full, prior)
	} else {
		g.Created(full)
	}
	return "Added file: " + full, nil
}

func applyDelete(op PatchOp, tc *Context, g *changes.Group) (string, error) {
	full := tc.resolve(op.Path)
	if !tc.IsWriteAllowed(full) {
		return "", Denied("Delete not allowed for: %s", full)
	}
	prior, existed, err := readExisting(full)
	if err != nil {
		return "", Execution("Failed to read file: %v", err)
	}
	if !existed {
		return "", RespondToModel("File does not exist: %s", full)
	}
	if err := os.Remove(full); err != nil {
		return "", Execution("Failed to delete file: %v", err)
	}
	g.Deleted(full, prior)
	return "Deleted file: " + full, nil
}

func applyUpdate(op PatchOp, tc *Context, g *changes.Group) (string, error) {
	full := tc.resolve(op.Path)
	if !tc.IsWriteAllowed(full) {
		return "", Denied("Write not allowed to: %s", full)
	}
	current, err := os.ReadFile(full)
	if err != nil {
		return "", Execution("Failed to read file: %v", err)
	}
	updated := ApplyModification(string(current), op.Context, op.Remove, op.Content)

	if op.NewPath == "" {
		if err := os.WriteFile(full, []byte(updated), fileMode(full)); err != nil {
			return "", Execution("Failed to write file: %v", err)
		}
		g.Modified(full, current)
		return "Updated file: " + full, nil
	}

	target := tc.resolve(op.NewPath)
	if !tc.IsWriteAllowed(target) {
		return "", Denied("Write not allowed to: %s", target)
	}
	targetPrior, targetExisted, err := readExisting(target)
	if err != nil {
		return "", Execution("Failed to read file: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", Execution("Failed to create directory: %v", err)
	}
	mode := fileMode(full)
	if err := os.Remove(full); err != nil {
		return "", Execution("Failed to remove old file: %v", err)
	}
	if targetExisted {
		g.Deleted(full, current)
		g.Modified(target, targetPrior)
	} else {
		g.Renamed(full, target, current)
	}
	if err := os.WriteFile(target, []byte(updated), mode); err != nil {
		return "", Execution("Failed to write file: %v", err)
	}
	return fmt.Sprintf("Updated and moved: %s -> %s", full, target), nil
}

// ApplyModification edits content around the first block of lines matching
// ctxText (each file line must contain the trimmed context line). Lines after
// the context that contain the trimmed remove lines are dropped, then add is
// inserted. Unmatched context appends add at the end. A trailing newline on
// content is kept.
func ApplyModification(content string, ctxText, remove *string, add string) string {
	if ctxText == nil && remove == nil {
		out := content
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		return out + add
	}

	lines := splitLines(content)
	var ctxLines, remLines []string
	if ctxText != nil {
		ctxLines = splitLines(*ctxText)
	}
	if remove != nil {
		remLines = splitLines(*remove)
	}
	addLines := splitLines(add)

	out := make([]string, 0, len(lines)+len(addLines))
	matched := false
	for i := 0; i < len(lines); {
		if !contextAt(lines, i, ctxLines) {
			out = append(out, lines[i])
			i++
			continue
		}
		out = append(out, lines[i:i+len(ctxLines)]...)
		i += len(ctxLines)
		for _, rem := range remLines {
			if i < len(lines) && strings.Contains(lines[i], strings.TrimSpace(rem)) {
				i++
			}
		}
		out = append(out, addLines...)
		out = append(out, lines[i:]...)
		matched = true
		break
	}
	if !matched {
		out = append(out, addLines...)
	}

	result := strings.Join(out, "\n")
	if strings.HasSuffix(content, "\n") && result != "" {
		result += "\n"
	}
	return result
}

func contextAt(lines []string, i int, ctx []string) bool {
	if i+len(ctx) > len(lines) {
		return false
	}
	for j, c := range ctx {
		if !strings.Contains(lines[i+j], strings.TrimSpace(c)) {
			return false
		}
	}
	return true
}

func readExisting(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func fileMode(path string) os.FileMode {
	if st, err := os.Stat(path); err == nil {
		return st.Mode().Perm()
	}
	return 0o644
}

func looksLikeUnifiedDiff(s string) bool {
	if strings.Contains(s, beginPatchMarker) {
		return false
	}
	t := strings.TrimLeft(s, "\n")
	return strings.HasPrefix(t, "--- ") || strings.HasPrefix(t, "diff --git ") ||
		(strings.Contains(s, "\n--- ") && strings.Contains(s, "\n@@ "))
}

// applyUnifiedDiff accepts every hunk of a unified diff and writes it under
// the working directory. Originals are recorded in g; the .bak files the
// applier leaves behind are recorded as created.
func applyUnifiedDiff(text string, tc *Context, g *changes.Group) (string, error) {
	view, err := diff.Parse(text)
	if err != nil {
		return "", InvalidArgs("%v", err)
	}
	view.AcceptAll()
	base := tc.workingDir()

	type snapshot struct {
		prior      []byte
		existed    bool
		bakExisted bool
	}
	snaps := map[string]snapshot{}
	for i := range view.Files {
		p, err := diff.TargetPath(&view.Files[i], base)
		if err != nil {
			return "", InvalidArgs("%v", err)
		}
		if !tc.IsWriteAllowed(p) {
			return "", Denied("Write not allowed to: %s", p)
		}
		prior, existed, err := readExisting(p)
		if err != nil {
			return "", Execution("Failed to read file: %v", err)
		}
		_, bakErr := os.Lstat(p + ".bak")
		snaps[p] = snapshot{prior: prior, existed: existed, bakExisted: bakErr == nil}
	}

	written, applyErr := diff.Apply(view, base)
	for _, p := range written {
		s := snaps[p]
		if !s.existed {
			g.Created(p)
			continue
		}
		g.Modified(p, s.prior)
		if !s.bakExisted {
			g.Created(p + ".bak")
		}
	}
	if applyErr != nil {
		if errors.Is(applyErr, diff.ErrContextMismatch) || errors.Is(applyErr, diff.ErrNothingToApply) {
			return "", RespondToModel("%v", applyErr)
		}
		return "", Execution("%v", applyErr)
	}

	files, added, removed := view.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "Applied diff to %d file(s) (+%d -%d)", files, added, removed)
	for _, p := range written {
		b.WriteString("\nUpdated file: " + p)
	}
	return b.String(), nil
}
