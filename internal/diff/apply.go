package diff

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Apply writes every file in view that has at least one accepted hunk,
// resolving diff paths against baseDir. It returns the written paths in diff
// order. A file whose hunks do not match its current content is not written
// and aborts the remaining files.
func Apply(view *View, baseDir string) ([]string, error) {
	if view == nil {
		return nil, ErrNothingToApply
	}
	var written []string
	found := false
	for i := range view.Files {
		f := &view.Files[i]
		if !f.HasAccepted() {
			continue
		}
		found = true
		p, err := applyFile(f, baseDir)
		if err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if !found {
		return nil, ErrNothingToApply
	}
	return written, nil
}

// TargetPath resolves the on-disk path f is written to under baseDir.
func TargetPath(f *File, baseDir string) (string, error) {
	var raw string
	switch {
	case f.NewPath != DevNull && f.NewPath != "":
		raw = f.NewPath
	case f.OldPath != DevNull && f.OldPath != "":
		raw = f.OldPath
	default:
		return "", ErrMissingFile
	}
	rel, err := sanitizePath(raw)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, rel), nil
}

func sanitizePath(raw string) (string, error) {
	if filepath.IsAbs(raw) || strings.HasPrefix(raw, "/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, raw)
	}
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, raw)
		}
	}
	return filepath.Clean(raw), nil
}

// Render computes the post-patch content of f from original without touching
// the filesystem.
func Render(f *File, original string) (string, error) {
	lines, hadNewline := splitContent(original)
	out, newline, err := splice(f, lines, hadNewline)
	if err != nil {
		return "", err
	}
	return joinContent(out, newline), nil
}

func applyFile(f *File, baseDir string) (string, error) {
	full, err := TargetPath(f, baseDir)
	if err != nil {
		return "", err
	}
	b, existed, err := readIfExists(full)
	if err != nil {
		return "", &ApplyError{Path: full, Err: err}
	}
	lines, hadNewline := splitContent(string(b))
	out, newline, err := splice(f, lines, hadNewline)
	if err != nil {
		var ae *ApplyError
		if errors.As(err, &ae) {
			ae.Path = full
			return "", ae
		}
		return "", &ApplyError{Path: full, Err: err}
	}
	if existed {
		if err := os.WriteFile(full+".bak", b, 0o644); err != nil {
			return "", &ApplyError{Path: full, Err: fmt.Errorf("backup: %w", err)}
		}
	} else if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &ApplyError{Path: full, Err: err}
	}
	mode := fs.FileMode(0o644)
	if st, err := os.Stat(full); err == nil {
		mode = st.Mode().Perm()
	}
	if err := os.WriteFile(full, []byte(joinContent(out, newline)), mode); err != nil {
		return "", &ApplyError{Path: full, Err: err}
	}
	return full, nil
}

// splice replays the accepted hunks of f over original in ascending
// OldStart order.
func splice(f *File, original []string, hadNewline bool) ([]string, bool, error) {
	var accepted []*Hunk
	for i := range f.Hunks {
		if f.Hunks[i].Decision == DecisionAccepted {
			accepted = append(accepted, &f.Hunks[i])
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].OldStart < accepted[j].OldStart })

	out := make([]string, 0, len(original))
	idx := 0
	newline := hadNewline
	for _, h := range accepted {
		start := h.OldStart - 1
		if h.OldLines == 0 {
			// "-N,0" inserts after line N.
			start = h.OldStart
		}
		if start < 0 {
			start = 0
		}
		if start > len(original) || start < idx {
			return nil, false, &ApplyError{Line: h.OldStart, Err: ErrContextMismatch}
		}
		out = append(out, original[idx:start]...)
		idx = start
		for _, l := range h.Lines {
			switch l.Kind {
			case LineContext:
				if idx >= len(original) || original[idx] != l.Content {
					return nil, false, &ApplyError{Line: idx + 1, Err: ErrContextMismatch}
				}
				out = append(out, original[idx])
				idx++
			case LineRemove:
				if idx >= len(original) || original[idx] != l.Content {
					return nil, false, &ApplyError{Line: idx + 1, Err: ErrContextMismatch}
				}
				idx++
			case LineAdd:
				out = append(out, l.Content)
			}
		}
		if idx == len(original) {
			if nl, ok := eofNewline(h, len(out) > 0); ok {
				newline = nl
			}
		}
	}
	out = append(out, original[idx:]...)
	return out, newline, nil
}

// eofNewline reports the new side's trailing-newline state for a hunk that
// consumed the end of the original. A new-side last line without a
// "\ No newline at end of file" marker ends in a newline.
func eofNewline(h *Hunk, haveOutput bool) (newline bool, ok bool) {
	if len(h.Lines) == 0 {
		return false, false
	}
	for i := len(h.Lines) - 1; i >= 0; i-- {
		if h.Lines[i].Kind != LineRemove {
			return !h.Lines[i].NoNewline, true
		}
	}
	// Only removals: whatever precedes the hunk was followed by a removed
	// line, so it kept its newline.
	return haveOutput, true
}

func readIfExists(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return b, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, err
}

func splitContent(s string) ([]string, bool) {
	if s == "" {
		return nil, false
	}
	hadNewline := strings.HasSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n"), hadNewline
}

func joinContent(lines []string, newline bool) string {
	s := strings.Join(lines, "\n")
	if newline && len(lines) > 0 {
		s += "\n"
	}
	return s
}
