package changes

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/danshapiro/handrail/internal/diff"
)

const DefaultMaxGroups = 100

var ErrNoChanges = errors.New("no changes to rollback")

// Tracker keeps the most recent change groups, evicting the oldest once
// MaxGroups is exceeded. It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	groups    []*Group
	maxGroups int
}

func New(maxGroups int) *Tracker {
	if maxGroups <= 0 {
		maxGroups = DefaultMaxGroups
	}
	return &Tracker{maxGroups: maxGroups}
}

// AddGroup records g. Empty groups are dropped.
func (t *Tracker) AddGroup(g *Group) {
	if g.Empty() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups = append(t.groups, g)
	if over := len(t.groups) - t.maxGroups; over > 0 {
		t.groups = append([]*Group(nil), t.groups[over:]...)
	}
}

func (t *Tracker) RecordCreate(path, tool, description string) {
	g := NewGroup(tool, description)
	g.Created(path)
	t.AddGroup(g)
}

func (t *Tracker) RecordModify(path string, original []byte, tool, description string) {
	g := NewGroup(tool, description)
	g.Modified(path, original)
	t.AddGroup(g)
}

func (t *Tracker) RecordDelete(path string, original []byte, tool, description string) {
	g := NewGroup(tool, description)
	g.Deleted(path, original)
	t.AddGroup(g)
}

// Rollback undoes the newest count groups, newest first, reversing each
// group's changes in reverse order. Failures are collected per file and do
// not stop the remaining changes.
func (t *Tracker) Rollback(count int) (*RollbackResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.groups) == 0 {
		return nil, ErrNoChanges
	}
	if count <= 0 {
		count = 1
	}
	count = min(count, len(t.groups))

	res := &RollbackResult{}
	for i := 0; i < count; i++ {
		g := t.groups[len(t.groups)-1]
		t.groups = t.groups[:len(t.groups)-1]
		for j := len(g.Changes) - 1; j >= 0; j-- {
			c := g.Changes[j]
			if err := revert(c); err != nil {
				res.Errors = append(res.Errors, FileError{Path: c.Path, Err: err})
				continue
			}
			res.Restored = append(res.Restored, restoredPath(c))
		}
		res.Groups = append(res.Groups, g.Tool)
	}
	return res, nil
}

// Preview renders, as unified diffs, what Rollback(count) would do to the
// files on disk without changing anything.
func (t *Tracker) Preview(count int) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.groups) == 0 {
		return "", ErrNoChanges
	}
	if count <= 0 {
		count = 1
	}
	count = min(count, len(t.groups))

	var b strings.Builder
	for i := 0; i < count; i++ {
		g := t.groups[len(t.groups)-1-i]
		for j := len(g.Changes) - 1; j >= 0; j-- {
			b.WriteString(previewChange(g.Changes[j]))
		}
	}
	return b.String(), nil
}

func previewChange(c FileChange) string {
	cur, _ := os.ReadFile(c.Path)
	name := filepath.Base(c.Path)
	switch c.Kind {
	case Created:
		return diff.Unified(name, name, string(cur), "", diff.DefaultContext)
	case Renamed:
		from := filepath.Base(c.From)
		return diff.Unified(name, name, string(cur), "", diff.DefaultContext) +
			diff.Unified(from, from, "", string(c.Original), diff.DefaultContext)
	default:
		return diff.Unified(name, name, string(cur), string(c.Original), diff.DefaultContext)
	}
}

func (t *Tracker) Summary() []Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Summary, 0, len(t.groups))
	for i, g := range t.groups {
		out = append(out, Summary{
			Index:       i,
			ID:          g.ID,
			Tool:        g.Tool,
			Description: g.Description,
			FileCount:   len(g.Changes),
			Timestamp:   g.Timestamp,
		})
	}
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.groups)
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups = nil
}

func restoredPath(c FileChange) string {
	if c.Kind == Renamed {
		return c.From
	}
	return c.Path
}

func revert(c FileChange) error {
	switch c.Kind {
	case Created:
		if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	case Modified:
		if c.Original == nil {
			return errors.New("no original content recorded")
		}
		if cur, err := os.ReadFile(c.Path); err == nil && bytes.Equal(cur, c.Original) {
			return nil
		}
		if err := os.WriteFile(c.Path, c.Original, 0o644); err != nil {
			return fmt.Errorf("failed to restore file: %w", err)
		}
		return nil
	case Deleted:
		if c.Original == nil {
			return errors.New("no original content recorded")
		}
		return restoreTo(c.Path, c.Original)
	case Renamed:
		if c.Original == nil {
			return errors.New("no original content recorded")
		}
		if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete: %w", err)
		}
		return restoreTo(c.From, c.Original)
	default:
		return fmt.Errorf("unknown change kind %d", c.Kind)
	}
}

func restoreTo(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to restore file: %w", err)
	}
	return nil
}
