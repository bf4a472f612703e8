// Package sandbox holds the advisory permission model consulted by tool
// executors before they touch the filesystem or run commands. Nothing here is
// enforced by the kernel.
package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Level string

const (
	LevelReadOnly       Level = "read_only"
	LevelWorkspaceWrite Level = "workspace_write"
	LevelFullAccess     Level = "full_access"
)

// ParseLevel accepts the snake_case config spelling and a few dashed aliases.
// An empty string yields the default (workspace_write).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "":
		return LevelWorkspaceWrite, nil
	case "read_only", "readonly":
		return LevelReadOnly, nil
	case "workspace_write", "workspace":
		return LevelWorkspaceWrite, nil
	case "full_access", "full":
		return LevelFullAccess, nil
	default:
		return "", fmt.Errorf("invalid sandbox level: %q (want read_only|workspace_write|full_access)", s)
	}
}

func (l Level) AllowsWrite() bool {
	return l == LevelWorkspaceWrite || l == LevelFullAccess
}

func (l Level) AllowsOutsideWorkspace() bool {
	return l == LevelFullAccess
}

type Permissions struct {
	Level Level
	// WorkspaceRoot bounds writes under LevelWorkspaceWrite. Empty means
	// unbounded.
	WorkspaceRoot string
}

// Default returns workspace_write with no root.
func Default() Permissions {
	return Permissions{Level: LevelWorkspaceWrite}
}

func New(level Level) Permissions {
	return Permissions{Level: level}
}

func (p Permissions) WithWorkspace(root string) Permissions {
	p.WorkspaceRoot = root
	return p
}

// IsWriteAllowed reports whether path may be created, modified or removed.
// The comparison is lexical: both sides are cleaned but symlinks are not
// resolved.
func (p Permissions) IsWriteAllowed(path string) bool {
	switch p.Level {
	case LevelReadOnly:
		return false
	case LevelFullAccess:
		return true
	case LevelWorkspaceWrite, "":
		root := strings.TrimSpace(p.WorkspaceRoot)
		if root == "" {
			return true
		}
		return withinRoot(filepath.Clean(root), filepath.Clean(path))
	default:
		return false
	}
}

func withinRoot(root, path string) bool {
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

func (p Permissions) String() string {
	lvl := p.Level
	if lvl == "" {
		lvl = LevelWorkspaceWrite
	}
	if p.WorkspaceRoot == "" {
		return string(lvl)
	}
	return fmt.Sprintf("%s(%s)", lvl, p.WorkspaceRoot)
}
