package tools

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/danshapiro/handrail/internal/changes"
	"github.com/danshapiro/handrail/internal/sandbox"
)

// DefaultTimeoutMS is the per-call budget applied by NewContext.
const DefaultTimeoutMS = 5000

// Context carries the per-call environment. It is treated as immutable once a
// call starts; the With* helpers return modified copies.
type Context struct {
	WorkingDir string
	// TimeoutMS bounds a call's wall time. Zero means unbounded.
	TimeoutMS    int
	AllowedPaths []string
	Sandbox      sandbox.Permissions
	Tracker      *changes.Tracker
	Logger       *slog.Logger
}

func NewContext(workingDir string) *Context {
	return &Context{
		WorkingDir: workingDir,
		TimeoutMS:  DefaultTimeoutMS,
		Sandbox:    sandbox.Default(),
	}
}

func (c *Context) clone() *Context {
	cp := *c
	cp.AllowedPaths = append([]string(nil), c.AllowedPaths...)
	return &cp
}

func (c *Context) WithTimeout(ms int) *Context {
	cp := c.clone()
	cp.TimeoutMS = ms
	return cp
}

func (c *Context) WithAllowedPaths(paths []string) *Context {
	cp := c.clone()
	cp.AllowedPaths = append([]string(nil), paths...)
	return cp
}

func (c *Context) WithSandbox(p sandbox.Permissions) *Context {
	cp := c.clone()
	cp.Sandbox = p
	return cp
}

func (c *Context) WithTracker(t *changes.Tracker) *Context {
	cp := c.clone()
	cp.Tracker = t
	return cp
}

func (c *Context) WithLogger(l *slog.Logger) *Context {
	cp := c.clone()
	cp.Logger = l
	return cp
}

func (c *Context) IsWriteAllowed(path string) bool {
	return c.Sandbox.IsWriteAllowed(path)
}

func (c *Context) timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Context) workingDir() string {
	if c.WorkingDir != "" {
		return c.WorkingDir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// resolve joins relative paths onto the working directory.
func (c *Context) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.workingDir(), path)
}
