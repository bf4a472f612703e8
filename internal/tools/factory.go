package tools

import (
	"fmt"

	"github.com/danshapiro/handrail/internal/changes"
	"github.com/danshapiro/handrail/internal/config"
	"github.com/danshapiro/handrail/internal/pty"
)

// NewRegistryFromConfig registers the built-ins, filters them by
// cfg.Enabled and then layers user tools from cfg.UserToolsPath on top.
func NewRegistryFromConfig(cfg config.ToolsConfig, ptys *pty.Manager) (*Registry, error) {
	r := NewRegistry()
	for _, d := range Builtins(ptys) {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	r.Retain(cfg.Enabled)
	if cfg.UserToolsPath != "" {
		if _, err := r.RegisterUserTools(cfg.UserToolsPath); err != nil {
			return nil, fmt.Errorf("load user tools: %w", err)
		}
	}
	return r, nil
}

// NewContextFromConfig builds the per-call context the config describes.
func NewContextFromConfig(cfg config.ToolsConfig, workingDir string, tracker *changes.Tracker) *Context {
	tc := NewContext(workingDir)
	tc.TimeoutMS = cfg.Timeout()
	tc.AllowedPaths = append([]string(nil), cfg.AllowedPaths...)
	tc.Sandbox = cfg.Sandbox.Permissions()
	tc.Tracker = tracker
	return tc
}
