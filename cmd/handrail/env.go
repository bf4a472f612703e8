package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danshapiro/handrail/internal/changes"
	"github.com/danshapiro/handrail/internal/config"
	"github.com/danshapiro/handrail/internal/pty"
	"github.com/danshapiro/handrail/internal/tools"
)

// toolEnv bundles what one command needs to execute tools.
type toolEnv struct {
	cfg      *config.Config
	ptys     *pty.Manager
	tracker  *changes.Tracker
	registry *tools.Registry
}

func newToolEnv(cfg *config.Config) (*toolEnv, error) {
	ptys := pty.NewManager(pty.ManagerConfig{
		Shell:          cfg.PTY.Shell,
		MaxOutputBytes: cfg.PTY.MaxOutputBytes,
		Rows:           uint16(cfg.PTY.Rows),
		Cols:           uint16(cfg.PTY.Cols),
		Logger:         log(),
	})
	reg, err := tools.NewRegistryFromConfig(cfg.Tools, ptys)
	if err != nil {
		ptys.TerminateAll()
		return nil, err
	}
	return &toolEnv{
		cfg:      cfg,
		ptys:     ptys,
		tracker:  changes.New(cfg.Changes.MaxGroups),
		registry: reg,
	}, nil
}

func (e *toolEnv) context(workdir string) *tools.Context {
	return tools.NewContextFromConfig(e.cfg.Tools, workdir, e.tracker).WithLogger(log())
}

func (e *toolEnv) Close() {
	e.ptys.TerminateAll()
}

func resolveWorkdir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
