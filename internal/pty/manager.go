package pty

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danshapiro/handrail/internal/procutil"
)

const (
	DefaultYieldTime      = 5000 * time.Millisecond
	DefaultMaxOutputBytes = 100_000
	DefaultShell          = "/bin/bash"
)

type ManagerConfig struct {
	// Shell runs requests that do not name one. Empty means DefaultShell.
	Shell string
	// MaxOutputBytes caps one collection window. Zero means the default.
	MaxOutputBytes int
	Rows           uint16
	Cols           uint16
	// Env is appended to the inherited environment of every child.
	Env    []string
	Logger *slog.Logger
}

func (c *ManagerConfig) applyDefaults() {
	if c.Shell == "" {
		c.Shell = DefaultShell
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.Rows == 0 {
		c.Rows = DefaultRows
	}
	if c.Cols == 0 {
		c.Cols = DefaultCols
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type SpawnRequest struct {
	Shell      string
	Command    string
	WorkingDir string
	// YieldTime bounds output collection. Zero means DefaultYieldTime.
	YieldTime time.Duration
}

// Manager owns the table of live sessions. The table lock is held only for
// map updates; output collection happens outside it.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[ID]*Session
	nextID   atomic.Uint64
}

func NewManager(cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	m := &Manager{cfg: cfg, sessions: map[ID]*Session{}}
	m.nextID.Store(1)
	return m
}

// Spawn starts req.Command under req.Shell and returns the output produced
// within the yield window. A session whose process exited during the window
// is evicted before returning.
func (m *Manager) Spawn(ctx context.Context, req SpawnRequest) (Output, error) {
	shell := req.Shell
	if shell == "" {
		shell = m.cfg.Shell
	}
	id := ID(m.nextID.Add(1) - 1)
	s, sub, err := start(id, startOptions{
		Shell:   shell,
		Command: req.Command,
		WorkDir: req.WorkingDir,
		Env:     m.cfg.Env,
		Rows:    m.cfg.Rows,
		Cols:    m.cfg.Cols,
		Log:     m.cfg.Logger,
	})
	if err != nil {
		return Output{}, err
	}
	defer sub.Close()

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.cfg.Logger.Debug("pty session spawned", "session_id", uint64(id), "pid", s.pid, "command", req.Command)

	out := s.Collect(ctx, sub, yieldOrDefault(req.YieldTime), m.cfg.MaxOutputBytes)
	if out.HasExited {
		m.Remove(id)
	}
	return out, nil
}

// Write sends data to a live session and collects what follows. The
// subscription is taken before writing so output caused by the write is
// never missed.
func (m *Manager) Write(ctx context.Context, id ID, data string, yield time.Duration) (Output, error) {
	s, ok := m.Get(id)
	if !ok {
		return Output{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.HasExited() {
		m.Remove(id)
		return Output{}, fmt.Errorf("%w: %s", ErrSessionExited, id)
	}

	sub := s.Subscribe()
	defer sub.Close()
	if err := s.Write(ctx, []byte(data)); err != nil {
		return Output{}, fmt.Errorf("session %s: %w", id, err)
	}

	out := s.Collect(ctx, sub, yieldOrDefault(yield), m.cfg.MaxOutputBytes)
	if out.HasExited {
		m.Remove(id)
	}
	return out, nil
}

func yieldOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultYieldTime
	}
	return d
}

func (m *Manager) Get(id ID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove evicts and terminates a session. Unknown IDs are ignored.
func (m *Manager) Remove(id ID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Terminate()
		m.cfg.Logger.Debug("pty session removed", "session_id", uint64(id))
	}
}

func (m *Manager) Resize(id ID, rows, cols uint16) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Resize(rows, cols)
}

// TerminateAll evicts and terminates every session.
func (m *Manager) TerminateAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = map[ID]*Session{}
	m.mu.Unlock()
	for _, s := range all {
		s.Terminate()
	}
}

// Close is the best-effort teardown: if the table is locked by another
// goroutine the sessions are left alone rather than blocking.
func (m *Manager) Close() {
	if !m.mu.TryLock() {
		m.cfg.Logger.Debug("pty manager close skipped: session table busy")
		return
	}
	all := m.sessions
	m.sessions = map[ID]*Session{}
	m.mu.Unlock()
	for _, s := range all {
		s.Terminate()
	}
}

// Sweep evicts sessions whose process is no longer running and returns how
// many were removed.
func (m *Manager) Sweep() int {
	var dead []ID
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.HasExited() || !procutil.PIDAlive(s.pid) {
			dead = append(dead, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range dead {
		m.Remove(id)
	}
	return len(dead)
}

// List returns live sessions ordered by ID.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
