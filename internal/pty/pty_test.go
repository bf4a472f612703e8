package pty

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// testManager returns a manager or skips when the host cannot allocate ptys.
func testManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	if _, err := os.Stat(DefaultShell); err != nil {
		t.Skipf("%s not available", DefaultShell)
	}
	m := NewManager(cfg)
	if _, err := m.Spawn(context.Background(), SpawnRequest{Command: "true", YieldTime: 2 * time.Second}); err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(m.TerminateAll)
	return m
}

func TestManager_SpawnEchoCollectsOutputAndEvicts(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	out, err := m.Spawn(context.Background(), SpawnRequest{
		Command:    "echo hello",
		WorkingDir: t.TempDir(),
		YieldTime:  3 * time.Second,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !strings.Contains(out.Output, "hello") {
		t.Fatalf("output: %q", out.Output)
	}
	if !out.HasExited || out.ExitCode == nil || *out.ExitCode != 0 {
		t.Fatalf("exit state: exited=%v code=%v", out.HasExited, out.ExitCode)
	}
	if m.Count() != 0 {
		t.Fatalf("exited session not evicted")
	}
	if _, err := m.Write(context.Background(), out.SessionID, "x\n", 100*time.Millisecond); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("write after exit: %v", err)
	}
}

func TestManager_SessionIDsIncrease(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	a, err := m.Spawn(context.Background(), SpawnRequest{Command: "true", YieldTime: 2 * time.Second})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	b, err := m.Spawn(context.Background(), SpawnRequest{Command: "true", YieldTime: 2 * time.Second})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if b.SessionID <= a.SessionID {
		t.Fatalf("ids not increasing: %d then %d", a.SessionID, b.SessionID)
	}
}

func TestManager_ExitCodeReported(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	out, err := m.Spawn(context.Background(), SpawnRequest{Command: "exit 3", YieldTime: 3 * time.Second})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !out.HasExited || out.ExitCode == nil || *out.ExitCode != 3 {
		t.Fatalf("exit state: exited=%v code=%v", out.HasExited, out.ExitCode)
	}
}

func TestManager_WriteToInteractiveSession(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	out, err := m.Spawn(context.Background(), SpawnRequest{Command: "cat", YieldTime: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if out.HasExited {
		t.Fatalf("cat exited early: %q", out.Output)
	}
	id := out.SessionID

	got, err := m.Write(context.Background(), id, "ping\n", time.Second)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(got.Output, "ping") {
		t.Fatalf("output: %q", got.Output)
	}
	if len(m.List()) != 1 || m.List()[0].Command != "cat" {
		t.Fatalf("list: %+v", m.List())
	}

	// EOF makes cat exit, which evicts the session.
	got, err = m.Write(context.Background(), id, "\x04", 3*time.Second)
	if err != nil {
		t.Fatalf("Write EOF: %v", err)
	}
	if !got.HasExited {
		t.Fatalf("cat did not exit on EOF")
	}
	if _, ok := m.Get(id); ok {
		t.Fatalf("session not evicted")
	}
}

func TestManager_YieldBoundsCollection(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	begin := time.Now()
	out, err := m.Spawn(context.Background(), SpawnRequest{Command: "sleep 5", YieldTime: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 3*time.Second {
		t.Fatalf("collection not bounded: %v", elapsed)
	}
	if out.HasExited || out.ExitCode != nil {
		t.Fatalf("sleep should still be running")
	}
	m.Remove(out.SessionID)
	if m.Count() != 0 {
		t.Fatalf("remove failed")
	}
}

func TestManager_CollectStopsAtByteCap(t *testing.T) {
	m := testManager(t, ManagerConfig{MaxOutputBytes: 1000})
	out, err := m.Spawn(context.Background(), SpawnRequest{
		Command:   "head -c 2000000 /dev/zero | tr '\\0' a",
		YieldTime: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if len(out.Output) != 1000 {
		t.Fatalf("output length %d want 1000", len(out.Output))
	}
}

func TestSession_CollectCutsOnRuneBoundary(t *testing.T) {
	s := &Session{out: newHub(), waitDone: make(chan struct{})}
	sub := s.out.subscribe()
	s.out.publish([]byte("ab"))
	s.out.publish([]byte("cé")) // "é" is two bytes
	s.out.publish([]byte("zzzz"))

	out := s.Collect(context.Background(), sub, time.Second, 4)
	if out.Output != "abc" {
		t.Fatalf("output %q want %q", out.Output, "abc")
	}

	sub = s.out.subscribe()
	s.out.publish([]byte("0123456789"))
	out = s.Collect(context.Background(), sub, time.Second, 6)
	if out.Output != "012345" {
		t.Fatalf("output %q want %q", out.Output, "012345")
	}
}

func TestManager_ContextCancelEndsCollection(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	begin := time.Now()
	out, err := m.Spawn(ctx, SpawnRequest{Command: "sleep 5", YieldTime: 10 * time.Second})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if time.Since(begin) > 3*time.Second {
		t.Fatalf("context cancellation ignored")
	}
	m.Remove(out.SessionID)
}

func TestManager_TerminateAllKillsProcesses(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	out, err := m.Spawn(context.Background(), SpawnRequest{Command: "sleep 30", YieldTime: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	s, ok := m.Get(out.SessionID)
	if !ok {
		t.Fatalf("session missing")
	}
	m.TerminateAll()
	if m.Count() != 0 {
		t.Fatalf("sessions left: %d", m.Count())
	}
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("process not killed")
	}
	// Idempotent.
	s.Terminate()
	if err := s.Write(context.Background(), []byte("x")); !errors.Is(err, ErrSessionExited) && !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("write after terminate: %v", err)
	}
}

func TestManager_WriteToExitedSessionIsRejected(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	out, err := m.Spawn(context.Background(), SpawnRequest{Command: "sleep 0.2", YieldTime: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	s, ok := m.Get(out.SessionID)
	if !ok {
		t.Skip("process exited within the yield window")
	}
	<-s.Done()
	if _, err := m.Write(context.Background(), out.SessionID, "x", 50*time.Millisecond); !errors.Is(err, ErrSessionExited) {
		t.Fatalf("err=%v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("exited session should be evicted on write")
	}
}

func TestManager_CloseSkipsWhenTableBusy(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	out, err := m.Spawn(context.Background(), SpawnRequest{Command: "sleep 30", YieldTime: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	m.mu.RLock()
	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close blocked on a busy table")
	}
	m.mu.RUnlock()
	if _, ok := m.Get(out.SessionID); !ok {
		t.Fatalf("session should survive a skipped close")
	}
	m.Close()
	if m.Count() != 0 {
		t.Fatalf("close did not clear sessions")
	}
}

func TestManager_SweepEvictsDeadSessions(t *testing.T) {
	m := testManager(t, ManagerConfig{})
	out, err := m.Spawn(context.Background(), SpawnRequest{Command: "sleep 0.2", YieldTime: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	s, ok := m.Get(out.SessionID)
	if !ok {
		t.Skip("process exited within the yield window")
	}
	<-s.Done()
	if n := m.Sweep(); n != 1 {
		t.Fatalf("swept %d", n)
	}
}
