package procutil

import (
	"os"
	"os/exec"
	"testing"
	"time"
)

func TestPIDAlive_Self(t *testing.T) {
	if !PIDAlive(os.Getpid()) {
		t.Fatalf("current process should be alive")
	}
	if PIDAlive(0) || PIDAlive(-1) {
		t.Fatalf("non-positive pids are never alive")
	}
}

func TestState_Self(t *testing.T) {
	st, ok := State(os.Getpid())
	if !ok {
		t.Skip("process state unavailable")
	}
	if st == 'Z' || st == 'X' {
		t.Fatalf("self reported as dead: %q", st)
	}
}

func TestKillGroup_TerminatesChild(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command(sleep, "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid
	if err := KillGroup(pid); err != nil {
		t.Fatalf("KillGroup: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("child not killed")
	}
	if PIDAlive(pid) {
		t.Fatalf("pid %d still alive after reap", pid)
	}
	if err := KillGroup(pid); err != nil {
		t.Fatalf("KillGroup on reaped pid should be a no-op: %v", err)
	}
}
