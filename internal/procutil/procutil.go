// Package procutil inspects and signals child processes by PID.
package procutil

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ProcFSAvailable reports whether /proc can be used for process state.
func ProcFSAvailable() bool {
	_, err := os.Stat("/proc/self/stat")
	return err == nil
}

// State returns the single-letter scheduler state of pid (R, S, Z, ...).
// ok is false when the process cannot be inspected.
func State(pid int) (state byte, ok bool) {
	if pid <= 0 {
		return 0, false
	}
	if !ProcFSAvailable() {
		return stateFromPS(pid)
	}
	b, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}
	// comm may contain spaces and parens; the state follows the last ')'.
	line := string(b)
	i := strings.LastIndexByte(line, ')')
	if i < 0 || i+2 >= len(line) {
		return 0, false
	}
	return line[i+2], true
}

func stateFromPS(pid int) (byte, bool) {
	out, err := exec.Command("ps", "-o", "state=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(out))
	if s == "" {
		return 0, false
	}
	return s[0], true
}

// PIDZombie reports whether pid has exited but not been reaped.
func PIDZombie(pid int) bool {
	st, ok := State(pid)
	return ok && (st == 'Z' || st == 'X')
}

// PIDAlive reports whether pid exists and is not a zombie.
func PIDAlive(pid int) bool {
	if pid <= 0 || PIDZombie(pid) {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// KillGroup sends SIGKILL to the process group led by pid, falling back to
// the process itself when it does not lead a group. A process that is
// already gone is not an error.
func KillGroup(pid int) error {
	return SignalGroup(pid, unix.SIGKILL)
}

func SignalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
