// Package pty runs shell commands in pseudo-terminal sessions that outlive a
// single tool call. Output is collected for a bounded time after each spawn
// or write, and sessions are evicted once their process exits.
package pty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/danshapiro/handrail/internal/procutil"
)

// ID identifies a session. IDs increase monotonically and are never reused
// by a Manager.
type ID uint64

func (id ID) String() string { return fmt.Sprintf("%d", uint64(id)) }

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExited   = errors.New("session has already exited")
	ErrSessionClosed   = errors.New("session terminated")
)

const (
	DefaultRows = 24
	DefaultCols = 120

	readBufferSize = 32 * 1024
	writeQueueSize = 128
)

// Output is a snapshot taken at the end of a collection window.
type Output struct {
	Output    string
	ExitCode  *int
	Duration  time.Duration
	SessionID ID
	HasExited bool
}

// Session owns one child process attached to a pty. Three goroutines serve
// it: a reader publishing pty output, a writer draining the input queue in
// FIFO order, and a waiter recording the exit status.
type Session struct {
	id        ID
	command   string
	workDir   string
	startedAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File
	pid  int

	writes chan []byte
	out    *hub

	exited   atomic.Bool
	exitCode atomic.Int32
	waitDone chan struct{}

	stop     chan struct{}
	stopOnce sync.Once

	log *slog.Logger
}

type startOptions struct {
	Shell   string
	Command string
	WorkDir string
	Env     []string
	Rows    uint16
	Cols    uint16
	Log     *slog.Logger
}

// start spawns the child and returns the session together with a
// subscription taken before the reader begins, so no early output is lost.
func start(id ID, opts startOptions) (*Session, *Subscription, error) {
	cmd := exec.Command(opts.Shell, "-c", opts.Command)
	cmd.Dir = opts.WorkDir
	cmd.Env = append(os.Environ(), opts.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
	if err != nil {
		return nil, nil, fmt.Errorf("pty start: %w", err)
	}

	s := &Session{
		id:        id,
		command:   opts.Command,
		workDir:   opts.WorkDir,
		startedAt: time.Now(),
		cmd:       cmd,
		ptmx:      ptmx,
		pid:       cmd.Process.Pid,
		writes:    make(chan []byte, writeQueueSize),
		out:       newHub(),
		waitDone:  make(chan struct{}),
		stop:      make(chan struct{}),
		log:       opts.Log.With("session_id", uint64(id), "pid", cmd.Process.Pid),
	}
	sub := s.out.subscribe()

	go s.readLoop()
	go s.writeLoop()
	go s.waitLoop()
	return s, sub, nil
}

func (s *Session) readLoop() {
	defer s.out.close()
	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, 0, len(pending)+n)
			chunk = append(chunk, pending...)
			chunk = append(chunk, buf[:n]...)
			pending = nil
			if tail := incompleteUTF8Tail(chunk); tail > 0 {
				pending = append([]byte(nil), chunk[len(chunk)-tail:]...)
				chunk = chunk[:len(chunk)-tail]
			}
			if len(chunk) > 0 {
				s.out.publish(chunk)
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if errors.Is(err, syscall.EAGAIN) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		// EOF, or EIO once the last slave descriptor is closed.
		if len(pending) > 0 {
			s.out.publish(pending)
		}
		return
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.stop:
			return
		case b := <-s.writes:
			for len(b) > 0 {
				n, err := s.ptmx.Write(b)
				if err != nil {
					s.log.Debug("pty write failed", "err", err)
					break
				}
				b = b[n:]
			}
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	code := -1
	if s.cmd.ProcessState != nil {
		code = s.cmd.ProcessState.ExitCode()
	}
	s.exitCode.Store(int32(code))
	s.exited.Store(true)
	close(s.waitDone)
	s.log.Debug("pty process exited", "exit_code", code, "err", err)
}

func (s *Session) ID() ID { return s.id }

func (s *Session) PID() int { return s.pid }

func (s *Session) HasExited() bool { return s.exited.Load() }

// ExitCode returns the exit status once the process has been reaped. A
// process killed by a signal reports -1.
func (s *Session) ExitCode() (int, bool) {
	if !s.exited.Load() {
		return 0, false
	}
	return int(s.exitCode.Load()), true
}

// Done is closed once the process has been reaped.
func (s *Session) Done() <-chan struct{} { return s.waitDone }

func (s *Session) Subscribe() *Subscription { return s.out.subscribe() }

// Write queues data for the pty. It fails fast if the process has exited.
func (s *Session) Write(ctx context.Context, data []byte) error {
	if s.exited.Load() {
		return ErrSessionExited
	}
	b := append([]byte(nil), data...)
	select {
	case s.writes <- b:
		return nil
	case <-s.stop:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Resize(rows, cols uint16) error {
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Collect gathers output from sub until yield elapses, maxBytes have been
// read, ctx is done, or the process has exited and its output is drained.
// Output is cut to at most maxBytes on a rune boundary. Partial output is the
// normal result.
func (s *Session) Collect(ctx context.Context, sub *Subscription, yield time.Duration, maxBytes int) Output {
	begin := time.Now()
	timer := time.NewTimer(yield)
	defer timer.Stop()

	var b strings.Builder
	drained := false
collect:
	for maxBytes <= 0 || b.Len() < maxBytes {
		select {
		case chunk, ok := <-sub.C:
			if !ok {
				drained = true
				break collect
			}
			if maxBytes > 0 && b.Len()+len(chunk) > maxBytes {
				chunk = chunk[:maxBytes-b.Len()]
				b.Write(chunk[:len(chunk)-incompleteUTF8Tail(chunk)])
				break collect
			}
			b.Write(chunk)
		case <-timer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}
	if drained {
		// The reader stops at EOF slightly before the waiter reaps the child.
		select {
		case <-s.waitDone:
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	out := Output{
		Output:    strings.ToValidUTF8(b.String(), "�"),
		Duration:  time.Since(begin),
		SessionID: s.id,
		HasExited: s.exited.Load(),
	}
	if code, ok := s.ExitCode(); ok {
		out.ExitCode = &code
	}
	return out
}

// Terminate kills the process group, closes the pty and stops the writer.
// It is safe to call more than once and after the process has exited.
func (s *Session) Terminate() {
	s.stopOnce.Do(func() {
		if !s.exited.Load() {
			if err := procutil.KillGroup(s.pid); err != nil {
				s.log.Debug("kill process group", "err", err)
			}
		}
		_ = s.ptmx.Close()
		close(s.stop)
	})
}

// Info describes a live session.
type Info struct {
	ID        ID
	PID       int
	Command   string
	WorkDir   string
	StartedAt time.Time
	HasExited bool
}

func (s *Session) Info() Info {
	return Info{
		ID:        s.id,
		PID:       s.pid,
		Command:   s.command,
		WorkDir:   s.workDir,
		StartedAt: s.startedAt,
		HasExited: s.exited.Load(),
	}
}
