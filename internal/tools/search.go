package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danshapiro/handrail/internal/procutil"
)

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 2000
	searchTimeout      = 30 * time.Second
)

// rgBinary is the ripgrep executable; tests point it elsewhere.
var rgBinary = "rg"

type searchArgs struct {
	Pattern string `json:"pattern"`
	Include string `json:"include"`
	Path    string `json:"path"`
	Limit   int    `json:"limit"`
}

func searchTool() Definition {
	return Definition{
		Name:        "search",
		Description: "Search for files matching a regex pattern using ripgrep. Returns file paths containing matches. Requires ripgrep (rg) installed.",
		Params: []Param{
			{Name: "pattern", Type: "string", Description: "Regex pattern to search for."},
			{Name: "include", Type: "string", Description: "Glob pattern to filter files (e.g., '*.go', '**/*.py')."},
			{Name: "path", Type: "string", Description: "Directory to search in (defaults to working directory)."},
			{Name: "limit", Type: "integer", Description: "Maximum file paths to return (default: 100, max: 2000)."},
		},
		Required: []string{"pattern"},
		Executor: execSearch,
	}
}

func execSearch(ctx context.Context, tc *Context, args map[string]any) (string, error) {
	a := searchArgs{Limit: defaultSearchLimit}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Limit <= 0 {
		return "", RespondToModel("limit must be greater than zero")
	}
	if a.Include != "" && !doublestar.ValidatePattern(a.Include) {
		return "", InvalidArgs("invalid include glob: %q", a.Include)
	}
	if err := checkRipgrep(ctx); err != nil {
		return "", err
	}

	root := tc.workingDir()
	if a.Path != "" {
		root = tc.resolve(a.Path)
	}
	limit := min(a.Limit, maxSearchLimit)

	argv := []string{"--files-with-matches", "--no-messages", "--color=never"}
	if a.Include != "" {
		argv = append(argv, "--glob", a.Include)
	}
	argv = append(argv, "--", a.Pattern, root)

	stdout, err := runWithTimeout(ctx, searchTimeout, rgBinary, argv...)
	if err != nil {
		return "", err
	}

	var files []string
	for _, l := range strings.Split(stdout, "\n") {
		if l = strings.TrimRight(l, "\r"); l != "" {
			files = append(files, l)
		}
	}
	if len(files) == 0 {
		return "No matches found.", nil
	}
	shown := files[:min(limit, len(files))]

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d file(s) matching pattern:\n", len(shown))
	for _, f := range shown {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	if len(files) > limit {
		fmt.Fprintf(&b, "\n(Results truncated to %d files)", limit)
	}
	return b.String(), nil
}

func checkRipgrep(ctx context.Context) error {
	if err := exec.CommandContext(ctx, rgBinary, "--version").Run(); err != nil {
		return MissingDependency("ripgrep (rg) is not installed. Install with: brew install ripgrep (macOS), apt install ripgrep (Ubuntu), or cargo install ripgrep")
	}
	return nil
}

// runWithTimeout runs a child in its own process group and kills the group
// when the timeout or ctx expires. rg exits 1 for "no matches", which is not
// an error here.
func runWithTimeout(ctx context.Context, timeout time.Duration, name string, argv ...string) (string, error) {
	cmd := exec.Command(name, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", Execution("Failed to spawn %s: %v", name, err)
	}

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		_ = procutil.KillGroup(cmd.Process.Pid)
		<-done
		return "", Timeout(timeout)
	case <-ctx.Done():
		_ = procutil.KillGroup(cmd.Process.Pid)
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", Timeout(time.Since(start))
		}
		return "", Execution("%s canceled: %v", name, ctx.Err())
	}
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) && ee.ExitCode() == 1 {
			return stdout.String(), nil
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return "", Execution("%s failed: %s", name, msg)
	}
	return stdout.String(), nil
}
