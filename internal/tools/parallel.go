package tools

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var readOnlyTools = map[string]bool{
	"echo":      true,
	"time_now":  true,
	"file_read": true,
	"search":    true,
	"ls":        true,
	"rollback":  true,
}

// IsMutating reports whether a tool may change state. Unknown tools are
// treated as mutating.
func IsMutating(name string) bool {
	return !readOnlyTools[name]
}

type ParallelConfig struct {
	MaxReads  int64
	MaxWrites int64
}

func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxReads: 8, MaxWrites: 1}
}

type Invocation struct {
	ID        string
	Name      string
	Arguments string
}

type InvocationResult struct {
	ID       string
	Name     string
	Output   string
	Err      error
	Duration time.Duration
}

// ParallelExecutor runs read-only tools concurrently and admits mutating tools
// through a separate, narrower gate in input order.
type ParallelExecutor struct {
	reg    *Registry
	reads  *semaphore.Weighted
	writes *semaphore.Weighted
}

func NewParallelExecutor(reg *Registry, cfg ParallelConfig) *ParallelExecutor {
	if cfg.MaxReads <= 0 {
		cfg.MaxReads = DefaultParallelConfig().MaxReads
	}
	if cfg.MaxWrites <= 0 {
		cfg.MaxWrites = DefaultParallelConfig().MaxWrites
	}
	return &ParallelExecutor{
		reg:    reg,
		reads:  semaphore.NewWeighted(cfg.MaxReads),
		writes: semaphore.NewWeighted(cfg.MaxWrites),
	}
}

// ExecuteBatch runs every invocation and returns results in input order.
// Results for invocations without an ID carry a generated one; invs itself
// is not modified.
func (p *ParallelExecutor) ExecuteBatch(ctx context.Context, invs []Invocation, tc *Context) []InvocationResult {
	results := make([]InvocationResult, len(invs))
	for i, inv := range invs {
		id := inv.ID
		if strings.TrimSpace(id) == "" {
			id = strings.ToLower(ulid.Make().String())
		}
		results[i] = InvocationResult{ID: id, Name: inv.Name}
	}

	var g errgroup.Group
	run := func(i int, sem *semaphore.Weighted) {
		defer sem.Release(1)
		start := time.Now()
		out, err := p.reg.Execute(ctx, invs[i].Name, invs[i].Arguments, tc)
		results[i].Output, results[i].Err, results[i].Duration = out, err, time.Since(start)
	}

	for i := range invs {
		if IsMutating(invs[i].Name) {
			continue
		}
		g.Go(func() error {
			if err := p.reads.Acquire(ctx, 1); err != nil {
				results[i].Err = Execution("%v", err)
				return nil
			}
			run(i, p.reads)
			return nil
		})
	}
	// Writes are admitted from this loop so they start in input order.
	for i := range invs {
		if !IsMutating(invs[i].Name) {
			continue
		}
		if err := p.writes.Acquire(ctx, 1); err != nil {
			results[i].Err = Execution("%v", err)
			continue
		}
		g.Go(func() error {
			run(i, p.writes)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ExecuteWithDeps runs invocations in waves: each wave is the set whose
// dependencies (keyed by invocation ID) have all completed, executed as one
// batch. When no invocation is ready, the rest run one at a time in input
// order. Results are returned in completion order.
func (p *ParallelExecutor) ExecuteWithDeps(ctx context.Context, invs []Invocation, deps map[string][]string, tc *Context) []InvocationResult {
	pending := make([]Invocation, len(invs))
	copy(pending, invs)
	for i := range pending {
		if strings.TrimSpace(pending[i].ID) == "" {
			pending[i].ID = strings.ToLower(ulid.Make().String())
		}
	}

	completed := make(map[string]bool, len(pending))
	results := make([]InvocationResult, 0, len(pending))
	for len(pending) > 0 {
		var ready, blocked []Invocation
		for _, inv := range pending {
			if depsDone(deps[inv.ID], completed) {
				ready = append(ready, inv)
			} else {
				blocked = append(blocked, inv)
			}
		}
		if len(ready) == 0 {
			// Cyclic or unsatisfiable dependencies.
			for _, inv := range blocked {
				res := p.ExecuteBatch(ctx, []Invocation{inv}, tc)
				completed[inv.ID] = true
				results = append(results, res...)
			}
			break
		}
		for _, r := range p.ExecuteBatch(ctx, ready, tc) {
			completed[r.ID] = true
			results = append(results, r)
		}
		pending = blocked
	}
	return results
}

func depsDone(deps []string, completed map[string]bool) bool {
	for _, d := range deps {
		if !completed[d] {
			return false
		}
	}
	return true
}
