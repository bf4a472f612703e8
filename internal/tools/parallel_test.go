package tools

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParallelExecutor_PreservesOrderAndAssignsIDs(t *testing.T) {
	r := newBuiltinRegistry(t)
	p := NewParallelExecutor(r, DefaultParallelConfig())
	invs := make([]Invocation, 0, 10)
	for i := range 10 {
		invs = append(invs, Invocation{Name: "echo", Arguments: fmt.Sprintf(`{"text":"%d"}`, i)})
	}
	invs[3].ID = "fixed"

	res := p.ExecuteBatch(context.Background(), invs, NewContext(t.TempDir()))
	seen := map[string]bool{}
	for i, r := range res {
		if r.Err != nil || r.Output != fmt.Sprint(i) {
			t.Fatalf("result %d: %+v", i, r)
		}
		if r.ID == "" || seen[r.ID] {
			t.Fatalf("result %d: bad id %q", i, r.ID)
		}
		seen[r.ID] = true
	}
	if res[3].ID != "fixed" {
		t.Fatalf("explicit id replaced: %q", res[3].ID)
	}
	for i, inv := range invs {
		if i != 3 && inv.ID != "" {
			t.Fatalf("invocation %d modified: id %q", i, inv.ID)
		}
	}
}

func TestParallelExecutor_SerializesWrites(t *testing.T) {
	r := NewRegistry()
	var (
		active, peak atomic.Int32
		mu           sync.Mutex
		order        []string
	)
	registerFunc(t, r, "write_thing", []Param{{Name: "n", Type: "string"}}, func(_ context.Context, _ *Context, args map[string]any) (string, error) {
		if v := active.Add(1); v > peak.Load() {
			peak.Store(v)
		}
		mu.Lock()
		order = append(order, args["n"].(string))
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return "ok", nil
	})

	invs := []Invocation{
		{Name: "write_thing", Arguments: `{"n":"a"}`},
		{Name: "write_thing", Arguments: `{"n":"b"}`},
		{Name: "write_thing", Arguments: `{"n":"c"}`},
	}
	res := NewParallelExecutor(r, ParallelConfig{MaxReads: 4, MaxWrites: 1}).ExecuteBatch(context.Background(), invs, NewContext(t.TempDir()))
	for _, x := range res {
		if x.Err != nil {
			t.Fatalf("err: %v", x.Err)
		}
	}
	if peak.Load() != 1 {
		t.Fatalf("writes overlapped: peak=%d", peak.Load())
	}
	if fmt.Sprint(order) != "[a b c]" {
		t.Fatalf("order: %v", order)
	}
}

func TestIsMutating(t *testing.T) {
	for _, name := range []string{"file_read", "ls", "search", "echo", "time_now", "rollback"} {
		if IsMutating(name) {
			t.Fatalf("%s should be read-only", name)
		}
	}
	for _, name := range []string{"shell", "shell_write", "patch", "plan", "anything_else"} {
		if !IsMutating(name) {
			t.Fatalf("%s should be mutating", name)
		}
	}
}

func TestParallelExecutor_ExecuteWithDepsRunsInWaves(t *testing.T) {
	p := NewParallelExecutor(newBuiltinRegistry(t), DefaultParallelConfig())
	echo := func(id string) Invocation {
		return Invocation{ID: id, Name: "echo", Arguments: fmt.Sprintf(`{"text":%q}`, id)}
	}
	invs := []Invocation{echo("c"), echo("b"), echo("a"), echo("d")}
	deps := map[string][]string{"c": {"b"}, "b": {"a"}}

	res := p.ExecuteWithDeps(context.Background(), invs, deps, NewContext(t.TempDir()))
	var got []string
	for _, r := range res {
		if r.Err != nil || r.Output != r.ID {
			t.Fatalf("result %+v", r)
		}
		got = append(got, r.ID)
	}
	if fmt.Sprint(got) != "[a d b c]" {
		t.Fatalf("order: %v", got)
	}
}

func TestParallelExecutor_ExecuteWithDepsBreaksCycles(t *testing.T) {
	p := NewParallelExecutor(newBuiltinRegistry(t), DefaultParallelConfig())
	invs := []Invocation{
		{ID: "x", Name: "echo", Arguments: `{"text":"x"}`},
		{ID: "y", Name: "echo", Arguments: `{"text":"y"}`},
		{Name: "echo", Arguments: `{"text":"free"}`},
	}
	deps := map[string][]string{"x": {"y"}, "y": {"x"}}

	res := p.ExecuteWithDeps(context.Background(), invs, deps, NewContext(t.TempDir()))
	if len(res) != 3 {
		t.Fatalf("results: %+v", res)
	}
	if res[0].Output != "free" || res[0].ID == "" {
		t.Fatalf("first wave: %+v", res[0])
	}
	if res[1].ID != "x" || res[2].ID != "y" {
		t.Fatalf("cycle order: %s %s", res[1].ID, res[2].ID)
	}
	if invs[2].ID != "" {
		t.Fatalf("caller invocation modified: %q", invs[2].ID)
	}
}
