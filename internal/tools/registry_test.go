package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newBuiltinRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, d := range Builtins(nil) {
		if err := r.Register(d); err != nil {
			t.Fatalf("Register %s: %v", d.Name, err)
		}
	}
	return r
}

func registerFunc(t *testing.T, r *Registry, name string, params []Param, exec Executor) {
	t.Helper()
	if err := r.Register(Definition{Name: name, Params: params, Executor: exec}); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestRegistry_UnknownToolIsNotFound(t *testing.T) {
	r := newBuiltinRegistry(t)
	_, err := r.Execute(context.Background(), "does_not_exist", `{}`, NewContext(t.TempDir()))
	if !IsNotFound(err) {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(err.Error(), "does_not_exist") {
		t.Fatalf("err=%v", err)
	}
}

func TestRegistry_MalformedJSONIsInvalidArgs(t *testing.T) {
	r := newBuiltinRegistry(t)
	_, err := r.Execute(context.Background(), "echo", `{"text":`, NewContext(t.TempDir()))
	if !IsInvalidArgs(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestRegistry_SchemaViolationIsInvalidArgs(t *testing.T) {
	r := newBuiltinRegistry(t)
	for _, args := range []string{`{}`, `{"text": 5}`} {
		_, err := r.Execute(context.Background(), "echo", args, NewContext(t.TempDir()))
		if !IsInvalidArgs(err) || !strings.Contains(err.Error(), "schema validation failed") {
			t.Fatalf("args %s: err=%v", args, err)
		}
	}
}

func TestRegistry_ArgumentShapes(t *testing.T) {
	r := NewRegistry()
	var got map[string]any
	registerFunc(t, r, "capture", nil, func(_ context.Context, _ *Context, args map[string]any) (string, error) {
		got = args
		return "ok", nil
	})
	cases := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "map[]"},
		{raw: "   ", want: "map[]"},
		{raw: "null", want: "map[]"},
		{raw: `{"a":"b"}`, want: "map[a:b]"},
		{raw: `[1,2]`, want: "map[input:[1 2]]"},
		{raw: `"text"`, want: "map[input:text]"},
	}
	for _, tc := range cases {
		if _, err := r.Execute(context.Background(), "capture", tc.raw, NewContext(t.TempDir())); err != nil {
			t.Fatalf("raw %q: %v", tc.raw, err)
		}
		if s := fmt.Sprint(got); s != tc.want {
			t.Fatalf("raw %q: got %s want %s", tc.raw, s, tc.want)
		}
	}
}

func TestRegistry_AllowedPaths(t *testing.T) {
	r := NewRegistry()
	registerFunc(t, r, "touch", []Param{{Name: "path", Type: "string"}, {Name: "paths", Type: "array", Items: "string"}},
		func(context.Context, *Context, map[string]any) (string, error) { return "ok", nil })
	tc := NewContext(t.TempDir()).WithAllowedPaths([]string{"/srv/project", "/data/**/*.csv"})

	cases := []struct {
		args    string
		allowed bool
	}{
		{`{"path":"/srv/project/main.go"}`, true},
		{`{"path":"/etc/passwd"}`, false},
		{`{"path":"/data/2024/jan/sales.csv"}`, true},
		{`{"path":"/data/2024/sales.json"}`, false},
		{`{"paths":["/srv/project/a","/srv/project/b"]}`, true},
		{`{"paths":["/srv/project/a","/tmp/b"]}`, false},
		{`{}`, true},
	}
	for _, c := range cases {
		_, err := r.Execute(context.Background(), "touch", c.args, tc)
		if c.allowed && err != nil {
			t.Fatalf("%s: unexpected err %v", c.args, err)
		}
		if !c.allowed {
			if !IsKind(err, KindExecution) || !strings.Contains(err.Error(), "path not allowed") {
				t.Fatalf("%s: err=%v", c.args, err)
			}
		}
	}

	// No allow-list means unrestricted.
	if _, err := r.Execute(context.Background(), "touch", `{"path":"/etc/passwd"}`, NewContext(t.TempDir())); err != nil {
		t.Fatalf("unrestricted: %v", err)
	}
}

// The timeout is checked after the executor returns, so an overrunning tool
// still runs to completion before the call is reported as failed.
func TestRegistry_TimeoutIsCheckedAfterExecution(t *testing.T) {
	r := NewRegistry()
	finished := false
	registerFunc(t, r, "slow", nil, func(context.Context, *Context, map[string]any) (string, error) {
		time.Sleep(60 * time.Millisecond)
		finished = true
		return "done", nil
	})
	out, err := r.Execute(context.Background(), "slow", "", NewContext(t.TempDir()).WithTimeout(10))
	if !finished {
		t.Fatalf("executor did not run to completion")
	}
	if out != "" || !IsKind(err, KindExecution) || !strings.Contains(err.Error(), "tool exceeded timeout of 10ms") {
		t.Fatalf("out=%q err=%v", out, err)
	}

	if _, err := r.Execute(context.Background(), "slow", "", NewContext(t.TempDir()).WithTimeout(0)); err != nil {
		t.Fatalf("zero timeout should be unbounded: %v", err)
	}
}

func TestRegistry_ExecutorSeesDeadline(t *testing.T) {
	r := NewRegistry()
	registerFunc(t, r, "wait", nil, func(ctx context.Context, _ *Context, _ map[string]any) (string, error) {
		if _, ok := ctx.Deadline(); !ok {
			return "no deadline", nil
		}
		return "deadline", nil
	})
	out, err := r.Execute(context.Background(), "wait", "", NewContext(t.TempDir()).WithTimeout(1000))
	if err != nil || out != "deadline" {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestRegistry_PanicBecomesFatal(t *testing.T) {
	r := NewRegistry()
	registerFunc(t, r, "boom", nil, func(context.Context, *Context, map[string]any) (string, error) {
		panic("kaboom")
	})
	_, err := r.Execute(context.Background(), "boom", "", NewContext(t.TempDir()))
	if !IsKind(err, KindFatal) || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("err=%v", err)
	}
}

func TestRegistry_ReplaceKeepsPosition(t *testing.T) {
	r := newBuiltinRegistry(t)
	before := r.ToolNames()
	registerFunc(t, r, "echo", []Param{{Name: "text", Type: "string"}}, func(context.Context, *Context, map[string]any) (string, error) {
		return "replaced", nil
	})
	after := r.ToolNames()
	if strings.Join(before, ",") != strings.Join(after, ",") {
		t.Fatalf("order changed: %v -> %v", before, after)
	}
	out, err := r.Execute(context.Background(), "echo", `{"text":"x"}`, NewContext(t.TempDir()))
	if err != nil || out != "replaced" {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestRegistry_RetainAndUnregister(t *testing.T) {
	r := newBuiltinRegistry(t)
	r.Retain([]string{"ls", "echo"})
	if got := strings.Join(r.ToolNames(), ","); got != "echo,ls" {
		t.Fatalf("names: %s", got)
	}
	if !r.Unregister("echo") || r.Unregister("echo") {
		t.Fatalf("unregister")
	}
	if got := strings.Join(r.ToolNames(), ","); got != "ls" {
		t.Fatalf("names: %s", got)
	}
	if !r.Has("ls") || r.Has("echo") {
		t.Fatalf("Has")
	}
}

func TestRegistry_RegisterRejectsBadDefinitions(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{Name: "9bad", Executor: echoTool().Executor}); err == nil {
		t.Fatalf("expected name error")
	}
	if err := r.Register(Definition{Name: "noexec"}); err == nil {
		t.Fatalf("expected executor error")
	}
	if err := r.Register(Definition{Name: "badtype", Params: []Param{{Name: "x", Type: "strnig"}}, Executor: echoTool().Executor}); err == nil {
		t.Fatalf("expected schema error")
	}
}

func TestDefinition_SchemaTypeUnion(t *testing.T) {
	s := patchTool().Schema()
	props := s["properties"].(map[string]any)
	typ, ok := props["patches"].(map[string]any)["type"].([]any)
	if !ok || len(typ) != 2 || typ[0] != "array" || typ[1] != "string" {
		t.Fatalf("patches type: %#v", props["patches"])
	}
}

func TestRegistry_ExecuteCall(t *testing.T) {
	r := NewRegistry()
	big := strings.Repeat("x", 100)
	if err := r.Register(Definition{
		Name:     "big",
		Executor: func(context.Context, *Context, map[string]any) (string, error) { return big, nil },
		Limit:    OutputLimit{MaxChars: 20, Strategy: TruncHeadTail},
	}); err != nil {
		t.Fatal(err)
	}
	res := r.ExecuteCall(context.Background(), Call{Name: "big", Arguments: "{}"}, NewContext(t.TempDir()))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Output)
	}
	if !strings.HasPrefix(res.CallID, "call_") {
		t.Fatalf("call id: %q", res.CallID)
	}
	if res.FullOutput != big || !strings.Contains(res.Output, "80 characters were removed") {
		t.Fatalf("output: %q", res.Output)
	}

	res = r.ExecuteCall(context.Background(), Call{ID: "c1", Name: "missing"}, NewContext(t.TempDir()))
	if !res.IsError || res.Kind != KindNotFound || res.CallID != "c1" {
		t.Fatalf("res: %+v", res)
	}
}

func TestTruncateLines(t *testing.T) {
	in := strings.Repeat("l\n", 9) + "l"
	out := truncateLines(in, 4)
	if !strings.Contains(out, "[... 6 lines omitted ...]") {
		t.Fatalf("out: %q", out)
	}
	if truncateLines("a\nb", 4) != "a\nb" {
		t.Fatalf("short input changed")
	}
}

func TestBuiltins_EchoAndTime(t *testing.T) {
	r := newBuiltinRegistry(t)
	out, err := r.Execute(context.Background(), "echo", `{"text":"hello"}`, NewContext(t.TempDir()))
	if err != nil || out != "hello" {
		t.Fatalf("echo: %q %v", out, err)
	}
	out, err = r.Execute(context.Background(), "time_now", "", NewContext(t.TempDir()))
	if err != nil {
		t.Fatalf("time_now: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, out); err != nil {
		t.Fatalf("time_now output %q: %v", out, err)
	}
	want := "echo,time_now,file_read,search,ls,patch,plan,rollback"
	if got := strings.Join(r.ToolNames(), ","); got != want {
		t.Fatalf("names: %s", got)
	}
}
