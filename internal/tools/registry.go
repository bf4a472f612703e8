package tools

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zeebo/blake3"
)

type registeredTool struct {
	def    Definition
	schema *jsonschema.Schema
}

// Registry is an ordered set of tools. Registering a name that already exists
// replaces the earlier definition in place, so listing order is stable.
type Registry struct {
	mu    sync.RWMutex
	tools []registeredTool
	index map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: map[string]int{}}
}

func (r *Registry) Register(def Definition) error {
	if err := validateToolName(def.Name); err != nil {
		return err
	}
	if def.Executor == nil {
		return fmt.Errorf("tool %s missing executor", def.Name)
	}
	if def.Limit.MaxChars == 0 {
		def.Limit = defaultLimit(def.Name)
	}
	schema, err := compileSchema(def.Schema())
	if err != nil {
		return fmt.Errorf("tool %s schema: %w", def.Name, err)
	}
	rt := registeredTool{def: def, schema: schema}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = map[string]int{}
	}
	if i, ok := r.index[def.Name]; ok {
		r.tools[i] = rt
		return nil
	}
	r.index[def.Name] = len(r.tools)
	r.tools = append(r.tools, rt)
	return nil
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[name]
	if !ok {
		return false
	}
	r.tools = append(r.tools[:i], r.tools[i+1:]...)
	r.reindexLocked()
	return true
}

// Retain drops every tool whose name is not listed. An empty list keeps all.
func (r *Registry) Retain(names []string) {
	if len(names) == 0 {
		return
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[strings.TrimSpace(n)] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.tools[:0]
	for _, t := range r.tools {
		if keep[t.def.Name] {
			out = append(out, t)
		}
	}
	r.tools = out
	r.reindexLocked()
}

func (r *Registry) reindexLocked() {
	r.index = make(map[string]int, len(r.tools))
	for i, t := range r.tools {
		r.index[t.def.Name] = i
	}
}

func (r *Registry) lookup(name string) (registeredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return registeredTool{}, false
	}
	return r.tools[i], true
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	t, ok := r.lookup(name)
	return t.def, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.def.Name)
	}
	return out
}

func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.def)
	}
	return out
}

func (r *Registry) Specs() []Spec {
	defs := r.Definitions()
	out := make([]Spec, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Spec())
	}
	return out
}

// Execute resolves, validates, authorizes and runs one tool call.
//
// The timeout check happens after the executor returns: a call that overruns
// TimeoutMS fails even if it produced output. Executors also receive a context
// carrying the same deadline so blocking work can stop early.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string, tc *Context) (string, error) {
	if tc == nil {
		tc = NewContext("")
	}
	t, ok := r.lookup(name)
	if !ok {
		return "", NotFound("tool %s", name)
	}
	args, err := parseArgs(argsJSON)
	if err != nil {
		return "", err
	}
	if err := t.schema.Validate(args); err != nil {
		return "", InvalidArgs("schema validation failed: %v", err)
	}
	if err := checkAllowedPaths(args, tc.AllowedPaths); err != nil {
		return "", err
	}

	execCtx := ctx
	if d := tc.timeout(); d > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	out, err := runExecutor(execCtx, t.def, tc, args)
	elapsed := time.Since(start)
	tc.logger().Debug("tool executed", "tool", name, "duration_ms", elapsed.Milliseconds(), "error", err != nil)
	if d := tc.timeout(); d > 0 && elapsed > d {
		return "", Execution("tool exceeded timeout of %dms", tc.TimeoutMS)
	}
	return out, err
}

func runExecutor(ctx context.Context, def Definition, tc *Context, args map[string]any) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			tc.logger().Error("tool panicked", "tool", def.Name, "panic", rec, "stack", string(debug.Stack()))
			out, err = "", Fatal("tool %s panicked: %v", def.Name, rec)
		}
	}()
	return def.Executor(ctx, tc, args)
}

// parseArgs decodes the raw argument string. Blank input is an empty object;
// a non-object value is exposed under the "input" key.
func parseArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, InvalidArgs("invalid tool arguments JSON: %v", err)
	}
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case nil:
		return map[string]any{}, nil
	default:
		return map[string]any{"input": x}, nil
	}
}

func checkAllowedPaths(args map[string]any, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	var paths []string
	if p, ok := args["path"].(string); ok {
		paths = append(paths, p)
	}
	if list, ok := args["paths"].([]any); ok {
		for _, v := range list {
			if p, ok := v.(string); ok {
				paths = append(paths, p)
			}
		}
	}
	for _, p := range paths {
		if !pathAllowed(p, allowed) {
			return Execution("path not allowed: %s", p)
		}
	}
	return nil
}

// pathAllowed accepts p when it starts with an allowed prefix or matches an
// allowed doublestar pattern.
func pathAllowed(p string, allowed []string) bool {
	for _, a := range allowed {
		if a == "" {
			continue
		}
		if strings.HasPrefix(p, a) {
			return true
		}
		if strings.ContainsAny(a, "*?[{") {
			if ok, err := doublestar.Match(a, p); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func compileSchema(params map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

// Call is one model-issued tool invocation.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

type Result struct {
	ToolName string
	CallID   string

	// Output is the truncated text sent back to the model.
	Output string
	// FullOutput is the untruncated text.
	FullOutput string

	IsError  bool
	Kind     Kind
	Duration time.Duration
}

// ExecuteCall runs a call and renders the outcome as model-facing text. It
// never returns an error; failures are reported through Result.IsError.
func (r *Registry) ExecuteCall(ctx context.Context, call Call, tc *Context) Result {
	callID := call.ID
	if strings.TrimSpace(callID) == "" {
		callID = "call_" + shortHash(call.Name+"\x00"+call.Arguments)
	}
	lim := defaultLimit(call.Name)
	if t, ok := r.lookup(call.Name); ok {
		lim = t.def.Limit
	}

	start := time.Now()
	out, err := r.Execute(ctx, call.Name, call.Arguments, tc)
	res := Result{ToolName: call.Name, CallID: callID, Duration: time.Since(start)}
	if err != nil {
		res.IsError = true
		res.Kind, _ = KindOf(err)
		out = err.Error()
		if tc != nil {
			tc.logger().Warn("tool call failed", "tool", call.Name, "call_id", callID, "kind", res.Kind.String(), "error", err)
		} else {
			slog.Warn("tool call failed", "tool", call.Name, "call_id", callID, "error", err)
		}
	}
	res.FullOutput = out
	res.Output = applyLimit(out, lim)
	return res
}

func shortHash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
