package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/danshapiro/handrail/internal/procutil"
)

// UserTool is a command template persisted in the user tools file.
// Parameters are substituted into Command as {{name}}.
type UserTool struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Params      []UserToolParam `yaml:"params,omitempty" json:"params,omitempty"`
	Command     string          `yaml:"command" json:"command"`
}

type UserToolParam struct {
	Name        string `yaml:"name" json:"name"`
	ParamType   string `yaml:"param_type,omitempty" json:"param_type,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

type UserToolsConfig struct {
	Tools []UserTool `yaml:"tools" json:"tools"`
}

// LoadUserTools reads path strictly. A missing file is an empty config.
func LoadUserTools(path string) (*UserToolsConfig, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &UserToolsConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg UserToolsConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, t := range cfg.Tools {
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("%s: tools[%d]: %w", path, i, err)
		}
	}
	return &cfg, nil
}

func (c *UserToolsConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Add appends t, replacing any tool with the same name.
func (c *UserToolsConfig) Add(t UserTool) error {
	if err := t.validate(); err != nil {
		return err
	}
	c.Remove(t.Name)
	c.Tools = append(c.Tools, t)
	return nil
}

func (c *UserToolsConfig) Remove(name string) bool {
	out := c.Tools[:0]
	removed := false
	for _, t := range c.Tools {
		if t.Name == name {
			removed = true
			continue
		}
		out = append(out, t)
	}
	c.Tools = out
	return removed
}

func (c *UserToolsConfig) Get(name string) (UserTool, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return UserTool{}, false
}

func (t UserTool) validate() error {
	if err := validateToolName(t.Name); err != nil {
		return err
	}
	if strings.TrimSpace(t.Command) == "" {
		return fmt.Errorf("tool %s: command is required", t.Name)
	}
	for _, p := range t.Params {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("tool %s: parameter name is required", t.Name)
		}
	}
	return nil
}

// Definition turns the template into a registrable tool.
func (t UserTool) Definition() Definition {
	def := Definition{
		Name:        t.Name,
		Description: t.Description,
	}
	for _, p := range t.Params {
		typ := p.ParamType
		if typ == "" {
			typ = "string"
		}
		def.Params = append(def.Params, Param{Name: p.Name, Type: typ, Description: p.Description})
		if p.Required {
			def.Required = append(def.Required, p.Name)
		}
	}
	command, name := t.Command, t.Name
	def.Executor = func(ctx context.Context, tc *Context, args map[string]any) (string, error) {
		return runCommandTool(ctx, tc, name, command, args)
	}
	return def
}

// RegisterUserTools loads path and registers every tool in it. A user tool
// with a built-in's name replaces the built-in in place.
func (r *Registry) RegisterUserTools(path string) (int, error) {
	cfg, err := LoadUserTools(path)
	if err != nil {
		return 0, err
	}
	for _, t := range cfg.Tools {
		if err := r.Register(t.Definition()); err != nil {
			return 0, fmt.Errorf("user tool %s: %w", t.Name, err)
		}
	}
	return len(cfg.Tools), nil
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ExpandTemplate substitutes {{key}} placeholders in a single pass over the
// template. Substituted values are never re-expanded. A placeholder with no
// matching argument means a parameter was not supplied.
func ExpandTemplate(template string, args map[string]any) (string, error) {
	missing := false
	out := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		v, ok := args[m[2:len(m)-2]]
		if !ok {
			missing = true
			return m
		}
		return templateValue(v)
	})
	if missing {
		return "", InvalidArgs("Missing required parameters in command")
	}
	return out, nil
}

func templateValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func userToolShell() string {
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

func runCommandTool(ctx context.Context, tc *Context, name, template string, args map[string]any) (string, error) {
	command, err := ExpandTemplate(template, args)
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, userToolShell(), "-c", command)
	cmd.Dir = tc.workingDir()
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return procutil.KillGroup(cmd.Process.Pid) }
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", Timeout(tc.timeout())
	}
	if runErr != nil {
		var ee *exec.ExitError
		if !errors.As(runErr, &ee) {
			return "", Execution("Failed to execute %s: %v", name, runErr)
		}
		msg := stderr.String()
		if strings.TrimSpace(msg) == "" {
			msg = stdout.String()
		}
		return "", Execution("%s exited with code %d: %s", name, ee.ExitCode(), strings.TrimSpace(msg))
	}
	if stdout.Len() == 0 && stderr.Len() > 0 {
		return stderr.String(), nil
	}
	return stdout.String(), nil
}
