package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danshapiro/handrail/internal/sandbox"
)

const (
	DefaultTimeoutMS      = 5000
	DefaultMaxGroups      = 100
	DefaultMaxOutputBytes = 100_000
	DefaultRows           = 24
	DefaultCols           = 120
	DefaultLogLevel       = "info"
)

type ExecutionMode string

const (
	ExecutionAlways ExecutionMode = "always"
	ExecutionAsk    ExecutionMode = "ask"
	ExecutionNever  ExecutionMode = "never"
)

func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch m := ExecutionMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ExecutionAsk, nil
	case ExecutionAlways, ExecutionAsk, ExecutionNever:
		return m, nil
	default:
		return "", fmt.Errorf("invalid execution mode: %q (want always|ask|never)", s)
	}
}

type SandboxConfig struct {
	Level         string `json:"level,omitempty" yaml:"level,omitempty"`
	WorkspaceRoot string `json:"workspace_root,omitempty" yaml:"workspace_root,omitempty"`
}

// Permissions resolves the sandbox section. Callers are expected to have run
// Validate, so a bad level falls back to the default.
func (s SandboxConfig) Permissions() sandbox.Permissions {
	lvl, err := sandbox.ParseLevel(s.Level)
	if err != nil {
		lvl = sandbox.LevelWorkspaceWrite
	}
	return sandbox.New(lvl).WithWorkspace(s.WorkspaceRoot)
}

type ToolsConfig struct {
	Execution    ExecutionMode `json:"execution,omitempty" yaml:"execution,omitempty"`
	Enabled      []string      `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	AllowedPaths []string      `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`
	// TimeoutMS of 0 disables the per-call timeout; unset means the default.
	TimeoutMS     *int          `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Sandbox       SandboxConfig `json:"sandbox,omitempty" yaml:"sandbox,omitempty"`
	UserToolsPath string        `json:"user_tools_path,omitempty" yaml:"user_tools_path,omitempty"`
}

func (t ToolsConfig) Timeout() int {
	if t.TimeoutMS == nil {
		return DefaultTimeoutMS
	}
	return *t.TimeoutMS
}

type PTYConfig struct {
	Shell          string `json:"shell,omitempty" yaml:"shell,omitempty"`
	MaxOutputBytes int    `json:"max_output_bytes,omitempty" yaml:"max_output_bytes,omitempty"`
	Rows           int    `json:"rows,omitempty" yaml:"rows,omitempty"`
	Cols           int    `json:"cols,omitempty" yaml:"cols,omitempty"`
}

type ChangesConfig struct {
	MaxGroups int `json:"max_groups,omitempty" yaml:"max_groups,omitempty"`
}

type LoggingConfig struct {
	Level    string `json:"level,omitempty" yaml:"level,omitempty"`
	JSONPath string `json:"json_path,omitempty" yaml:"json_path,omitempty"`
}

type Config struct {
	Version int           `json:"version" yaml:"version"`
	Tools   ToolsConfig   `json:"tools,omitempty" yaml:"tools,omitempty"`
	PTY     PTYConfig     `json:"pty,omitempty" yaml:"pty,omitempty"`
	Changes ChangesConfig `json:"changes,omitempty" yaml:"changes,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Default returns a fully defaulted config, used when no file is given.
func Default() *Config {
	cfg := &Config{Version: 1}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML or JSON (by extension) config file strictly: unknown
// fields and trailing documents are rejected.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := decodeJSONStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := decodeYAMLStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("json: multiple top-level values are not allowed")
		}
		return err
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(string(cfg.Tools.Execution)) == "" {
		cfg.Tools.Execution = ExecutionAsk
	}
	cfg.Tools.Execution = ExecutionMode(strings.ToLower(strings.TrimSpace(string(cfg.Tools.Execution))))
	if cfg.Tools.TimeoutMS == nil {
		ms := DefaultTimeoutMS
		cfg.Tools.TimeoutMS = &ms
	}
	cfg.Tools.Enabled = trimNonEmpty(cfg.Tools.Enabled)
	cfg.Tools.AllowedPaths = trimNonEmpty(cfg.Tools.AllowedPaths)
	if cfg.PTY.MaxOutputBytes == 0 {
		cfg.PTY.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.PTY.Rows == 0 {
		cfg.PTY.Rows = DefaultRows
	}
	if cfg.PTY.Cols == 0 {
		cfg.PTY.Cols = DefaultCols
	}
	if cfg.Changes.MaxGroups == 0 {
		cfg.Changes.MaxGroups = DefaultMaxGroups
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}

func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", cfg.Version)
	}
	if _, err := ParseExecutionMode(string(cfg.Tools.Execution)); err != nil {
		return fmt.Errorf("invalid tools.execution: %q (want always|ask|never)", cfg.Tools.Execution)
	}
	if cfg.Tools.TimeoutMS != nil && *cfg.Tools.TimeoutMS < 0 {
		return fmt.Errorf("tools.timeout_ms must be >= 0")
	}
	if _, err := sandbox.ParseLevel(cfg.Tools.Sandbox.Level); err != nil {
		return fmt.Errorf("invalid tools.sandbox.level: %q (want read_only|workspace_write|full_access)", cfg.Tools.Sandbox.Level)
	}
	if root := strings.TrimSpace(cfg.Tools.Sandbox.WorkspaceRoot); root != "" && !filepath.IsAbs(root) {
		return fmt.Errorf("tools.sandbox.workspace_root must be an absolute path: %q", root)
	}
	if cfg.PTY.MaxOutputBytes < 0 {
		return fmt.Errorf("pty.max_output_bytes must be >= 0")
	}
	if cfg.PTY.Rows < 0 || cfg.PTY.Rows > 0xffff || cfg.PTY.Cols < 0 || cfg.PTY.Cols > 0xffff {
		return fmt.Errorf("pty.rows and pty.cols must be between 0 and 65535")
	}
	if cfg.Changes.MaxGroups < 0 {
		return fmt.Errorf("changes.max_groups must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q (want debug|info|warn|error)", cfg.Logging.Level)
	}
	return nil
}

func trimNonEmpty(parts []string) []string {
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
