package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danshapiro/handrail/internal/sandbox"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_YAMLAppliesDefaults(t *testing.T) {
	p := writeConfig(t, "handrail.yaml", `
version: 1
tools:
  enabled: [echo, " file_read ", ""]
  sandbox:
    level: read-only
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tools.Execution != ExecutionAsk {
		t.Fatalf("execution: %q", cfg.Tools.Execution)
	}
	if cfg.Tools.Timeout() != DefaultTimeoutMS {
		t.Fatalf("timeout: %d", cfg.Tools.Timeout())
	}
	if got := strings.Join(cfg.Tools.Enabled, ","); got != "echo,file_read" {
		t.Fatalf("enabled: %q", got)
	}
	if cfg.Tools.Sandbox.Permissions().Level != sandbox.LevelReadOnly {
		t.Fatalf("sandbox: %+v", cfg.Tools.Sandbox.Permissions())
	}
	if cfg.PTY.Rows != DefaultRows || cfg.PTY.Cols != DefaultCols || cfg.PTY.MaxOutputBytes != DefaultMaxOutputBytes {
		t.Fatalf("pty defaults: %+v", cfg.PTY)
	}
	if cfg.Changes.MaxGroups != DefaultMaxGroups {
		t.Fatalf("max groups: %d", cfg.Changes.MaxGroups)
	}
}

func TestLoad_ExplicitZeroTimeoutIsUnbounded(t *testing.T) {
	p := writeConfig(t, "handrail.yaml", "tools:\n  timeout_ms: 0\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tools.Timeout() != 0 {
		t.Fatalf("timeout: %d", cfg.Tools.Timeout())
	}
}

func TestLoad_JSON(t *testing.T) {
	p := writeConfig(t, "handrail.json", `{"version":1,"tools":{"execution":"ALWAYS","timeout_ms":250}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tools.Execution != ExecutionAlways || cfg.Tools.Timeout() != 250 {
		t.Fatalf("tools: %+v", cfg.Tools)
	}
}

func TestLoad_EmptyYAMLIsDefault(t *testing.T) {
	p := writeConfig(t, "empty.yaml", "")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != 1 || cfg.Tools.Execution != ExecutionAsk {
		t.Fatalf("cfg: %+v", cfg)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name, file, body, want string
	}{
		{"unknown yaml field", "c.yaml", "tools:\n  bogus: 1\n", "bogus"},
		{"unknown json field", "c.json", `{"tools":{"bogus":1}}`, "bogus"},
		{"multiple yaml docs", "c.yaml", "version: 1\n---\nversion: 1\n", "multiple documents"},
		{"trailing json", "c.json", `{"version":1} {}`, "multiple top-level values"},
		{"bad version", "c.yaml", "version: 2\n", "unsupported config version"},
		{"bad execution", "c.yaml", "tools:\n  execution: sometimes\n", "tools.execution"},
		{"negative timeout", "c.yaml", "tools:\n  timeout_ms: -1\n", "tools.timeout_ms must be >= 0"},
		{"bad sandbox level", "c.yaml", "tools:\n  sandbox:\n    level: root\n", "tools.sandbox.level"},
		{"relative workspace", "c.yaml", "tools:\n  sandbox:\n    workspace_root: rel/dir\n", "absolute"},
		{"bad log level", "c.yaml", "logging:\n  level: loud\n", "logging.level"},
		{"negative max groups", "c.yaml", "changes:\n  max_groups: -3\n", "changes.max_groups"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.file, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want substring %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseExecutionMode(t *testing.T) {
	for in, want := range map[string]ExecutionMode{"": ExecutionAsk, "Never": ExecutionNever, " always ": ExecutionAlways} {
		got, err := ParseExecutionMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseExecutionMode(%q)=%q,%v", in, got, err)
		}
	}
	if _, err := ParseExecutionMode("maybe"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefault_Validates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()): %v", err)
	}
}
