package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danshapiro/handrail/internal/config"
	"github.com/danshapiro/handrail/internal/sandbox"
	"github.com/danshapiro/handrail/internal/tools"
)

var (
	execConfig        string
	execWorkdir       string
	execSandbox       string
	execWorkspaceRoot string
	execTimeoutMS     int
	execYes           bool
)

var execCmd = &cobra.Command{
	Use:   "exec <tool> [json-args]",
	Short: "Run one tool call",
	Long: `Run a single tool call through the approval gate.

Arguments are a JSON object. Pass "-" to read them from stdin. In ask mode
mutating tools prompt on the terminal unless --yes is given.

Examples:
  handrail exec ls '{"dir_path":"/tmp"}'
  handrail exec shell '{"cmd":"go test ./..."}' --yes
  echo '{"patches":"*** Begin Patch..."}' | handrail exec patch -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVar(&execConfig, "config", "", "Config file (YAML or JSON)")
	execCmd.Flags().StringVar(&execWorkdir, "workdir", "", "Working directory for the tool (default: current directory)")
	execCmd.Flags().StringVar(&execSandbox, "sandbox", "", "Sandbox level (read_only, workspace_write, full_access)")
	execCmd.Flags().StringVar(&execWorkspaceRoot, "workspace-root", "", "Directory writes are confined to under workspace_write")
	execCmd.Flags().IntVar(&execTimeoutMS, "timeout-ms", config.DefaultTimeoutMS, "Per-call timeout in milliseconds (0 disables)")
	execCmd.Flags().BoolVarP(&execYes, "yes", "y", false, "Run without asking for approval")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(execConfig)
	if err != nil {
		return err
	}
	if err := applyLoggingConfig(cmd, cfg.Logging); err != nil {
		return err
	}
	if err := applyExecOverrides(cmd, cfg); err != nil {
		return err
	}
	workdir, err := resolveWorkdir(execWorkdir)
	if err != nil {
		return err
	}
	raw, err := readCallArgs(cmd, args)
	if err != nil {
		return err
	}

	env, err := newToolEnv(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := cfg.Tools.Execution
	if execYes {
		mode = config.ExecutionAlways
	}
	runner := tools.NewRunner(env.registry, mode, terminalApprover(cmd))
	runner.Logger = log()

	out := runner.Run(ctx, tools.Call{Name: args[0], Arguments: raw}, env.context(workdir))
	fmt.Fprintln(cmd.OutOrStdout(), out.Output)
	log().Debug("tool call finished", "tool", args[0], "executed", out.Executed, "success", out.Success)
	if !out.Success {
		return exitError{code: 1}
	}
	return nil
}

// applyExecOverrides layers command-line flags over the loaded config.
func applyExecOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if execSandbox != "" {
		lvl, err := sandbox.ParseLevel(execSandbox)
		if err != nil {
			return err
		}
		cfg.Tools.Sandbox.Level = string(lvl)
	}
	if execWorkspaceRoot != "" {
		abs, err := filepath.Abs(execWorkspaceRoot)
		if err != nil {
			return err
		}
		cfg.Tools.Sandbox.WorkspaceRoot = abs
	}
	if cmd.Flags().Changed("timeout-ms") {
		if execTimeoutMS < 0 {
			return fmt.Errorf("--timeout-ms must be >= 0")
		}
		ms := execTimeoutMS
		cfg.Tools.TimeoutMS = &ms
	}
	return config.Validate(cfg)
}

func readCallArgs(cmd *cobra.Command, args []string) (string, error) {
	if len(args) < 2 {
		return "", nil
	}
	if args[1] != "-" {
		return args[1], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read arguments: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
