package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danshapiro/handrail/internal/config"
	"github.com/danshapiro/handrail/internal/logs"
)

var (
	// Global flags
	verbose bool
	logJSON string

	logger *logs.Logger
)

var rootCmd = &cobra.Command{
	Use:   "handrail",
	Short: "Run agent tools behind a sandbox",
	Long: `handrail executes the tools an agent asks for: PTY shell sessions,
file reads, directory listings, searches and patches, gated by a sandbox
level, an allow-list of paths and an approval mode.

Commands:
  tools      List the registered tools
  exec       Run one tool call
  safe       Classify a command as safe or unsafe
  apply      Apply a unified diff
  usertool   Manage user-defined command tools`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

// exitError ends the process with code without printing anything further.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute adds all child commands to the root command and runs it.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, "handrail:", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logJSON, "log-json", "", "Also write JSON logs to this file")
}

func setupLogging(cmd *cobra.Command) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	l, err := logs.New(logs.Options{Level: level, JSONPath: logJSON, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(l.Logger)
	return nil
}

// applyLoggingConfig lets a config file raise or lower the level and add a
// JSON sink. Command-line flags win.
func applyLoggingConfig(cmd *cobra.Command, cfg config.LoggingConfig) error {
	if logger == nil {
		return nil
	}
	if cfg.JSONPath != "" && logJSON == "" {
		l, err := logs.New(logs.Options{Level: cfg.Level, JSONPath: cfg.JSONPath, Writer: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		_ = logger.Close()
		logger = l
		slog.SetDefault(l.Logger)
	}
	if verbose {
		logger.SetLevel(slog.LevelDebug)
		return nil
	}
	lvl, err := logs.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

func log() *slog.Logger {
	if logger != nil {
		return logger.Logger
	}
	return slog.Default()
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
