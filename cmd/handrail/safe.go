package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danshapiro/handrail/internal/sandbox"
)

var safeScript bool

var safeCmd = &cobra.Command{
	Use:   "safe [--script] -- <argv...>",
	Short: "Classify a command as safe or unsafe",
	Long: `Report whether a command would be auto-approved. Exits 1 when unsafe.

Examples:
  handrail safe -- git status
  handrail safe -- bash -lc "ls && cat README.md"
  handrail safe --script "rg TODO | head"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSafe,
}

func init() {
	safeCmd.Flags().BoolVar(&safeScript, "script", false, "Treat the arguments as one shell script")
	rootCmd.AddCommand(safeCmd)
}

func runSafe(cmd *cobra.Command, args []string) error {
	var ok bool
	if safeScript {
		ok = sandbox.IsSafeScript(strings.Join(args, " "))
	} else {
		ok = sandbox.IsSafeCommand(args)
	}
	if ok {
		fmt.Fprintln(cmd.OutOrStdout(), "safe")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "unsafe")
	return exitError{code: 1}
}
