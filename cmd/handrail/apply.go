package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danshapiro/handrail/internal/diff"
)

var (
	applyWorkdir string
	applyDryRun  bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <diff-file>",
	Short: "Apply a unified diff",
	Long: `Parse a unified diff, accept every hunk and write the result under the
working directory. Existing files are backed up to <file>.bak. Use "-" to
read the diff from stdin.

Examples:
  handrail apply fix.diff
  git diff | handrail apply - --workdir ../other --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyWorkdir, "workdir", "", "Directory diff paths are relative to (default: current directory)")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Check that every hunk applies without writing")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	text, err := readDiff(cmd, args[0])
	if err != nil {
		return err
	}
	base, err := resolveWorkdir(applyWorkdir)
	if err != nil {
		return err
	}
	view, err := diff.Parse(text)
	if err != nil {
		return err
	}
	view.AcceptAll()
	files, added, removed := view.Stats()

	if applyDryRun {
		for i := range view.Files {
			f := &view.Files[i]
			p, err := diff.TargetPath(f, base)
			if err != nil {
				return err
			}
			cur, err := os.ReadFile(p)
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			if _, err := diff.Render(f, string(cur)); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok", p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) would change (+%d -%d)\n", files, added, removed)
		return nil
	}

	written, err := diff.Apply(view, base)
	for _, p := range written {
		fmt.Fprintln(cmd.OutOrStdout(), "updated", p)
	}
	if err != nil {
		return err
	}
	log().Info("diff applied", "files", files, "added", added, "removed", removed)
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d file(s) (+%d -%d)\n", files, added, removed)
	return nil
}

func readDiff(cmd *cobra.Command, name string) (string, error) {
	var (
		b   []byte
		err error
	)
	if name == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read diff: %w", err)
	}
	return string(b), nil
}
