package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danshapiro/handrail/internal/tools"
)

var (
	userToolsFile string

	userToolDescription string
	userToolCommand     string
	userToolParams      []string
)

var usertoolCmd = &cobra.Command{
	Use:   "usertool",
	Short: "Manage user-defined command tools",
	Long: `User tools are shell command templates stored in a YAML file.
Parameters are substituted into the command as {{name}}.`,
}

var usertoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user tools",
	Args:  cobra.NoArgs,
	RunE:  runUserToolList,
}

var usertoolAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a user tool",
	Long: `Add a user tool. Parameters are given as name[:type][:required].

Example:
  handrail usertool add count_lines --command 'wc -l {{file}}' \
    --description "Count lines in a file" --param file:string:required`,
	Args: cobra.ExactArgs(1),
	RunE: runUserToolAdd,
}

var usertoolRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a user tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserToolRemove,
}

func init() {
	usertoolCmd.PersistentFlags().StringVar(&userToolsFile, "file", "", "User tools file (default: <user config dir>/handrail/tools.yaml)")
	usertoolAddCmd.Flags().StringVar(&userToolDescription, "description", "", "Tool description")
	usertoolAddCmd.Flags().StringVar(&userToolCommand, "command", "", "Command template")
	usertoolAddCmd.Flags().StringArrayVar(&userToolParams, "param", nil, "Parameter as name[:type][:required] (repeatable)")
	_ = usertoolAddCmd.MarkFlagRequired("command")

	usertoolCmd.AddCommand(usertoolListCmd, usertoolAddCmd, usertoolRemoveCmd)
	rootCmd.AddCommand(usertoolCmd)
}

func userToolsPath() (string, error) {
	if userToolsFile != "" {
		return userToolsFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "handrail", "tools.yaml"), nil
}

func runUserToolList(cmd *cobra.Command, args []string) error {
	path, err := userToolsPath()
	if err != nil {
		return err
	}
	cfg, err := tools.LoadUserTools(path)
	if err != nil {
		return err
	}
	if len(cfg.Tools) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No user tools in %s\n", path)
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMMAND\tDESCRIPTION")
	for _, t := range cfg.Tools {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Command, t.Description)
	}
	return w.Flush()
}

func runUserToolAdd(cmd *cobra.Command, args []string) error {
	path, err := userToolsPath()
	if err != nil {
		return err
	}
	cfg, err := tools.LoadUserTools(path)
	if err != nil {
		return err
	}
	t := tools.UserTool{
		Name:        args[0],
		Description: userToolDescription,
		Command:     userToolCommand,
	}
	for _, spec := range userToolParams {
		p, err := parseParamFlag(spec)
		if err != nil {
			return err
		}
		t.Params = append(t.Params, p)
	}
	if err := cfg.Add(t); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", t.Name, path)
	return nil
}

func runUserToolRemove(cmd *cobra.Command, args []string) error {
	path, err := userToolsPath()
	if err != nil {
		return err
	}
	cfg, err := tools.LoadUserTools(path)
	if err != nil {
		return err
	}
	if !cfg.Remove(args[0]) {
		return fmt.Errorf("no user tool named %q", args[0])
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

// parseParamFlag reads name[:type][:required].
func parseParamFlag(s string) (tools.UserToolParam, error) {
	parts := strings.Split(s, ":")
	p := tools.UserToolParam{Name: strings.TrimSpace(parts[0])}
	if p.Name == "" {
		return p, fmt.Errorf("invalid --param %q: missing name", s)
	}
	for _, part := range parts[1:] {
		switch part = strings.TrimSpace(part); part {
		case "required":
			p.Required = true
		case "string", "integer", "number", "boolean", "array", "object":
			p.ParamType = part
		default:
			return p, fmt.Errorf("invalid --param %q: unknown modifier %q", s, part)
		}
	}
	return p, nil
}
