package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danshapiro/handrail/internal/tools"
)

var (
	toolsOutput string
	toolsConfig string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	Long: `List every tool the configuration enables, including user tools.

Examples:
  handrail tools
  handrail tools -o json --config handrail.yaml`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVarP(&toolsOutput, "output", "o", "table", "Output format (table, json)")
	toolsCmd.Flags().StringVar(&toolsConfig, "config", "", "Config file (YAML or JSON)")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(toolsConfig)
	if err != nil {
		return err
	}
	env, err := newToolEnv(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	specs := env.registry.Specs()
	switch toolsOutput {
	case "json":
		b, err := json.MarshalIndent(specs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	case "table", "":
		return printToolTable(cmd, specs)
	default:
		return fmt.Errorf("unknown output format %q (want table|json)", toolsOutput)
	}
}

func printToolTable(cmd *cobra.Command, specs []tools.Spec) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
	fmt.Fprintln(w, "----\t------\t-----------")
	for _, s := range specs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, paramList(s.Parameters), firstSentence(s.Description, 60))
	}
	return w.Flush()
}

// paramList renders schema properties, marking required ones with "*".
func paramList(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, r := range req {
			required[r] = true
		}
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}
	names := make([]string, 0, len(props))
	for name := range props {
		if required[name] {
			name += "*"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

func firstSentence(s string, n int) string {
	if i := strings.Index(s, ". "); i >= 0 {
		s = s[:i+1]
	}
	if len(s) > n {
		s = s[:n-3] + "..."
	}
	return s
}
