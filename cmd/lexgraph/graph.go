package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smallnest/lexgraph/config"
	"github.com/smallnest/lexgraph/graph"
	"github.com/smallnest/lexgraph/orchestrator"
)

func newGraphCommand() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the orchestration state machine",
		Long:  "Prints the state machine for the configured topology as a Mermaid flowchart or a Graphviz DOT graph.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configFile)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			g, err := orchestrator.Layout(cfg.Orchestrator)
			if err != nil {
				return err
			}

			exp := graph.NewExporter(g)
			var text string
			switch format {
			case "mermaid":
				text = exp.DrawMermaid()
			case "dot":
				text = exp.DrawDOT()
			default:
				return fmt.Errorf("invalid format %q: use mermaid or dot", format)
			}

			if output != "" {
				return os.WriteFile(output, []byte(text), 0o644)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "Output format: mermaid or dot")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout if not specified)")
	return cmd
}
