// Command lexgraph serves and queries the legal retrieval orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smallnest/lexgraph/app"
)

// newApp is replaced in tests.
var newApp = app.Build

var configFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lexgraph",
		Short: "Answer legal questions from a knowledge graph and a vector store",
		Long: `lexgraph answers natural-language legal questions by routing them through
graph queries and similarity search before synthesizing an answer.

Settings come from an optional YAML file (--config) and LEXGRAPH_*
environment variables; the environment wins.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")

	root.AddCommand(newServeCommand(), newAskCommand(), newGraphCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
