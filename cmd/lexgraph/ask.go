package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smallnest/lexgraph/app"
	"github.com/smallnest/lexgraph/config"
	"github.com/smallnest/lexgraph/progress"
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func newAskCommand() *cobra.Command {
	var (
		sessionID string
		question  string
		quiet     bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and print the result",
		Example: `  lexgraph ask --session case-42 "Which articles regulate appeals?"
  lexgraph ask -q "What is a tort?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if question == "" && len(args) == 1 {
				question = args[0]
			}
			if strings.TrimSpace(question) == "" {
				return errors.New("a question is required")
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			// The CLI has no websocket clients.
			cfg.Progress.WebSocket = false
			return ask(cmd.Context(), cmd.OutOrStdout(), cfg, sessionID, question, quiet)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID (a random one when empty)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "The question to answer")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Print only the answer")
	return cmd
}

func ask(ctx context.Context, out io.Writer, cfg config.Config, sessionID, question string, quiet bool) error {
	var mu sync.Mutex
	opts := app.Options{}
	if !quiet {
		opts.Progress = progress.Func(func(_ context.Context, _ string, text string) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(out, statusStyle.Render("› "+text))
		})
	}

	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	// Close drains pending progress before the answer is printed.
	final, runErr := a.Orchestrator.Run(ctx, sessionID, question)
	closeErr := a.Close()
	if runErr != nil {
		return runErr
	}

	mu.Lock()
	defer mu.Unlock()
	if quiet {
		fmt.Fprintln(out, final.Answer)
		return closeErr
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Answer (session %s, depth %d, %d documents)", sessionID, final.Depth, len(final.Documents))))
	fmt.Fprintln(out, answerStyle.Render(final.Answer))
	for _, f := range final.Failures {
		fmt.Fprintln(out, failureStyle.Render(fmt.Sprintf("skipped %q in %s: %s", f.Query, f.Node, f.Err)))
	}
	return closeErr
}
