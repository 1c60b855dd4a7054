package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/api"
	"github.com/asksql/asksql/internal/workflow"
)

type askOptions struct {
	jsonOutput bool
	quiet      bool
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the workflow trace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolveConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return runAsk(cmd.Context(), cmd.OutOrStdout(), a.service, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the answer as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print workflow events")
	return cmd
}

func runAsk(ctx context.Context, out io.Writer, asker api.Asker, question string, opts *askOptions) error {
	var observer workflow.Observer
	if !opts.quiet {
		observer = workflow.ObserverFunc(func(_ context.Context, event workflow.Event) {
			printEvent(out, event)
		})
	}
	answer, err := asker.Ask(ctx, question, observer)
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(answer)
	}
	printAnswer(out, answer)
	return nil
}

func printEvent(out io.Writer, event workflow.Event) {
	switch event.Kind {
	case workflow.EventQuerySynthesized:
		_, _ = fmt.Fprintf(out, "[%s] attempt %d: %s\n", event.Kind, event.RetryCount, event.Query)
	case workflow.EventSynthesisFailed:
		_, _ = fmt.Fprintf(out, "[%s] attempt %d: %s\n", event.Kind, event.RetryCount, event.Message)
	case workflow.EventSafetyVerdict:
		verdict := "safe"
		if !event.Safe {
			verdict = "unsafe: " + strings.Join(event.Keywords, ", ")
		}
		_, _ = fmt.Fprintf(out, "[%s] %s\n", event.Kind, verdict)
	case workflow.EventExecuted:
		if event.Message != "" {
			_, _ = fmt.Fprintf(out, "[%s] error: %s\n", event.Kind, event.Message)
			return
		}
		_, _ = fmt.Fprintf(out, "[%s] ok\n", event.Kind)
	default:
		_, _ = fmt.Fprintf(out, "[%s]\n", event.Kind)
	}
}

func printAnswer(out io.Writer, answer agent.Answer) {
	_, _ = fmt.Fprintf(out, "\n%s\n\n", answer.Answer)
	_, _ = fmt.Fprintf(out, "outcome:  %s\n", answer.Outcome)
	_, _ = fmt.Fprintf(out, "attempts: %d\n", answer.Attempts)
	if answer.Query != "" {
		_, _ = fmt.Fprintf(out, "query:    %s\n", answer.Query)
	}
	_, _ = fmt.Fprintf(out, "run:      %s\n", answer.RunID)
}
