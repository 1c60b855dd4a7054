package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/api"
)

const maxQuestionLine = 64 * 1024

type batchOptions struct {
	input       string
	concurrency int
}

type batchResult struct {
	Index  int           `json:"index"`
	Answer *agent.Answer `json:"answer,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func newBatchCmd(flags *rootFlags) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Answer one question per input line and print NDJSON results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := opts.input
			if len(args) == 1 {
				input = args[0]
			}
			questions, err := readQuestionsFrom(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			cfg, err := flags.resolveConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			results, err := askAll(cmd.Context(), a.service, questions, opts.concurrency)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "file", "f", "-", "File with one question per line, - for stdin")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 4, "Maximum questions answered in parallel")
	return cmd
}

func readQuestionsFrom(stdin io.Reader, path string) ([]string, error) {
	if path == "" || path == "-" {
		return readQuestions(stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return readQuestions(file)
}

// readQuestions skips blank lines and lines starting with '#'.
func readQuestions(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxQuestionLine)
	var questions []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions provided")
	}
	return questions, nil
}

// askAll answers every question with bounded parallelism. A failed question
// is reported in its result; only cancellation of ctx fails the batch.
// Results keep input order.
func askAll(ctx context.Context, asker api.Asker, questions []string, limit int) ([]batchResult, error) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]batchResult, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, question := range questions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := batchResult{Index: i}
			answer, err := asker.Ask(gctx, question, nil)
			if err != nil {
				result.Error = err.Error()
				if answer.RunID != "" {
					result.Answer = &answer
				}
			} else {
				result.Answer = &answer
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch canceled: %w", err)
	}
	return results, nil
}

func writeResults(out io.Writer, results []batchResult) error {
	encoder := json.NewEncoder(out)
	for _, result := range results {
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("write result %d: %w", result.Index, err)
		}
	}
	return nil
}
