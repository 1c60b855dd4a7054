package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asksql/asksql/internal/executor"
	"github.com/asksql/asksql/internal/history"
	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/summarize"
	"github.com/asksql/asksql/internal/synth"
	"github.com/asksql/asksql/internal/workflow"
)

type staticSchema struct{ err error }

func (s staticSchema) Introspect(context.Context) (string, error) {
	return "Table 'employees':\n  name (TEXT)", s.err
}

type staticSynth struct{ query string }

func (s staticSynth) Synthesize(context.Context, synth.Request) (string, error) {
	return s.query, nil
}

type staticExecutor struct{}

func (staticExecutor) Execute(context.Context, string) executor.Outcome {
	return executor.Outcome{ResultText: "name\nAlice"}
}

type staticSummarizer struct{ err error }

func (s staticSummarizer) Summarize(context.Context, summarize.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "Alice is the only employee.", nil
}

type captureRecorder struct {
	records []history.Record
	err     error
}

func (c *captureRecorder) Record(_ context.Context, record history.Record) error {
	c.records = append(c.records, record)
	return c.err
}

func newService(query string, recorder history.Recorder) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	return &Service{
		Runner: &workflow.Orchestrator{
			Schema:      staticSchema{},
			Synthesizer: staticSynth{query: query},
			Executor:    staticExecutor{},
			Summarizer:  staticSummarizer{},
			Logger:      logger,
			NewRunID:    func() string { return "run-42" },
		},
		Recorder: recorder,
		Logger:   logger,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
}

func TestAskReturnsAnswerAndRecordsHistory(t *testing.T) {
	recorder := &captureRecorder{}
	svc := newService("SELECT name FROM employees", recorder)

	answer, err := svc.Ask(context.Background(), "  who works here?  ", nil)
	require.NoError(t, err)

	assert.Equal(t, "run-42", answer.RunID)
	assert.Equal(t, "who works here?", answer.Question)
	assert.Equal(t, "Alice is the only employee.", answer.Answer)
	assert.Equal(t, "SELECT name FROM employees", answer.Query)
	assert.Equal(t, 1, answer.Attempts)
	assert.Equal(t, workflow.OutcomeAnswered, answer.Outcome)
	assert.Equal(t, int64(1000), answer.DurationMs)

	require.Len(t, recorder.records, 1)
	record := recorder.records[0]
	assert.Equal(t, "run-42", record.RunID)
	assert.Equal(t, "answered", record.Outcome)
	assert.Equal(t, "safe", record.Safety)
	assert.True(t, record.FinishedAt.After(record.StartedAt))
}

func TestAskRejectedQueryStillAnswers(t *testing.T) {
	svc := newService("DROP TABLE employees", &captureRecorder{})

	answer, err := svc.Ask(context.Background(), "drop it", nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.OutcomeRejected, answer.Outcome)
	assert.Equal(t, 0, answer.Executions)
	assert.Contains(t, answer.LastError, "DROP")
	assert.NotEmpty(t, answer.Answer)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	svc := newService("SELECT 1", &captureRecorder{})
	_, err := svc.Ask(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAskHistoryFailureDoesNotFailRequest(t *testing.T) {
	svc := newService("SELECT 1", &captureRecorder{err: errors.New("bucket missing")})
	answer, err := svc.Ask(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.OutcomeAnswered, answer.Outcome)
}

func TestAskSurfacesSummarizeFailureAndRecordsIt(t *testing.T) {
	recorder := &captureRecorder{}
	svc := newService("SELECT 1", recorder)
	svc.Runner.(*workflow.Orchestrator).Summarizer = staticSummarizer{err: errors.New("quota")}

	answer, err := svc.Ask(context.Background(), "q", nil)
	var genErr *llm.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, workflow.OutcomeFailed, answer.Outcome)
	assert.Empty(t, answer.Answer)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, "failed", recorder.records[0].Outcome)
}

func TestAskForwardsEvents(t *testing.T) {
	svc := newService("SELECT 1", nil)
	var kinds []workflow.EventKind
	_, err := svc.Ask(context.Background(), "q", workflow.ObserverFunc(func(_ context.Context, event workflow.Event) {
		kinds = append(kinds, event.Kind)
	}))
	require.NoError(t, err)
	assert.Equal(t, workflow.EventSummarized, kinds[len(kinds)-1])
}
