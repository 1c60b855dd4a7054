package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/asksql/asksql/internal/history"
	"github.com/asksql/asksql/internal/observability"
	"github.com/asksql/asksql/internal/workflow"
)

var ErrEmptyQuestion = errors.New("question is required")

const historyTimeout = 10 * time.Second

type Runner interface {
	RunObserved(ctx context.Context, question string, observer workflow.Observer) (*workflow.Context, error)
}

type Answer struct {
	RunID      string           `json:"run_id"`
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	Query      string           `json:"query"`
	Attempts   int              `json:"attempts"`
	Executions int              `json:"executions"`
	Safety     string           `json:"safety"`
	Outcome    workflow.Outcome `json:"outcome"`
	LastError  string           `json:"last_error,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// Service answers one question per call and records the run. History
// failures are logged and counted but never fail the request.
type Service struct {
	Runner   Runner
	Recorder history.Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Service) Ask(ctx context.Context, question string, observer workflow.Observer) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	startedAt := s.now()
	wf, runErr := s.Runner.RunObserved(ctx, question, observer)
	finishedAt := s.now()
	if wf == nil {
		return Answer{Question: question}, runErr
	}

	answer := Answer{
		RunID:      wf.RunID(),
		Question:   question,
		Query:      wf.CandidateQuery(),
		Attempts:   wf.RetryCount(),
		Executions: wf.Executions(),
		Safety:     wf.Safety().String(),
		Outcome:    wf.Outcome(),
		LastError:  wf.LastError(),
		DurationMs: finishedAt.Sub(startedAt).Milliseconds(),
	}
	if runErr == nil {
		answer.Answer = wf.ResultText()
	}
	observability.ObserveRun(string(answer.Outcome), answer.Attempts)
	s.record(ctx, answer, startedAt, finishedAt)

	logger := s.logger()
	if runErr != nil {
		logger.ErrorContext(ctx, "question_failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("run_id", answer.RunID),
			slog.Int("attempts", answer.Attempts),
			slog.String("error", runErr.Error()),
		)
		return answer, runErr
	}
	logger.InfoContext(ctx, "question_answered",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("run_id", answer.RunID),
		slog.String("outcome", string(answer.Outcome)),
		slog.Int("attempts", answer.Attempts),
		slog.Int64("duration_ms", answer.DurationMs),
	)
	return answer, nil
}

func (s *Service) record(ctx context.Context, answer Answer, startedAt, finishedAt time.Time) {
	if s.Recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	err := s.Recorder.Record(recordCtx, history.Record{
		RunID:      answer.RunID,
		Question:   answer.Question,
		Query:      answer.Query,
		Attempts:   answer.Attempts,
		Executions: answer.Executions,
		Safety:     answer.Safety,
		Answer:     answer.Answer,
		LastError:  answer.LastError,
		Outcome:    string(answer.Outcome),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	})
	if err != nil {
		observability.IncrementHistoryFailures()
		s.logger().WarnContext(ctx, "history_record_failed",
			slog.String("run_id", answer.RunID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}
