package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/asksql/asksql/internal/executor"
	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/observability"
	"github.com/asksql/asksql/internal/safety"
	"github.com/asksql/asksql/internal/summarize"
	"github.com/asksql/asksql/internal/synth"
)

type SchemaSource interface {
	Introspect(ctx context.Context) (string, error)
}

type QuerySynthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) (string, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, query string) executor.Outcome
}

type AnswerSummarizer interface {
	Summarize(ctx context.Context, req summarize.Request) (string, error)
}

type Gate func(query string) safety.Verdict

// Orchestrator runs the fetch, synthesize, check, execute and summarize
// loop. It holds no per-run state, so one value serves concurrent runs.
type Orchestrator struct {
	Schema      SchemaSource
	Synthesizer QuerySynthesizer
	Executor    QueryExecutor
	Summarizer  AnswerSummarizer
	// Gate defaults to safety.Evaluate.
	Gate     Gate
	Dialect  string
	Logger   *slog.Logger
	NewRunID func() string
}

func (o *Orchestrator) Run(ctx context.Context, question string) (*Context, error) {
	return o.RunObserved(ctx, question, nil)
}

// RunObserved drives one question to the terminal state. The returned
// Context is non-nil even on error. Only introspection failures, summarize
// failures and context cancellation are returned as errors.
func (o *Orchestrator) RunObserved(ctx context.Context, question string, observer Observer) (*Context, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	wf := NewContext(o.newRunID(), question)
	logger := o.logger().With(slog.String("run_id", wf.runID))

	state := StateFetchSchema
	for state != StateTerminal {
		if err := ctx.Err(); err != nil {
			wf.fail()
			return wf, fmt.Errorf("run %s aborted before %s: %w", wf.runID, state, err)
		}

		wf.state = state
		logger.DebugContext(ctx, "workflow_transition",
			slog.String("state", string(state)),
			slog.Int("retry_count", wf.retryCount),
		)

		start := time.Now()
		next, err := o.step(ctx, wf, state, observer)
		observability.ObserveStep(string(state), time.Since(start))
		if err != nil {
			wf.fail()
			logger.WarnContext(ctx, "workflow_failed",
				slog.String("state", string(state)),
				slog.Int("retry_count", wf.retryCount),
				slog.String("error", err.Error()),
			)
			return wf, err
		}
		state = next
	}

	wf.state = StateTerminal
	return wf, nil
}

func (o *Orchestrator) step(ctx context.Context, wf *Context, state State, observer Observer) (State, error) {
	switch state {
	case StateFetchSchema:
		return o.fetchSchema(ctx, wf, observer)
	case StateSynthesize:
		return o.synthesize(ctx, wf, observer)
	case StateEvaluateSafety:
		return o.evaluateSafety(ctx, wf, observer)
	case StateExecute:
		return o.execute(ctx, wf, observer)
	case StateSummarize:
		return o.summarize(ctx, wf, observer)
	default:
		return StateTerminal, fmt.Errorf("unknown workflow state %q", state)
	}
}

func (o *Orchestrator) fetchSchema(ctx context.Context, wf *Context, observer Observer) (State, error) {
	text, err := o.Schema.Introspect(ctx)
	if err != nil {
		return StateTerminal, err
	}
	if err := wf.setSchema(text); err != nil {
		return StateTerminal, err
	}
	o.emit(ctx, observer, wf, Event{Kind: EventSchemaFetched})
	return StateSynthesize, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, wf *Context, observer Observer) (State, error) {
	wf.beginSynthesis()

	query, err := o.Synthesizer.Synthesize(ctx, synth.Request{
		SchemaText: wf.schemaText,
		Question:   wf.question,
		ErrorText:  wf.errorText,
		Dialect:    o.Dialect,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateTerminal, fmt.Errorf("run %s aborted during synthesis: %w", wf.runID, ctxErr)
		}
		wf.failSynthesis(llm.Wrap(err))
		o.emit(ctx, observer, wf, Event{Kind: EventSynthesisFailed, Message: wf.errorText})
		return RouteAfterExecute(wf), nil
	}

	wf.acceptQuery(query)
	o.emit(ctx, observer, wf, Event{Kind: EventQuerySynthesized, Query: query})
	return StateEvaluateSafety, nil
}

func (o *Orchestrator) evaluateSafety(ctx context.Context, wf *Context, observer Observer) (State, error) {
	verdict := o.gate()(wf.candidateQuery)
	wf.applyVerdict(verdict.Safe, verdict.Message)
	if !verdict.Safe {
		observability.ObserveSafetyRejection(verdict.Keywords)
	}
	o.emit(ctx, observer, wf, Event{
		Kind:     EventSafetyVerdict,
		Query:    wf.candidateQuery,
		Safe:     verdict.Safe,
		Keywords: verdict.Keywords,
		Message:  verdict.Message,
	})
	return RouteAfterSafety(wf), nil
}

func (o *Orchestrator) execute(ctx context.Context, wf *Context, observer Observer) (State, error) {
	outcome := o.Executor.Execute(ctx, wf.candidateQuery)
	if outcome.Err != nil {
		return StateTerminal, fmt.Errorf("run %s aborted during execution: %w", wf.runID, outcome.Err)
	}
	wf.applyExecution(outcome.ResultText, outcome.ErrorText)
	o.emit(ctx, observer, wf, Event{Kind: EventExecuted, Query: wf.candidateQuery, Message: outcome.ErrorText})
	return RouteAfterExecute(wf), nil
}

func (o *Orchestrator) summarize(ctx context.Context, wf *Context, observer Observer) (State, error) {
	wf.enterSummarize()
	answer, err := o.Summarizer.Summarize(ctx, summarize.Request{
		Question:   wf.question,
		Query:      wf.candidateQuery,
		ResultText: wf.resultText,
		ErrorText:  wf.errorText,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateTerminal, fmt.Errorf("run %s aborted during summarize: %w", wf.runID, ctxErr)
		}
		return StateTerminal, llm.Wrap(err)
	}
	wf.applyAnswer(answer)
	o.emit(ctx, observer, wf, Event{Kind: EventSummarized, Message: answer})
	return StateTerminal, nil
}

func (o *Orchestrator) emit(ctx context.Context, observer Observer, wf *Context, event Event) {
	if observer == nil {
		return
	}
	event.RunID = wf.runID
	event.State = wf.state
	event.RetryCount = wf.retryCount
	event.At = time.Now().UTC()
	observer.OnEvent(ctx, event)
}

func (o *Orchestrator) validate() error {
	switch {
	case o.Schema == nil:
		return fmt.Errorf("schema source is required")
	case o.Synthesizer == nil:
		return fmt.Errorf("synthesizer is required")
	case o.Executor == nil:
		return fmt.Errorf("executor is required")
	case o.Summarizer == nil:
		return fmt.Errorf("summarizer is required")
	}
	return nil
}

func (o *Orchestrator) gate() Gate {
	if o.Gate == nil {
		return safety.Evaluate
	}
	return o.Gate
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Orchestrator) newRunID() string {
	if o.NewRunID == nil {
		return uuid.NewString()
	}
	return o.NewRunID()
}
