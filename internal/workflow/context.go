package workflow

import (
	"errors"
	"fmt"
)

// MaxSynthesisAttempts bounds synthesis calls per question, and therefore
// execution calls as well.
const MaxSynthesisAttempts = 3

var ErrSchemaAlreadySet = errors.New("schema text is already set")

type State string

const (
	StateFetchSchema    State = "fetch_schema"
	StateSynthesize     State = "synthesize"
	StateEvaluateSafety State = "evaluate_safety"
	StateExecute        State = "execute"
	StateSummarize      State = "summarize"
	StateTerminal       State = "terminal"
)

type Safety int

const (
	SafetyUnknown Safety = iota
	SafetySafe
	SafetyUnsafe
)

func (s Safety) String() string {
	switch s {
	case SafetySafe:
		return "safe"
	case SafetyUnsafe:
		return "unsafe"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeAnswered  Outcome = "answered"
	OutcomeRejected  Outcome = "rejected"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

// Context is the record threaded through one question's run. It is owned by
// a single Run call and is never shared or reused.
type Context struct {
	runID          string
	question       string
	schemaText     string
	schemaSet      bool
	candidateQuery string
	safety         Safety
	resultText     string
	errorText      string
	retryCount     int
	executions     int
	state          State
	outcome        Outcome
	lastError      string
}

func NewContext(runID, question string) *Context {
	return &Context{runID: runID, question: question, state: StateFetchSchema}
}

func (c *Context) RunID() string          { return c.runID }
func (c *Context) Question() string       { return c.question }
func (c *Context) SchemaText() string     { return c.schemaText }
func (c *Context) CandidateQuery() string { return c.candidateQuery }
func (c *Context) Safety() Safety         { return c.safety }
func (c *Context) ResultText() string     { return c.resultText }
func (c *Context) ErrorText() string      { return c.errorText }
func (c *Context) RetryCount() int        { return c.retryCount }
func (c *Context) Executions() int        { return c.executions }
func (c *Context) State() State           { return c.state }
func (c *Context) Outcome() Outcome       { return c.outcome }

// LastError is the error text the run carried into Summarize. It survives
// the summarize step, which clears ErrorText once an answer exists.
func (c *Context) LastError() string { return c.lastError }

func (c *Context) setSchema(text string) error {
	if c.schemaSet {
		return ErrSchemaAlreadySet
	}
	c.schemaText = text
	c.schemaSet = true
	return nil
}

func (c *Context) beginSynthesis() {
	c.retryCount++
}

func (c *Context) acceptQuery(query string) {
	c.candidateQuery = query
	c.safety = SafetyUnknown
	c.errorText = ""
}

func (c *Context) failSynthesis(err error) {
	c.candidateQuery = ""
	c.safety = SafetyUnknown
	c.resultText = ""
	c.errorText = err.Error()
}

func (c *Context) applyVerdict(safe bool, message string) {
	if safe {
		c.safety = SafetySafe
		c.errorText = ""
		return
	}
	c.safety = SafetyUnsafe
	c.resultText = ""
	c.errorText = message
}

func (c *Context) applyExecution(resultText, errorText string) {
	c.executions++
	c.resultText = resultText
	c.errorText = errorText
}

// enterSummarize fixes the run outcome from the state the loop ended in.
func (c *Context) enterSummarize() {
	c.lastError = c.errorText
	switch {
	case c.safety == SafetyUnsafe:
		c.outcome = OutcomeRejected
	case c.errorText != "":
		c.outcome = OutcomeExhausted
	default:
		c.outcome = OutcomeAnswered
	}
}

func (c *Context) applyAnswer(answer string) {
	c.resultText = answer
	c.errorText = ""
}

func (c *Context) fail() {
	c.outcome = OutcomeFailed
}

// Snapshot is an immutable copy suitable for encoding.
type Snapshot struct {
	RunID          string  `json:"run_id"`
	Question       string  `json:"question"`
	SchemaText     string  `json:"schema_text,omitempty"`
	CandidateQuery string  `json:"candidate_query"`
	Safety         string  `json:"safety"`
	ResultText     string  `json:"result_text"`
	ErrorText      string  `json:"error_text"`
	LastError      string  `json:"last_error,omitempty"`
	RetryCount     int     `json:"retry_count"`
	Executions     int     `json:"executions"`
	State          State   `json:"state"`
	Outcome        Outcome `json:"outcome,omitempty"`
}

func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		RunID:          c.runID,
		Question:       c.question,
		SchemaText:     c.schemaText,
		CandidateQuery: c.candidateQuery,
		Safety:         c.safety.String(),
		ResultText:     c.resultText,
		ErrorText:      c.errorText,
		LastError:      c.lastError,
		RetryCount:     c.retryCount,
		Executions:     c.executions,
		State:          c.state,
		Outcome:        c.outcome,
	}
}

func (c *Context) String() string {
	return fmt.Sprintf("run=%s state=%s retry_count=%d safety=%s", c.runID, c.state, c.retryCount, c.safety)
}

// RouteAfterSafety sends only a safe verdict to Execute.
func RouteAfterSafety(c *Context) State {
	if c.safety == SafetySafe {
		return StateExecute
	}
	return StateSummarize
}

// RouteAfterExecute retries while an error is present and attempts remain.
// It also routes synthesis failures.
func RouteAfterExecute(c *Context) State {
	if c.errorText != "" && c.retryCount < MaxSynthesisAttempts {
		return StateSynthesize
	}
	return StateSummarize
}
