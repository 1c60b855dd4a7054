package workflow

import (
	"context"
	"time"
)

type EventKind string

const (
	EventSchemaFetched    EventKind = "schema-fetched"
	EventQuerySynthesized EventKind = "query-synthesized"
	EventSynthesisFailed  EventKind = "synthesis-failed"
	EventSafetyVerdict    EventKind = "safety-verdict"
	EventExecuted         EventKind = "executed"
	EventSummarized       EventKind = "summarized"
)

// Event reports a finished step. Observers cannot influence routing.
type Event struct {
	Kind       EventKind `json:"event"`
	RunID      string    `json:"run_id"`
	State      State     `json:"state"`
	RetryCount int       `json:"retry_count"`
	Query      string    `json:"query,omitempty"`
	Safe       bool      `json:"safe,omitempty"`
	Keywords   []string  `json:"keywords,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}
