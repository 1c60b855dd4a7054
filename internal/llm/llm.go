package llm

import (
	"context"
	"fmt"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator produces one completion for a conversation. Implementations
// return *GenerationError on failure.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("text generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *GenerationError unless it already is one.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*GenerationError); ok {
		return err
	}
	return &GenerationError{Err: err}
}
