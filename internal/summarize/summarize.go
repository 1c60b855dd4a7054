package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/asksql/asksql/internal/llm"
)

const emptyValue = "(none)"

type Request struct {
	Question   string
	Query      string
	ResultText string
	ErrorText  string
}

type Summarizer struct {
	Generator llm.Generator
}

func NewSummarizer(generator llm.Generator) *Summarizer {
	return &Summarizer{Generator: generator}
}

// Summarize asks for the final answer. Every input field is present in the
// prompt so a failed or rejected run is still explained.
func (s *Summarizer) Summarize(ctx context.Context, req Request) (string, error) {
	if s.Generator == nil {
		return "", &llm.GenerationError{Err: fmt.Errorf("generator is required")}
	}

	answer, err := s.Generator.Generate(ctx, BuildMessages(req))
	if err != nil {
		return "", llm.Wrap(err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &llm.GenerationError{Err: fmt.Errorf("model returned an empty answer")}
	}
	return answer, nil
}

func BuildMessages(req Request) []llm.Message {
	systemPrompt := "You are a data analyst explaining query results to a business user. " +
		"If an error is present, explain plainly why the question could not be answered."
	userPrompt := fmt.Sprintf(
		"User Question: %s\nSQL Used: %s\nData Found:\n%s\nError: %s\n\nProvide a professional, concise answer.",
		orEmpty(req.Question),
		orEmpty(req.Query),
		orEmpty(req.ResultText),
		orEmpty(req.ErrorText),
	)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}
}

func orEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return emptyValue
	}
	return value
}
