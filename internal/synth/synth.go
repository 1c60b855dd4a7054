package synth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/asksql/asksql/internal/llm"
)

type Request struct {
	SchemaText string
	Question   string
	// ErrorText is the previous attempt's failure. It is quoted verbatim in
	// the prompt when non-empty.
	ErrorText string
	Dialect   string
}

type Synthesizer struct {
	Generator llm.Generator
}

func NewSynthesizer(generator llm.Generator) *Synthesizer {
	return &Synthesizer{Generator: generator}
}

// Synthesize makes exactly one generator call and returns the fence-stripped
// query.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (string, error) {
	if s.Generator == nil {
		return "", &llm.GenerationError{Err: fmt.Errorf("generator is required")}
	}

	content, err := s.Generator.Generate(ctx, BuildMessages(req))
	if err != nil {
		return "", llm.Wrap(err)
	}

	query := StripFences(content)
	if query == "" {
		return "", &llm.GenerationError{Err: fmt.Errorf("model returned empty SQL")}
	}
	return query, nil
}

func BuildMessages(req Request) []llm.Message {
	dialect := strings.TrimSpace(req.Dialect)
	if dialect == "" {
		dialect = "SQL"
	}
	systemPrompt := fmt.Sprintf("You are an expert %s data analyst. "+
		"You translate questions into a single read-only %s query. "+
		"Return ONLY the raw SQL code. No markdown, no explanation.", dialect, dialect)

	var b strings.Builder
	fmt.Fprintf(&b, "Schema:\n%s\n\n", req.SchemaText)
	fmt.Fprintf(&b, "Question: %q\n\n", strings.TrimSpace(req.Question))
	b.WriteString("Instructions:\n")
	b.WriteString("1. Return ONLY the raw SQL code.\n")
	b.WriteString("2. Do not use markdown blocks.\n")
	b.WriteString("3. Use only the tables and columns listed in the schema.\n")
	b.WriteString("4. Return exactly one statement.")
	if req.ErrorText != "" {
		fmt.Fprintf(&b, "\n\nThe previous query failed with this error:\n%s\nFix the query.", req.ErrorText)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// An opening fence may carry any info string on its own line (```sqlite3,
// ```mysql, ```pgsql). Without a line break only known SQL tags are taken
// as the info string so that ```SELECT 1``` keeps its body.
var (
	fencedBlockPattern = regexp.MustCompile("(?is)```(?:[\\w+.#-]*[ \t]*\n|(?:sqlite3?|postgresql|postgres|pgsql|duckdb|mysql|sql)\\b)?\\s*(.*?)```")
	fenceLinePattern   = regexp.MustCompile("(?m)^[ \t]*```[\\w+.#-]*[ \t]*$")
)

// StripFences returns the body of the first fenced code block in content, or
// content with any stray fence markers removed.
func StripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if match := fencedBlockPattern.FindStringSubmatch(trimmed); match != nil {
		return strings.TrimSpace(match[1])
	}
	trimmed = fenceLinePattern.ReplaceAllString(trimmed, "")
	trimmed = strings.ReplaceAll(trimmed, "```", "")
	return strings.TrimSpace(trimmed)
}
