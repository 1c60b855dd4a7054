package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asksql/asksql/internal/llm"
)

type recordingGenerator struct {
	reply    string
	err      error
	calls    int
	messages []llm.Message
}

func (g *recordingGenerator) Generate(_ context.Context, messages []llm.Message) (string, error) {
	g.calls++
	g.messages = messages
	return g.reply, g.err
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```sql\nSELECT 1;\n```":              "SELECT 1;",
		"```SQL\nSELECT 1\n```":               "SELECT 1",
		"```sqlite\nSELECT 2\n```":            "SELECT 2",
		"```\nSELECT 3\n```":                  "SELECT 3",
		"```SELECT 4```":                      "SELECT 4",
		"Here you go:\n```sql\nSELECT 5\n```": "SELECT 5",
		"  SELECT 6  ":                        "SELECT 6",
		"SELECT 7\n```":                       "SELECT 7",
		"```sql\n```":                         "",
		"```sqlite3\nSELECT 8\n```":           "SELECT 8",
		"```mysql\nSELECT 9\n```":             "SELECT 9",
		"```pgsql \nSELECT 10\n```":           "SELECT 10",
		"```sql SELECT 11```":                 "SELECT 11",
		"```sqlite3\nSELECT 12":               "SELECT 12",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripFences(in), in)
	}
}

func TestSynthesizeCallsGeneratorOnceAndStripsFences(t *testing.T) {
	gen := &recordingGenerator{reply: "```sql\nSELECT SUM(salary) FROM employees\n```"}
	query, err := NewSynthesizer(gen).Synthesize(context.Background(), Request{
		SchemaText: "Table 'employees':\n  salary (REAL)",
		Question:   "total salary",
		Dialect:    "sqlite",
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT SUM(salary) FROM employees", query)
	assert.Equal(t, 1, gen.calls)
	require.Len(t, gen.messages, 2)
	assert.Equal(t, llm.RoleSystem, gen.messages[0].Role)
	assert.Contains(t, gen.messages[0].Content, "sqlite")
	assert.Contains(t, gen.messages[1].Content, "Table 'employees':")
	assert.Contains(t, gen.messages[1].Content, `"total salary"`)
	assert.NotContains(t, gen.messages[1].Content, "previous query failed")
}

func TestSynthesizeIncludesPriorErrorVerbatim(t *testing.T) {
	gen := &recordingGenerator{reply: "SELECT 1"}
	_, err := NewSynthesizer(gen).Synthesize(context.Background(), Request{
		Question:  "q",
		ErrorText: "no such column: salry",
	})
	require.NoError(t, err)
	assert.Contains(t, gen.messages[1].Content, "no such column: salry")
}

func TestSynthesizeReturnsGenerationErrors(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := NewSynthesizer(&recordingGenerator{err: cause}).Synthesize(context.Background(), Request{Question: "q"})
	var genErr *llm.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, cause)

	_, err = NewSynthesizer(&recordingGenerator{reply: "```\n```"}).Synthesize(context.Background(), Request{Question: "q"})
	require.ErrorAs(t, err, &genErr)

	_, err = (&Synthesizer{}).Synthesize(context.Background(), Request{Question: "q"})
	require.ErrorAs(t, err, &genErr)
}
