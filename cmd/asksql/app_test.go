package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/config"
	"github.com/asksql/asksql/internal/workflow"
)

func testConfig(t *testing.T, overrides map[string]string) func() (config.Config, error) {
	t.Helper()
	env := map[string]string{
		"ASKSQL_PROFILE":         "test",
		"ASKSQL_STORE_DSN":       ":memory:",
		"ASKSQL_STORE_BOOTSTRAP": "true",
	}
	for key, value := range overrides {
		env[key] = value
	}
	return func() (config.Config, error) {
		return config.Load(serviceName, func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		})
	}
}

func executeCommand(t *testing.T, load func() (config.Config, error), args ...string) (string, error) {
	t.Helper()
	root := newRootCmdWithConfig(load)
	root.SetArgs(args)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSchemaCommandPrintsSeededTables(t *testing.T) {
	out, err := executeCommand(t, testConfig(t, nil), "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Table 'departments':\n  dept_id (INTEGER)")
	assert.Contains(t, out, "Table 'employees':")
	assert.Contains(t, out, "  salary (REAL)")
}

func TestSchemaCommandJSON(t *testing.T) {
	out, err := executeCommand(t, testConfig(t, nil), "schema", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "employees"`)
}

func TestBootstrapCommandReportsStatements(t *testing.T) {
	out, err := executeCommand(t, testConfig(t, map[string]string{"ASKSQL_STORE_BOOTSTRAP": "false"}), "bootstrap")
	require.NoError(t, err)
	assert.Equal(t, "applied 4 statements to sqlite store\n", out)
}

func TestDriverFlagOverridesConfig(t *testing.T) {
	_, err := executeCommand(t, testConfig(t, nil), "--driver", "oracle", "schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASKSQL_STORE_DRIVER")
}

func TestHistoryShowRequiresHistoryEnabled(t *testing.T) {
	_, err := executeCommand(t, testConfig(t, nil), "history", "show", "history/date=2026-01-01/hour=00/run-x.parquet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestHistoryListValidatesDate(t *testing.T) {
	_, err := executeCommand(t, testConfig(t, nil), "history", "list", "--date", "02/03/2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), config.StoreConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}

func TestAppHandlerServesSchemaAndReadiness(t *testing.T) {
	cfg, err := testConfig(t, nil)()
	require.NoError(t, err)
	a, err := openApp(context.Background(), cfg, nil, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	h := a.handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "employees")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`)))
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestOpenAppWiresAgent(t *testing.T) {
	cfg, err := testConfig(t, nil)()
	require.NoError(t, err)
	a, err := openApp(context.Background(), cfg, nil, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.service)
	assert.Nil(t, a.historyStore)
}

type scriptedAsker struct {
	calls   atomic.Int32
	answers map[string]agent.Answer
	errs    map[string]error
	events  []workflow.Event
}

func (s *scriptedAsker) Ask(ctx context.Context, question string, observer workflow.Observer) (agent.Answer, error) {
	s.calls.Add(1)
	if observer != nil {
		for _, event := range s.events {
			observer.OnEvent(ctx, event)
		}
	}
	return s.answers[question], s.errs[question]
}

func TestAskAllKeepsInputOrder(t *testing.T) {
	asker := &scriptedAsker{
		answers: map[string]agent.Answer{
			"one":   {RunID: "r1", Answer: "1"},
			"two":   {RunID: "r2", Answer: "2"},
			"three": {},
		},
		errs: map[string]error{"three": errors.New("schema unavailable")},
	}

	results, err := askAll(context.Background(), asker, []string{"one", "two", "three"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int32(3), asker.calls.Load())

	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, "1", results[0].Answer.Answer)
	assert.Equal(t, "2", results[1].Answer.Answer)
	assert.Nil(t, results[2].Answer)
	assert.Equal(t, "schema unavailable", results[2].Error)

	var out bytes.Buffer
	require.NoError(t, writeResults(&out, results))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], `"error":"schema unavailable"`)
}

func TestAskAllStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := askAll(ctx, &scriptedAsker{}, []string{"one"}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadQuestionsSkipsBlankAndComments(t *testing.T) {
	questions, err := readQuestions(strings.NewReader("# header\n\n  who earns most?  \nhow many depts?\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"who earns most?", "how many depts?"}, questions)

	_, err = readQuestions(strings.NewReader("\n# only comments\n"))
	require.Error(t, err)
}

func TestRunAskPrintsEventsAndAnswer(t *testing.T) {
	asker := &scriptedAsker{
		answers: map[string]agent.Answer{
			"total salary": {RunID: "r1", Answer: "235000", Outcome: workflow.OutcomeAnswered, Attempts: 1, Query: "SELECT SUM(salary) FROM employees"},
		},
		events: []workflow.Event{
			{Kind: workflow.EventQuerySynthesized, RetryCount: 1, Query: "SELECT SUM(salary) FROM employees"},
			{Kind: workflow.EventSafetyVerdict, Safe: false, Keywords: []string{"DROP"}},
		},
	}

	var out bytes.Buffer
	require.NoError(t, runAsk(context.Background(), &out, asker, "total salary", &askOptions{}))
	text := out.String()
	assert.Contains(t, text, "[query-synthesized] attempt 1: SELECT SUM(salary) FROM employees")
	assert.Contains(t, text, "[safety-verdict] unsafe: DROP")
	assert.Contains(t, text, "\n235000\n")
	assert.Contains(t, text, "outcome:  answered")

	out.Reset()
	require.NoError(t, runAsk(context.Background(), &out, asker, "total salary", &askOptions{jsonOutput: true, quiet: true}))
	assert.True(t, strings.HasPrefix(out.String(), "{"))
	assert.Contains(t, out.String(), `"answer": "235000"`)
}

func TestReadQuestionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.txt")
	require.NoError(t, os.WriteFile(path, []byte("first?\nsecond?\n"), 0o644))

	questions, err := readQuestionsFrom(strings.NewReader("ignored\n"), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first?", "second?"}, questions)

	questions, err = readQuestionsFrom(strings.NewReader("from stdin\n"), "-")
	require.NoError(t, err)
	assert.Equal(t, []string{"from stdin"}, questions)

	_, err = readQuestionsFrom(nil, filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
