package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asksql/asksql/internal/observability"
	"github.com/asksql/asksql/internal/store"
)

const NoDataMessage = "No data found."

// Outcome always carries both texts. Exactly one of them is non-empty for a
// completed execution. Err is set only when the caller's context ended, and
// then neither text is meaningful.
type Outcome struct {
	ResultText string
	ErrorText  string
	Err        error
}

type Executor struct {
	Factory store.Factory
	// MaxRows caps the rendered rows. Zero renders every row.
	MaxRows int
}

func NewExecutor(factory store.Factory, maxRows int) *Executor {
	return &Executor{Factory: factory, MaxRows: maxRows}
}

// Execute runs query on one freshly acquired connection and releases it
// before returning.
func (e *Executor) Execute(ctx context.Context, query string) Outcome {
	if e.Factory == nil {
		return failure(ctx, fmt.Errorf("store factory is required"))
	}

	conn, err := e.Factory.Open(ctx)
	if err != nil {
		return failure(ctx, err)
	}
	defer func() { _ = conn.Close() }()

	result, err := conn.Query(ctx, query)
	if err != nil {
		return failure(ctx, err)
	}
	if len(result.Rows) == 0 {
		return Outcome{ResultText: NoDataMessage, ErrorText: ""}
	}
	return Outcome{ResultText: Render(result, e.MaxRows), ErrorText: ""}
}

func failure(ctx context.Context, err error) Outcome {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return Outcome{ResultText: "", ErrorText: "", Err: ctxErr}
	}
	observability.IncrementStoreErrors()
	return Outcome{ResultText: "", ErrorText: err.Error()}
}

// Render writes a header of column names followed by one line per row, all
// separated by " | ". Rows past maxRows are summarized in a trailer line.
func Render(result store.Result, maxRows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))

	shown := result.Rows
	if maxRows > 0 && len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for _, row := range shown {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatValue(value)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, " | "))
	}
	if hidden := len(result.Rows) - len(shown); hidden > 0 {
		fmt.Fprintf(&b, "\n... (%d more rows)", hidden)
	}
	return b.String()
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return typed
	case []byte:
		return string(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case time.Time:
		return typed.Format(time.RFC3339)
	default:
		return fmt.Sprint(typed)
	}
}
