package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/asksql/asksql/internal/store"
)

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), store.Config{})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestDialectUsesPositionalPlaceholder(t *testing.T) {
	if !strings.Contains(Dialect.ColumnsQuery, "$1") {
		t.Fatalf("ColumnsQuery = %q", Dialect.ColumnsQuery)
	}
}
