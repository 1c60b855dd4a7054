package duckdb

import (
	"context"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/asksql/asksql/internal/store"
)

const driverName = "duckdb"

var Dialect = store.Dialect{
	Name: "duckdb",
	TablesQuery: `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ColumnsQuery: `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = ?
ORDER BY ordinal_position`,
	PrepareStatements: true,
}

// Open connects to a DuckDB database file. An empty DSN opens an in-memory
// database shared by every connection in the pool.
func Open(ctx context.Context, cfg store.Config) (*store.DB, error) {
	return store.Connect(ctx, driverName, cfg.DSN, Dialect, cfg)
}
