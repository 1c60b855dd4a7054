package postgres

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/asksql/asksql/internal/store"
)

const driverName = "pgx"

var Dialect = store.Dialect{
	Name: "postgres",
	TablesQuery: `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ColumnsQuery: `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`,
	PrepareStatements: true,
}

func Open(ctx context.Context, cfg store.Config) (*store.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	return store.Connect(ctx, driverName, cfg.DSN, Dialect, cfg)
}
