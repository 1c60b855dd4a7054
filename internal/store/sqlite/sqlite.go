package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/asksql/asksql/internal/store"
)

const driverName = "sqlite3"

var Dialect = store.Dialect{
	Name:         "sqlite",
	TablesQuery:  `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`,
	ColumnsQuery: `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`,
}

func Open(ctx context.Context, cfg store.Config) (*store.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	return store.Connect(ctx, driverName, buildDSN(cfg.DSN), Dialect, cfg)
}

// buildDSN adds connection pragmas to a file path DSN. ":memory:" becomes a
// named shared-cache database so every pooled connection sees the same data.
func buildDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == ":memory:" {
		return fmt.Sprintf("file:asksql-%s?mode=memory&cache=shared&_busy_timeout=5000&_foreign_keys=on", uuid.NewString())
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
}
