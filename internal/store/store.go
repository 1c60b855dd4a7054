package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMultipleStatements = errors.New("only one SQL statement may be executed at a time")
	ErrEmptyStatement     = errors.New("sql statement is empty")
)

// Result is a fully materialized result set. Values are normalized so that
// byte slices arrive as strings.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Conn is a single scoped connection. Every Query and Exec accepts exactly
// one statement.
type Conn interface {
	Query(ctx context.Context, statement string, args ...any) (Result, error)
	Exec(ctx context.Context, statement string, args ...any) error
	Close() error
}

type Factory interface {
	Open(ctx context.Context) (Conn, error)
}

// Dialect holds the catalog queries for one database engine. ColumnsQuery
// takes the table name as its only bind parameter. When PrepareStatements
// is set, statements go through a prepared statement so that the driver
// refuses anything that is more than one statement.
type Dialect struct {
	Name              string
	TablesQuery       string
	ColumnsQuery      string
	PrepareStatements bool
}

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

type DB struct {
	db           *sql.DB
	dialect      Dialect
	queryTimeout time.Duration
}

// Connect opens a pool for driverName, applies the pool limits from cfg and
// verifies it with a ping.
func Connect(ctx context.Context, driverName, dsn string, dialect Dialect, cfg Config) (*DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect.Name, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", dialect.Name, err)
	}

	return New(db, dialect, cfg.QueryTimeout), nil
}

func New(db *sql.DB, dialect Dialect, queryTimeout time.Duration) *DB {
	return &DB{db: db, dialect: dialect, queryTimeout: queryTimeout}
}

func (d *DB) Open(ctx context.Context) (Conn, error) {
	c, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire %s connection: %w", d.dialect.Name, err)
	}
	return &conn{conn: c, queryTimeout: d.queryTimeout, prepare: d.dialect.PrepareStatements}, nil
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

type conn struct {
	conn         *sql.Conn
	queryTimeout time.Duration
	prepare      bool
}

func (c *conn) Query(ctx context.Context, statement string, args ...any) (Result, error) {
	sqlText, err := SingleStatement(statement)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var rows *sql.Rows
	if c.prepare {
		stmt, err := c.conn.PrepareContext(ctx, sqlText)
		if err != nil {
			return Result{}, fmt.Errorf("prepare query: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		rows, err = stmt.QueryContext(ctx, args...)
	} else {
		rows, err = c.conn.QueryContext(ctx, sqlText, args...)
	}
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{Columns: columns, Rows: resultRows}, nil
}

func (c *conn) Exec(ctx context.Context, statement string, args ...any) error {
	sqlText, err := SingleStatement(statement)
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if !c.prepare {
		if _, err := c.conn.ExecContext(ctx, sqlText, args...); err != nil {
			return fmt.Errorf("execute statement: %w", err)
		}
		return nil
	}

	stmt, err := c.conn.PrepareContext(ctx, sqlText)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

func (c *conn) Close() error {
	return c.conn.Close()
}

func (c *conn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.queryTimeout)
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
