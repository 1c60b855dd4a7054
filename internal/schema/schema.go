// Package schema renders the user tables of a store as prompt text.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/asksql/asksql/internal/store"
)

// IntrospectionError marks a catalog read failure. It is never retried.
type IntrospectionError struct {
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("schema introspection failed: %v", e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type Introspector struct {
	Factory store.Factory
	Dialect store.Dialect
}

func NewIntrospector(factory store.Factory, dialect store.Dialect) *Introspector {
	return &Introspector{Factory: factory, Dialect: dialect}
}

// Introspect lists tables in catalog order and columns in declared order and
// renders them with Render. A store without user tables yields "".
func (i *Introspector) Introspect(ctx context.Context) (string, error) {
	tables, err := i.Tables(ctx)
	if err != nil {
		return "", err
	}
	return Render(tables), nil
}

func (i *Introspector) Tables(ctx context.Context) ([]Table, error) {
	if i.Factory == nil {
		return nil, &IntrospectionError{Err: fmt.Errorf("store factory is required")}
	}

	conn, err := i.Factory.Open(ctx)
	if err != nil {
		return nil, &IntrospectionError{Err: err}
	}
	defer func() { _ = conn.Close() }()

	tableRows, err := conn.Query(ctx, i.Dialect.TablesQuery)
	if err != nil {
		return nil, &IntrospectionError{Err: fmt.Errorf("list tables: %w", err)}
	}

	tables := make([]Table, 0, len(tableRows.Rows))
	for _, row := range tableRows.Rows {
		if len(row) == 0 {
			continue
		}
		name := fmt.Sprint(row[0])
		columnRows, err := conn.Query(ctx, i.Dialect.ColumnsQuery, name)
		if err != nil {
			return nil, &IntrospectionError{Err: fmt.Errorf("list columns for table %q: %w", name, err)}
		}

		table := Table{Name: name, Columns: make([]Column, 0, len(columnRows.Rows))}
		for _, columnRow := range columnRows.Rows {
			if len(columnRow) < 2 {
				return nil, &IntrospectionError{Err: fmt.Errorf("unexpected column catalog shape for table %q", name)}
			}
			column := Column{Name: fmt.Sprint(columnRow[0])}
			if columnRow[1] != nil {
				column.Type = fmt.Sprint(columnRow[1])
			}
			table.Columns = append(table.Columns, column)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// Render writes one block per table separated by a blank line:
//
//	Table 'employees':
//	  emp_id (INTEGER)
//	  name (TEXT)
func Render(tables []Table) string {
	blocks := make([]string, 0, len(tables))
	for _, table := range tables {
		var b strings.Builder
		fmt.Fprintf(&b, "Table '%s':", table.Name)
		for _, column := range table.Columns {
			if column.Type == "" {
				fmt.Fprintf(&b, "\n  %s", column.Name)
				continue
			}
			fmt.Fprintf(&b, "\n  %s (%s)", column.Name, column.Type)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
