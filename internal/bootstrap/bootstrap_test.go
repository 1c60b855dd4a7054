package bootstrap

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/asksql/asksql/internal/store"
	"github.com/asksql/asksql/internal/store/sqlite"
)

func TestLoadScriptsSortsAndSplits(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_two.sql": {Data: []byte("SELECT 2; SELECT 'a;b';")},
		"sql/000001_one.sql": {Data: []byte("SELECT 1;")},
		"sql/README.md":      {Data: []byte("ignored")},
	}

	items, err := loadScripts(fsys)
	if err != nil {
		t.Fatalf("loadScripts() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[1].Version != 2 {
		t.Fatalf("unexpected order: %+v", items)
	}
	if !reflect.DeepEqual(items[1].Statements, []string{"SELECT 2", "SELECT 'a;b'"}) {
		t.Fatalf("statements = %#v", items[1].Statements)
	}
}

func TestLoadScriptsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_a.sql": {Data: []byte("SELECT 1;")},
		"sql/000001_b.sql": {Data: []byte("SELECT 2;")},
	}
	_, err := loadScripts(fsys)
	if err == nil || !strings.Contains(err.Error(), "is used by") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestLoadScriptsRejectsEmptyScript(t *testing.T) {
	fsys := fstest.MapFS{"sql/000001_empty.sql": {Data: []byte("-- nothing\n")}}
	if _, err := loadScripts(fsys); err == nil {
		t.Fatal("expected error for empty script")
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, store.Config{DSN: filepath.Join(t.TempDir(), "company.db")})
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	seeder := NewSeeder(db)
	first, err := seeder.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if first != 4 {
		t.Fatalf("statements executed = %d", first)
	}
	before := dump(t, db)

	if _, err := seeder.Ensure(ctx); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	after := dump(t, db)

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("contents changed:\nbefore=%#v\nafter=%#v", before, after)
	}
	if len(after["employees"]) != 5 || len(after["departments"]) != 3 {
		t.Fatalf("unexpected row counts: %#v", after)
	}
}

func TestEnsureSeedsEngineeringPayroll(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, store.Config{DSN: filepath.Join(t.TempDir(), "company.db")})
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := NewSeeder(db).Ensure(ctx); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	conn, err := db.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = conn.Close() }()

	result, err := conn.Query(ctx, `SELECT SUM(e.salary) FROM employees e JOIN departments d ON d.dept_id = e.dept_id WHERE d.dept_name = 'Engineering'`)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Rows[0][0] != float64(235000) {
		t.Fatalf("engineering payroll = %#v", result.Rows[0][0])
	}
}

func dump(t *testing.T, db *store.DB) map[string][][]any {
	t.Helper()
	conn, err := db.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = conn.Close() }()

	out := map[string][][]any{}
	for _, table := range []string{"departments", "employees"} {
		result, err := conn.Query(context.Background(), "SELECT * FROM "+table+" ORDER BY 1")
		if err != nil {
			t.Fatalf("Query(%s) error = %v", table, err)
		}
		out[table] = result.Rows
	}
	return out
}
