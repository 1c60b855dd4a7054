// Package bootstrap creates and seeds the demo company tables.
package bootstrap

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/asksql/asksql/internal/store"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

var scriptNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.sql$`)

type Seeder struct {
	Factory store.Factory
	fsys    fs.FS
}

func NewSeeder(factory store.Factory) *Seeder {
	return &Seeder{Factory: factory, fsys: embeddedFS}
}

type script struct {
	Version    int64
	Name       string
	Statements []string
}

// Ensure runs every seed script in version order on a single connection.
// Scripts only use CREATE TABLE IF NOT EXISTS and ON CONFLICT DO NOTHING, so
// repeated calls leave the same tables and rows. It returns the number of
// statements executed.
func (s *Seeder) Ensure(ctx context.Context) (int, error) {
	if s.Factory == nil {
		return 0, fmt.Errorf("store factory is required")
	}
	scripts, err := loadScripts(s.fsys)
	if err != nil {
		return 0, err
	}

	conn, err := s.Factory.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open bootstrap connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	count := 0
	for _, item := range scripts {
		for index, statement := range item.Statements {
			if err := conn.Exec(ctx, statement); err != nil {
				return count, fmt.Errorf("apply %s statement %d: %w", item.Name, index+1, err)
			}
			count++
		}
	}
	return count, nil
}

func loadScripts(fsys fs.FS) ([]script, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read bootstrap dir: %w", err)
	}

	scripts := make([]script, 0, len(entries))
	seen := map[int64]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := scriptNamePattern.FindStringSubmatch(base)
		if len(matches) != 2 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse bootstrap version for %q: %w", base, err)
		}
		if previous, ok := seen[version]; ok {
			return nil, fmt.Errorf("bootstrap version %d is used by %q and %q", version, previous, base)
		}
		seen[version] = base

		raw, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read bootstrap script %q: %w", entry.Name(), err)
		}
		statements := store.SplitStatements(string(raw))
		if len(statements) == 0 {
			return nil, fmt.Errorf("bootstrap script %q is empty", base)
		}
		scripts = append(scripts, script{Version: version, Name: base, Statements: statements})
	}

	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Version < scripts[j].Version })
	return scripts, nil
}
