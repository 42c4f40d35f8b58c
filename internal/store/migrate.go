package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/dropDatabas3/multipanel/internal/observability/logger"
)

// RunMigrations ejecuta, en orden lexicográfico, todos los .sql del
// directorio dado contra la conexión. Los archivos usan CREATE ... IF NOT
// EXISTS, así que re-ejecutar es seguro.
func RunMigrations(ctx context.Context, q Querier, fsys fs.FS, dir string) (int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		sql, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := q.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		applied++
		logger.L().Debug("migration applied", logger.String("file", dir+"/"+name))
	}
	return applied, nil
}
