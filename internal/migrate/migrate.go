package migrate

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/stay-scheduler/internal/db"
)

//go:embed *.sql
var fs embed.FS

// Files lists the embedded migrations in the order they apply.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Up applies every migration not yet recorded in schema_migrations. Each
// file runs in its own transaction together with its bookkeeping row.
func Up(ctx context.Context, d *db.DB, log logrus.FieldLogger) error {
	files, err := Files()
	if err != nil {
		return err
	}

	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY);`); err != nil {
		return err
	}

	for _, f := range files {
		var applied bool
		if err := d.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}

		b, err := fs.ReadFile(f)
		if err != nil {
			return err
		}
		err = d.InTx(ctx, func(q db.Querier) error {
			if _, err := q.Exec(ctx, string(b)); err != nil {
				return err
			}
			_, err := q.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", f, err)
		}
		log.WithField("version", f).Info("migration applied")
	}

	return nil
}
