package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/trip-booking/migrations"
)

// Migrate applies the embedded SQL migrations in name order. Each file is
// idempotent.
func Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := migrations.FS.ReadFile(e.Name())
		if err != nil {
			return applied, err
		}
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		applied = append(applied, e.Name())
	}
	return applied, nil
}
