package users

import (
	"context"
	"embed"
	"io/fs"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// NewMigrations discovers the embedded SQL migrations
func NewMigrations() (*migrate.Migrations, error) {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open migrations")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(sub); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to discover migrations")
	}
	return migrations, nil
}

// Migrate applies every pending migration and returns the names applied
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migrations, err := NewMigrations()
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to init migrations table")
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to lock migrations")
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to run migrations")
	}

	applied := make([]string, 0)
	if group == nil || group.IsZero() {
		return applied, nil
	}
	for _, m := range group.Migrations {
		applied = append(applied, m.Name)
	}
	return applied, nil
}

// Rollback reverts the last applied migration group
func Rollback(ctx context.Context, db *bun.DB) ([]string, error) {
	migrations, err := NewMigrations()
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Lock(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to lock migrations")
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to rollback migrations")
	}

	reverted := make([]string, 0)
	if group == nil || group.IsZero() {
		return reverted, nil
	}
	for _, m := range group.Migrations {
		reverted = append(reverted, m.Name)
	}
	return reverted, nil
}
