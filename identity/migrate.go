package identity

import (
	"context"
	"embed"
	"io/fs"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations is the identity schema migration set.
var Migrations = migrate.NewMigrations()

func init() {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	if err := Migrations.Discover(sub); err != nil {
		panic(err)
	}
}

// Migrate applies pending identity migrations and returns their names.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to initialize migration tables").
			WithTextCode(TextCodeMigrationFailed)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to apply identity migrations").
			WithTextCode(TextCodeMigrationFailed)
	}

	return migrationNames(group), nil
}

// Rollback reverts the last applied migration group.
func Rollback(ctx context.Context, db *bun.DB) ([]string, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to initialize migration tables").
			WithTextCode(TextCodeMigrationFailed)
	}

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to roll back identity migrations").
			WithTextCode(TextCodeMigrationFailed)
	}

	return migrationNames(group), nil
}

func migrationNames(group *migrate.MigrationGroup) []string {
	if group == nil || group.IsZero() {
		return nil
	}
	names := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		names = append(names, m.Name)
	}
	return names
}
