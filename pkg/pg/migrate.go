package pg

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/pressly/goose/v3/lock"
)

// Migrate applies every pending goose migration found at the root of
// migrations. A Postgres session lock serializes concurrent runs, so
// several instances may start at once.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, cfg Config, log *slog.Logger) error {
	if migrations == nil {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationsNotProvided)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := newProvider(db, migrations, cfg)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	for _, r := range results {
		log.InfoContext(ctx, "migration applied",
			slog.Int64("version", r.Source.Version),
			slog.String("file", r.Source.Path),
			slog.Duration("duration", r.Duration),
		)
	}
	return nil
}

// MigrationStatus reports the applied schema version and how many
// migrations from migrations are still pending.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, cfg Config) (version int64, pending int, err error) {
	if migrations == nil {
		return 0, 0, ErrMigrationsNotProvided
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := newProvider(db, migrations, cfg)
	if err != nil {
		return 0, 0, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range statuses {
		if s.State == goose.StatePending {
			pending++
		}
	}

	version, err = provider.GetDBVersion(ctx)
	if err != nil {
		return 0, 0, err
	}
	return version, pending, nil
}

func newProvider(db *sql.DB, migrations fs.FS, cfg Config) (*goose.Provider, error) {
	table := cfg.MigrationsTable
	if table == "" {
		table = "schema_migrations"
	}
	store, err := database.NewStore(database.DialectPostgres, table)
	if err != nil {
		return nil, err
	}
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, err
	}
	return goose.NewProvider("", db, migrations,
		goose.WithStore(store),
		goose.WithSessionLocker(locker),
	)
}
