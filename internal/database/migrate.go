package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/tern/v2/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	versionTable = "public.schema_version"

	// migrationLockID is a PostgreSQL advisory lock key ("forum" in ASCII hex).
	migrationLockID             = 0x666f72756d
	migrationLockReleaseTimeout = 5 * time.Second
)

// Migrator is the migration binding. It runs the embedded schema
// migrations against the storage binding's database.
type Migrator struct {
	db  *DB
	fs  fs.FS
	log *slog.Logger
}

func NewMigrator(db *DB, log *slog.Logger) (*Migrator, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	return &Migrator{db: db, fs: sub, log: log}, nil
}

// Migrations lists the embedded migration file names in order.
func (m *Migrator) Migrations() ([]string, error) {
	return fs.Glob(m.fs, "*.sql")
}

// Latest is the version Upgrade migrates to.
func (m *Migrator) Latest() (int32, error) {
	names, err := m.Migrations()
	if err != nil {
		return 0, err
	}
	return int32(len(names)), nil
}

// Upgrade applies every pending migration.
func (m *Migrator) Upgrade(ctx context.Context) error {
	return m.run(ctx, func(mg *migrate.Migrator) error {
		return mg.Migrate(ctx)
	})
}

// MigrateTo moves the schema up or down to version.
func (m *Migrator) MigrateTo(ctx context.Context, version int32) error {
	latest, err := m.Latest()
	if err != nil {
		return err
	}
	if version < 0 || version > latest {
		return fmt.Errorf("version %d out of range 0..%d", version, latest)
	}
	return m.run(ctx, func(mg *migrate.Migrator) error {
		return mg.MigrateTo(ctx, version)
	})
}

func (m *Migrator) CurrentVersion(ctx context.Context) (int32, error) {
	var version int32
	err := m.run(ctx, func(mg *migrate.Migrator) error {
		v, err := mg.GetCurrentVersion(ctx)
		version = v
		return err
	})
	return version, err
}

func (m *Migrator) run(ctx context.Context, fn func(*migrate.Migrator) error) error {
	conn, err := pgx.Connect(ctx, m.db.URI())
	if err != nil {
		return fmt.Errorf("failed to connect for migration: %w", err)
	}
	defer conn.Close(context.Background())

	release, err := migrationLock(ctx, conn, m.log)
	if err != nil {
		return err
	}
	defer release()

	mg, err := migrate.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := mg.LoadMigrations(m.fs); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	mg.OnStart = func(sequence int32, name, direction, _ string) {
		m.log.Info("Applying migration", "sequence", sequence, "name", name, "direction", direction)
	}

	if err := fn(mg); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func migrationLock(ctx context.Context, conn *pgx.Conn, log *slog.Logger) (release func(), err error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), migrationLockReleaseTimeout)
		defer cancel()

		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Error("failed to release migration lock", "error", err)
		}
	}, nil
}
