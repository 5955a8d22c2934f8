// Package database is the storage binding: a PostgreSQL connection pool,
// the queries the route groups run against it, and the schema migrator.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Options struct {
	URI string
	// Echo logs every statement at DEBUG.
	Echo bool
	// TrackModifications publishes a Modification for every write.
	TrackModifications bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Modification describes a single write against a table.
type Modification struct {
	Table string
	Op    string
	ID    uuid.UUID
}

type DB struct {
	db    *sql.DB
	uri   string
	echo  bool
	track bool
	log   *slog.Logger

	mu       sync.RWMutex
	onModify []func(Modification)
}

// Open creates the connection pool. No connection is made until the first
// query, so an unreachable server surfaces on first use.
func Open(opts Options, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("postgres", opts.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	log.Debug("Database pool configured", "host", redactedHost(opts.URI), "max_open", opts.MaxOpenConns)

	return &DB{
		db:    db,
		uri:   opts.URI,
		echo:  opts.Echo,
		track: opts.TrackModifications,
		log:   log,
	}, nil
}

func redactedHost(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// URI is the connection string the pool was opened with.
func (d *DB) URI() string {
	return d.uri
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// OnModify registers fn to receive write notifications. It is a no-op unless
// modification tracking is enabled.
func (d *DB) OnModify(fn func(Modification)) {
	if !d.track {
		return
	}
	d.mu.Lock()
	d.onModify = append(d.onModify, fn)
	d.mu.Unlock()
}

func (d *DB) modified(table, op string, id uuid.UUID) {
	if !d.track {
		return
	}
	d.mu.RLock()
	hooks := d.onModify
	d.mu.RUnlock()

	m := Modification{Table: table, Op: op, ID: id}
	for _, fn := range hooks {
		fn(m)
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) logStatement(query string, args []any) {
	if d.echo {
		d.log.Debug(compact(query), "args", args)
	}
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func (d *DB) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	d.logStatement(query, args)
	return q.ExecContext(ctx, query, args...)
}

func (d *DB) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	d.logStatement(query, args)
	return q.QueryContext(ctx, query, args...)
}

func (d *DB) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	d.logStatement(query, args)
	return q.QueryRowContext(ctx, query, args...)
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// translate maps driver errors onto the package's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case "23503":
			// The referenced row is gone.
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
