package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	if opts.URI == "" {
		opts.URI = "postgres://forum@127.0.0.1:1/forum?sslmode=disable"
	}
	db, err := Open(opts, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_IsLazy(t *testing.T) {
	db := openTestDB(t, Options{})
	assert.Equal(t, "postgres://forum@127.0.0.1:1/forum?sslmode=disable", db.URI())
}

func TestOpen_UnreachableFailsOnFirstUse(t *testing.T) {
	db := openTestDB(t, Options{})
	assert.Error(t, db.Ping(context.Background()))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505", Constraint: "users_email_key"}, ErrConflict},
		{"foreign key violation", &pq.Error{Code: "23503", Constraint: "posts_thread_id_fkey"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	other := &pq.Error{Code: "23502"}
	assert.Equal(t, error(other), translate(other))
}

func TestOnModify(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		db := openTestDB(t, Options{TrackModifications: false})
		called := false
		db.OnModify(func(Modification) { called = true })
		db.modified("users", "insert", uuid.New())
		assert.False(t, called)
	})

	t.Run("enabled", func(t *testing.T) {
		db := openTestDB(t, Options{TrackModifications: true})
		var got []Modification
		db.OnModify(func(m Modification) { got = append(got, m) })

		id := uuid.New()
		db.modified("posts", "delete", id)
		require.Len(t, got, 1)
		assert.Equal(t, Modification{Table: "posts", Op: "delete", ID: id}, got[0])
	})
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM users WHERE id = $1", compact("\n\t\tSELECT 1\n\t\tFROM users\n WHERE id = $1"))
}

func TestRedactedHost(t *testing.T) {
	assert.Equal(t, "db.internal:5432", redactedHost("postgres://user:pw@db.internal:5432/forum"))
	assert.Equal(t, "unknown", redactedHost(""))
}
