package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/jacobshu/forum/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_EmbeddedMigrations(t *testing.T) {
	m, err := NewMigrator(openTestDB(t, Options{}), logger.Discard())
	require.NoError(t, err)

	names, err := m.Migrations()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_users.sql", "002_create_refresh_tokens.sql", "003_create_forum.sql"}, names)

	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, int32(3), latest)

	for _, name := range names {
		body, err := fs.ReadFile(m.fs, name)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "---- create above / drop below ----"), name)
	}
}

func TestMigrator_MigrateToOutOfRange(t *testing.T) {
	m, err := NewMigrator(openTestDB(t, Options{}), logger.Discard())
	require.NoError(t, err)

	err = m.MigrateTo(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
