package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	containerURI  string
	containerErr  error
	container     *postgres.PostgresContainer
)

func TestMain(m *testing.M) {
	code := m.Run()
	if container != nil {
		if err := container.Terminate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}
	os.Exit(code)
}

// integrationURI returns FORUM_TEST_DATABASE_URI, or starts a throwaway
// PostgreSQL container shared by every integration test in the package.
func integrationURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("FORUM_TEST_DATABASE_URI"); uri != "" {
		return uri
	}
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		container, containerErr = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("forum"),
			postgres.WithUsername("forum"),
			postgres.WithPassword("forum"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if containerErr != nil {
			return
		}
		containerURI, containerErr = container.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Skipf("postgres container unavailable: %v", containerErr)
	}
	return containerURI
}

// setupIntegrationDB returns a migrated, empty database.
func setupIntegrationDB(t *testing.T) *DB {
	t.Helper()
	db := openTestDB(t, Options{URI: integrationURI(t), Echo: true, TrackModifications: true})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m, err := NewMigrator(db, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, m.Upgrade(ctx))
	require.NoError(t, db.Reset(ctx))
	return db
}

func TestIntegration_UsersAndForum(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, CreateUserParams{Username: "ana", Email: "Ana@Example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	_, err = db.CreateUser(ctx, CreateUserParams{Username: "ana2", Email: "ana@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := db.GetUserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = db.GetUser(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))

	c, err := db.CreateCategory(ctx, CreateCategoryParams{Title: "General"})
	require.NoError(t, err)

	th, err := db.CreateThread(ctx, CreateThreadParams{CategoryID: c.ID, UserID: u.ID, Title: "Hello", Body: "first"})
	require.NoError(t, err)
	assert.Equal(t, 1, th.PostCount)
	assert.Equal(t, "ana", th.Author)

	p, err := db.CreatePost(ctx, CreatePostParams{ThreadID: th.ID, UserID: u.ID, Body: "second"})
	require.NoError(t, err)

	posts, err := db.ListPosts(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, p.ID, posts[1].ID)

	require.NoError(t, db.DeletePost(ctx, p.ID))
	assert.ErrorIs(t, db.DeletePost(ctx, p.ID), ErrNotFound)

	_, err = db.CreatePost(ctx, CreatePostParams{ThreadID: uuid.New(), UserID: u.ID, Body: "orphan"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.CreatePost(ctx, CreatePostParams{ThreadID: th.ID, UserID: uuid.New(), Body: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.CreateThread(ctx, CreateThreadParams{CategoryID: uuid.New(), UserID: u.ID, Title: "Lost", Body: "nowhere"})
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Threads)
	assert.Equal(t, 1, stats.Posts)
}

func TestIntegration_AdminIfFirst(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.CreateUser(ctx, CreateUserParams{
				Username:     fmt.Sprintf("user%d", i),
				Email:        fmt.Sprintf("user%d@example.com", i),
				PasswordHash: "h",
				AdminIfFirst: true,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 8)
	admins := 0
	for _, u := range users {
		if u.IsAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestIntegration_RefreshTokens(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, CreateUserParams{Username: "bo", Email: "bo@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, db.CreateRefreshToken(ctx, CreateRefreshTokenParams{Token: "tok", UserID: u.ID, ExpiresAt: exp}))

	rt, err := db.GetRefreshToken(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, rt.Usable(time.Now()))

	require.NoError(t, db.RevokeRefreshToken(ctx, "tok"))
	rt, err = db.GetRefreshToken(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, rt.Usable(time.Now()))
	assert.ErrorIs(t, db.RevokeRefreshToken(ctx, "tok"), ErrNotFound)
}

func TestIntegration_RefreshTokenExpiryKeepsInstant(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, CreateUserParams{Username: "di", Email: "di@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	tokyo := time.FixedZone("UTC+9", 9*60*60)
	exp := time.Now().Add(time.Hour).Truncate(time.Second).In(tokyo)
	require.NoError(t, db.CreateRefreshToken(ctx, CreateRefreshTokenParams{Token: "zoned", UserID: u.ID, ExpiresAt: exp}))

	rt, err := db.GetRefreshToken(ctx, "zoned")
	require.NoError(t, err)
	assert.True(t, exp.Equal(rt.ExpiresAt), "stored %s, read back %s", exp, rt.ExpiresAt)
	assert.True(t, rt.Usable(exp.Add(-time.Minute)))
	assert.False(t, rt.Usable(exp.Add(time.Minute)))
}

func TestIntegration_TrackModifications(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	var seen []Modification
	db.OnModify(func(m Modification) { seen = append(seen, m) })

	u, err := db.CreateUser(ctx, CreateUserParams{Username: "cy", Email: "cy@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, db.SetAdmin(ctx, u.ID, true))

	require.Len(t, seen, 2)
	assert.Equal(t, Modification{Table: "users", Op: "insert", ID: u.ID}, seen[0])
	assert.Equal(t, "update", seen[1].Op)
}
