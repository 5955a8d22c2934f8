package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/types"
)

// Store is everything the route groups need from persistence.
type Store interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (types.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	GetUserByUsername(ctx context.Context, username string) (types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateRefreshToken(ctx context.Context, arg CreateRefreshTokenParams) error
	GetRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error

	CreateCategory(ctx context.Context, arg CreateCategoryParams) (types.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (types.Category, error)
	ListCategories(ctx context.Context) ([]types.Category, error)

	CreateThread(ctx context.Context, arg CreateThreadParams) (types.Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (types.Thread, error)
	ListThreads(ctx context.Context, categoryID uuid.UUID) ([]types.Thread, error)

	CreatePost(ctx context.Context, arg CreatePostParams) (types.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (types.Post, error)
	ListPosts(ctx context.Context, threadID uuid.UUID) ([]types.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error

	Stats(ctx context.Context) (types.Stats, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

var _ Store = (*DB)(nil)

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	// AdminIfFirst grants admin when the users table is empty. The check
	// and the insert are atomic.
	AdminIfFirst bool
}

type CreateRefreshTokenParams struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type RefreshToken struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token may still be exchanged at now.
func (rt RefreshToken) Usable(now time.Time) bool {
	return rt.RevokedAt == nil && now.Before(rt.ExpiresAt)
}

type CreateCategoryParams struct {
	Title       string
	Description string
}

// CreateThreadParams creates a thread together with its opening post.
type CreateThreadParams struct {
	CategoryID uuid.UUID
	UserID     uuid.UUID
	Title      string
	Body       string
}

type CreatePostParams struct {
	ThreadID uuid.UUID
	UserID   uuid.UUID
	Body     string
}
