// Package databasetest provides an in-memory database.Store for tests.
package databasetest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/types"
)

type MemStore struct {
	mu         sync.Mutex
	tick       time.Time
	users      map[uuid.UUID]types.User
	tokens     map[string]database.RefreshToken
	categories map[uuid.UUID]types.Category
	threads    map[uuid.UUID]types.Thread
	posts      map[uuid.UUID]types.Post

	// PingErr is returned by Ping when set.
	PingErr error
}

var _ database.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		tick:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:      map[uuid.UUID]types.User{},
		tokens:     map[string]database.RefreshToken{},
		categories: map[uuid.UUID]types.Category{},
		threads:    map[uuid.UUID]types.Thread{},
		posts:      map[uuid.UUID]types.Post{},
	}
}

// now returns strictly increasing timestamps so ordering is deterministic.
func (s *MemStore) now() time.Time {
	s.tick = s.tick.Add(time.Millisecond)
	return s.tick
}

func conflict(what string) error {
	return fmt.Errorf("%w: %s", database.ErrConflict, what)
}

func (s *MemStore) CreateUser(_ context.Context, arg database.CreateUserParams) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(arg.Email)
	for _, u := range s.users {
		if u.Email == email {
			return types.User{}, conflict("users_email_key")
		}
		if u.Username == arg.Username {
			return types.User{}, conflict("users_username_key")
		}
	}

	now := s.now()
	u := types.User{
		ID:           uuid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Username:     arg.Username,
		Email:        email,
		PasswordHash: arg.PasswordHash,
		IsAdmin:      arg.IsAdmin || (arg.AdminIfFirst && len(s.users) == 0),
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *MemStore) GetUser(_ context.Context, id uuid.UUID) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return types.User{}, database.ErrNotFound
	}
	return u, nil
}

func (s *MemStore) findUser(match func(types.User) bool) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return types.User{}, database.ErrNotFound
}

func (s *MemStore) GetUserByEmail(_ context.Context, email string) (types.User, error) {
	email = strings.ToLower(email)
	return s.findUser(func(u types.User) bool { return u.Email == email })
}

func (s *MemStore) GetUserByUsername(_ context.Context, username string) (types.User, error) {
	return s.findUser(func(u types.User) bool { return u.Username == username })
}

func (s *MemStore) ListUsers(_ context.Context) ([]types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]types.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b types.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return users, nil
}

func (s *MemStore) updateUser(id uuid.UUID, fn func(*types.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return database.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func (s *MemStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return s.updateUser(id, func(u *types.User) { u.PasswordHash = passwordHash })
}

func (s *MemStore) SetAdmin(_ context.Context, id uuid.UUID, isAdmin bool) error {
	return s.updateUser(id, func(u *types.User) { u.IsAdmin = isAdmin })
}

func (s *MemStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.users, id)
	for tid, t := range s.threads {
		if t.UserID == id {
			s.deleteThreadLocked(tid)
		}
	}
	for pid, p := range s.posts {
		if p.UserID == id {
			delete(s.posts, pid)
		}
	}
	for tok, rt := range s.tokens {
		if rt.UserID == id {
			delete(s.tokens, tok)
		}
	}
	return nil
}

func (s *MemStore) deleteThreadLocked(id uuid.UUID) {
	delete(s.threads, id)
	for pid, p := range s.posts {
		if p.ThreadID == id {
			delete(s.posts, pid)
		}
	}
}

func (s *MemStore) CreateRefreshToken(_ context.Context, arg database.CreateRefreshTokenParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[arg.Token]; ok {
		return conflict("refresh_tokens_pkey")
	}
	s.tokens[arg.Token] = database.RefreshToken{
		Token:     arg.Token,
		UserID:    arg.UserID,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: s.now(),
	}
	return nil
}

func (s *MemStore) GetRefreshToken(_ context.Context, token string) (database.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.tokens[token]
	if !ok {
		return database.RefreshToken{}, database.ErrNotFound
	}
	return rt, nil
}

func (s *MemStore) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.tokens[token]
	if !ok || rt.RevokedAt != nil {
		return database.ErrNotFound
	}
	now := s.now()
	rt.RevokedAt = &now
	s.tokens[token] = rt
	return nil
}

func (s *MemStore) CreateCategory(_ context.Context, arg database.CreateCategoryParams) (types.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Title == arg.Title {
			return types.Category{}, conflict("categories_title_key")
		}
	}
	c := types.Category{ID: uuid.New(), CreatedAt: s.now(), Title: arg.Title, Description: arg.Description}
	s.categories[c.ID] = c
	return c, nil
}

func (s *MemStore) GetCategory(_ context.Context, id uuid.UUID) (types.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return types.Category{}, database.ErrNotFound
	}
	return c, nil
}

func (s *MemStore) ListCategories(_ context.Context) ([]types.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b types.Category) int { return strings.Compare(a.Title, b.Title) })
	return out, nil
}

func (s *MemStore) CreateThread(_ context.Context, arg database.CreateThreadParams) (types.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[arg.CategoryID]; !ok {
		return types.Thread{}, database.ErrNotFound
	}
	author, ok := s.users[arg.UserID]
	if !ok {
		return types.Thread{}, database.ErrNotFound
	}

	now := s.now()
	t := types.Thread{
		ID:         uuid.New(),
		CreatedAt:  now,
		UpdatedAt:  now,
		CategoryID: arg.CategoryID,
		UserID:     arg.UserID,
		Author:     author.Username,
		Title:      arg.Title,
	}
	s.threads[t.ID] = t
	p := types.Post{ID: uuid.New(), CreatedAt: now, UpdatedAt: now, ThreadID: t.ID, UserID: arg.UserID, Body: arg.Body}
	s.posts[p.ID] = p
	return s.threadLocked(t.ID), nil
}

func (s *MemStore) threadLocked(id uuid.UUID) types.Thread {
	t := s.threads[id]
	t.PostCount = 0
	for _, p := range s.posts {
		if p.ThreadID == id {
			t.PostCount++
		}
	}
	if u, ok := s.users[t.UserID]; ok {
		t.Author = u.Username
	}
	return t
}

func (s *MemStore) GetThread(_ context.Context, id uuid.UUID) (types.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return types.Thread{}, database.ErrNotFound
	}
	return s.threadLocked(id), nil
}

func (s *MemStore) ListThreads(_ context.Context, categoryID uuid.UUID) ([]types.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []types.Thread{}
	for id, t := range s.threads {
		if t.CategoryID == categoryID {
			out = append(out, s.threadLocked(id))
		}
	}
	slices.SortFunc(out, func(a, b types.Thread) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

func (s *MemStore) CreatePost(_ context.Context, arg database.CreatePostParams) (types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[arg.ThreadID]
	if !ok {
		return types.Post{}, database.ErrNotFound
	}
	author, ok := s.users[arg.UserID]
	if !ok {
		return types.Post{}, database.ErrNotFound
	}

	now := s.now()
	p := types.Post{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		ThreadID:  arg.ThreadID,
		UserID:    arg.UserID,
		Author:    author.Username,
		Body:      arg.Body,
	}
	s.posts[p.ID] = p
	t.UpdatedAt = now
	s.threads[t.ID] = t
	return p, nil
}

func (s *MemStore) postLocked(p types.Post) types.Post {
	if u, ok := s.users[p.UserID]; ok {
		p.Author = u.Username
	}
	return p
}

func (s *MemStore) GetPost(_ context.Context, id uuid.UUID) (types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return types.Post{}, database.ErrNotFound
	}
	return s.postLocked(p), nil
}

func (s *MemStore) ListPosts(_ context.Context, threadID uuid.UUID) ([]types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []types.Post{}
	for _, p := range s.posts {
		if p.ThreadID == threadID {
			out = append(out, s.postLocked(p))
		}
	}
	slices.SortFunc(out, func(a, b types.Post) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemStore) DeletePost(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *MemStore) Stats(_ context.Context) (types.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Stats{
		Users:      len(s.users),
		Categories: len(s.categories),
		Threads:    len(s.threads),
		Posts:      len(s.posts),
	}, nil
}

func (s *MemStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.users)
	clear(s.tokens)
	clear(s.categories)
	clear(s.threads)
	clear(s.posts)
	return nil
}

func (s *MemStore) Ping(_ context.Context) error {
	return s.PingErr
}
