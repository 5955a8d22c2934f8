package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/types"
)

func (d *DB) CreateCategory(ctx context.Context, arg CreateCategoryParams) (types.Category, error) {
	var c types.Category
	err := d.queryRow(ctx, d.db, `
		INSERT INTO categories (id, title, description, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, title, description, created_at`,
		uuid.New(), arg.Title, arg.Description,
	).Scan(&c.ID, &c.Title, &c.Description, &c.CreatedAt)
	if err != nil {
		return types.Category{}, translate(err)
	}
	d.modified("categories", "insert", c.ID)
	return c, nil
}

func (d *DB) GetCategory(ctx context.Context, id uuid.UUID) (types.Category, error) {
	var c types.Category
	err := d.queryRow(ctx, d.db, `
		SELECT id, title, description, created_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.CreatedAt)
	return c, translate(err)
}

func (d *DB) ListCategories(ctx context.Context) ([]types.Category, error) {
	rows, err := d.query(ctx, d.db, `SELECT id, title, description, created_at FROM categories ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []types.Category{}
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const threadSelect = `
	SELECT t.id, t.category_id, t.user_id, u.username, t.title, t.created_at, t.updated_at,
		(SELECT COUNT(*) FROM posts p WHERE p.thread_id = t.id)
	FROM threads t JOIN users u ON u.id = t.user_id`

func scanThread(row interface{ Scan(...any) error }) (types.Thread, error) {
	var t types.Thread
	err := row.Scan(&t.ID, &t.CategoryID, &t.UserID, &t.Author, &t.Title, &t.CreatedAt, &t.UpdatedAt, &t.PostCount)
	return t, translate(err)
}

// CreateThread inserts the thread and its opening post in one transaction.
func (d *DB) CreateThread(ctx context.Context, arg CreateThreadParams) (types.Thread, error) {
	threadID := uuid.New()
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := d.exec(ctx, tx, `
			INSERT INTO threads (id, category_id, user_id, title, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())`,
			threadID, arg.CategoryID, arg.UserID, arg.Title,
		); err != nil {
			return translate(err)
		}
		if _, err := d.exec(ctx, tx, `
			INSERT INTO posts (id, thread_id, user_id, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())`,
			uuid.New(), threadID, arg.UserID, arg.Body,
		); err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		return types.Thread{}, err
	}
	d.modified("threads", "insert", threadID)
	return d.GetThread(ctx, threadID)
}

func (d *DB) GetThread(ctx context.Context, id uuid.UUID) (types.Thread, error) {
	return scanThread(d.queryRow(ctx, d.db, threadSelect+` WHERE t.id = $1`, id))
}

func (d *DB) ListThreads(ctx context.Context, categoryID uuid.UUID) ([]types.Thread, error) {
	rows, err := d.query(ctx, d.db, threadSelect+` WHERE t.category_id = $1 ORDER BY t.updated_at DESC`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	threads := []types.Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

const postSelect = `
	SELECT p.id, p.thread_id, p.user_id, u.username, p.body, p.created_at, p.updated_at
	FROM posts p JOIN users u ON u.id = p.user_id`

func scanPost(row interface{ Scan(...any) error }) (types.Post, error) {
	var p types.Post
	err := row.Scan(&p.ID, &p.ThreadID, &p.UserID, &p.Author, &p.Body, &p.CreatedAt, &p.UpdatedAt)
	return p, translate(err)
}

// CreatePost adds a reply and bumps the thread.
func (d *DB) CreatePost(ctx context.Context, arg CreatePostParams) (types.Post, error) {
	postID := uuid.New()
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := d.exec(ctx, tx, `
			INSERT INTO posts (id, thread_id, user_id, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())`,
			postID, arg.ThreadID, arg.UserID, arg.Body,
		); err != nil {
			return translate(err)
		}
		res, err := d.exec(ctx, tx, `UPDATE threads SET updated_at = NOW() WHERE id = $1`, arg.ThreadID)
		if err != nil {
			return err
		}
		return affected(res)
	})
	if err != nil {
		return types.Post{}, err
	}
	d.modified("posts", "insert", postID)
	return d.GetPost(ctx, postID)
}

func (d *DB) GetPost(ctx context.Context, id uuid.UUID) (types.Post, error) {
	return scanPost(d.queryRow(ctx, d.db, postSelect+` WHERE p.id = $1`, id))
}

func (d *DB) ListPosts(ctx context.Context, threadID uuid.UUID) ([]types.Post, error) {
	rows, err := d.query(ctx, d.db, postSelect+` WHERE p.thread_id = $1 ORDER BY p.created_at`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []types.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (d *DB) DeletePost(ctx context.Context, id uuid.UUID) error {
	res, err := d.exec(ctx, d.db, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if err := affected(res); err != nil {
		return err
	}
	d.modified("posts", "delete", id)
	return nil
}

func (d *DB) Stats(ctx context.Context) (types.Stats, error) {
	var s types.Stats
	err := d.queryRow(ctx, d.db, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM threads),
			(SELECT COUNT(*) FROM posts)`,
	).Scan(&s.Users, &s.Categories, &s.Threads, &s.Posts)
	return s, translate(err)
}

// Reset removes every row. Only the admin reset endpoint calls it, and only
// in the dev environment.
func (d *DB) Reset(ctx context.Context) error {
	_, err := d.exec(ctx, d.db, `TRUNCATE posts, threads, categories, refresh_tokens, users`)
	if err != nil {
		return err
	}
	d.modified("users", "truncate", uuid.Nil)
	return nil
}
