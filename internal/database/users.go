package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/types"
)

const userColumns = `id, username, email, password_hash, is_admin, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	return u, translate(err)
}

func (d *DB) CreateUser(ctx context.Context, arg CreateUserParams) (types.User, error) {
	var u types.User
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if arg.AdminIfFirst {
			// Serializes concurrent first registrations without blocking readers.
			if _, err := d.exec(ctx, tx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
				return err
			}
		}
		var err error
		u, err = scanUser(d.queryRow(ctx, tx, `
			INSERT INTO users (id, username, email, password_hash, is_admin, created_at, updated_at)
			SELECT $1::uuid, $2::text, $3::text, $4::text, $5::boolean OR ($6::boolean AND NOT EXISTS (SELECT 1 FROM users)), NOW(), NOW()
			RETURNING `+userColumns,
			uuid.New(), arg.Username, strings.ToLower(arg.Email), arg.PasswordHash, arg.IsAdmin, arg.AdminIfFirst,
		))
		return err
	})
	if err != nil {
		return types.User{}, err
	}
	d.modified("users", "insert", u.ID)
	return u, nil
}

func (d *DB) GetUser(ctx context.Context, id uuid.UUID) (types.User, error) {
	return scanUser(d.queryRow(ctx, d.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	return scanUser(d.queryRow(ctx, d.db, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (types.User, error) {
	return scanUser(d.queryRow(ctx, d.db, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (d *DB) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (d *DB) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return d.updateUser(ctx, id, "update", `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, passwordHash)
}

func (d *DB) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	return d.updateUser(ctx, id, "update", `UPDATE users SET is_admin = $2, updated_at = NOW() WHERE id = $1`, isAdmin)
}

func (d *DB) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return d.updateUser(ctx, id, "delete", `DELETE FROM users WHERE id = $1`)
}

func (d *DB) updateUser(ctx context.Context, id uuid.UUID, op, query string, args ...any) error {
	res, err := d.exec(ctx, d.db, query, append([]any{id}, args...)...)
	if err != nil {
		return translate(err)
	}
	if err := affected(res); err != nil {
		return err
	}
	d.modified("users", op, id)
	return nil
}

func (d *DB) CreateRefreshToken(ctx context.Context, arg CreateRefreshTokenParams) error {
	_, err := d.exec(ctx, d.db, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())`,
		arg.Token, arg.UserID, arg.ExpiresAt.UTC(),
	)
	if err != nil {
		return translate(err)
	}
	d.modified("refresh_tokens", "insert", arg.UserID)
	return nil
}

func (d *DB) GetRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	var rt RefreshToken
	var revoked sql.NullTime
	err := d.queryRow(ctx, d.db, `
		SELECT token, user_id, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token = $1`, token,
	).Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &revoked, &rt.CreatedAt)
	if err != nil {
		return RefreshToken{}, translate(err)
	}
	if revoked.Valid {
		rt.RevokedAt = &revoked.Time
	}
	return rt, nil
}

func (d *DB) RevokeRefreshToken(ctx context.Context, token string) error {
	res, err := d.exec(ctx, d.db, `
		UPDATE refresh_tokens SET revoked_at = NOW(), updated_at = NOW()
		WHERE token = $1 AND revoked_at IS NULL`, token)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}
