// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package postgres implements the auth store contracts on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, email, password_hash, display_name, hashed_rt, created_at, updated_at`

// UserRepository implements auth.UserStore using PostgreSQL.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. A unique violation on email is reported as
// auth.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.HashedRefreshToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_EMAIL_TAKEN").
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").
				With("operation", "scan user").
				Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "iterate users").
			Wrap(err)
	}
	return users, nil
}

// SetRefreshTokenHash replaces the stored refresh-token hash.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id ulid.ULID, hash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET hashed_rt = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), hash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_SET_REFRESH_HASH_FAILED").
			With("operation", "set refresh token hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ClearRefreshTokenHash nulls the stored hash. Rows already null are not
// touched, so a repeated sign-out performs no write.
func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, id ulid.ULID) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET hashed_rt = NULL, updated_at = $2
		WHERE id = $1 AND hashed_rt IS NOT NULL
	`, id.String(), time.Now().UTC())
	if err != nil {
		return false, oops.Code("USER_CLEAR_REFRESH_HASH_FAILED").
			With("operation", "clear refresh token hash").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// GetRefreshTokenHash returns the stored hash, or nil when there is none.
func (r *UserRepository) GetRefreshTokenHash(ctx context.Context, id ulid.ULID) (*string, error) {
	var hash *string
	err := r.db.QueryRow(ctx, `SELECT hashed_rt FROM users WHERE id = $1`, id.String()).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_REFRESH_HASH_FAILED").
			With("operation", "get refresh token hash").
			With("id", id.String()).
			Wrap(err)
	}
	return hash, nil
}

// RotateRefreshTokenHash replaces expected with newHash in a single
// conditional update. It reports false when the row no longer holds expected.
func (r *UserRepository) RotateRefreshTokenHash(ctx context.Context, id ulid.ULID, expected, newHash string) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET hashed_rt = $3, updated_at = $4
		WHERE id = $1 AND hashed_rt = $2
	`, id.String(), expected, newHash, time.Now().UTC())
	if err != nil {
		return false, oops.Code("USER_ROTATE_REFRESH_HASH_FAILED").
			With("operation", "rotate refresh token hash").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		user  auth.User
	)
	if err := row.Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.HashedRefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	user.ID = id
	return &user, nil
}

var _ auth.UserStore = (*UserRepository)(nil)
