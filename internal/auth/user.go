// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxDisplayNameLength bounds the optional display name, in characters.
const MaxDisplayNameLength = 200

// User is a registered identity.
//
// HashedRefreshToken is nil exactly when the user has no active session.
type User struct {
	ID                 ulid.ULID
	Email              string
	PasswordHash       string
	DisplayName        *string
	HashedRefreshToken *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUser creates a validated User with a fresh ID and no active session.
// The email is stored as given; lookups match it exactly.
func NewUser(email, passwordHash string, displayName *string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}
	if displayName != nil && utf8.RuneCountInString(*displayName) > MaxDisplayNameLength {
		return nil, oops.Code("USER_INVALID_DISPLAY_NAME").
			With("max", MaxDisplayNameLength).
			Errorf("display name must be at most %d characters", MaxDisplayNameLength)
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasActiveSession reports whether a refresh-token hash is stored.
func (u *User) HasActiveSession() bool {
	return u.HashedRefreshToken != nil && *u.HashedRefreshToken != ""
}

// UserRepository manages identity persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns an error wrapping ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*User, error)
}

// RefreshTokenStore holds at most one refresh-token hash per user.
type RefreshTokenStore interface {
	// SetRefreshTokenHash replaces the stored hash unconditionally.
	SetRefreshTokenHash(ctx context.Context, id ulid.ULID, hash string) error

	// ClearRefreshTokenHash sets the stored hash to null. It writes only when
	// a hash is currently stored and reports whether it did.
	ClearRefreshTokenHash(ctx context.Context, id ulid.ULID) (bool, error)

	// GetRefreshTokenHash returns the stored hash, or nil when there is no
	// active session. Returns ErrNotFound if the user does not exist.
	GetRefreshTokenHash(ctx context.Context, id ulid.ULID) (*string, error)

	// RotateRefreshTokenHash replaces the stored hash with newHash only if it
	// still equals expected. Returns false when another writer got there first.
	RotateRefreshTokenHash(ctx context.Context, id ulid.ULID, expected, newHash string) (bool, error)
}

// UserStore is the full persistence contract the orchestrator depends on.
type UserStore interface {
	UserRepository
	RefreshTokenStore
}
