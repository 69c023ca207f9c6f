// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package memstore is an in-memory auth.UserStore. It backs the memory storage
// driver and tests that need real store semantics without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// Store keeps users in maps guarded by a single mutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a copy of user.
func (s *Store) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return oops.Code("USER_CREATE_FAILED").With("email", user.Email).Wrap(auth.ErrEmailTaken)
	}
	if _, exists := s.byID[user.ID]; exists {
		return oops.Code("USER_CREATE_FAILED").With("user_id", user.ID.String()).Errorf("duplicate user id")
	}

	s.byID[user.ID] = clone(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

// GetByID returns a copy of the user with id.
func (s *Store) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, oops.With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return clone(user), nil
}

// GetByEmail returns a copy of the user with exactly this email.
func (s *Store) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	return clone(s.byID[id]), nil
}

// List returns copies of all users, oldest first.
func (s *Store) List(_ context.Context) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*auth.User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, clone(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID.Compare(users[j].ID) < 0
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// SetRefreshTokenHash replaces the stored hash.
func (s *Store) SetRefreshTokenHash(_ context.Context, id ulid.ULID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return oops.With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	user.HashedRefreshToken = &hash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearRefreshTokenHash clears the stored hash if one is set.
func (s *Store) ClearRefreshTokenHash(_ context.Context, id ulid.ULID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok || user.HashedRefreshToken == nil {
		return false, nil
	}
	user.HashedRefreshToken = nil
	user.UpdatedAt = time.Now().UTC()
	return true, nil
}

// GetRefreshTokenHash returns the stored hash, nil when signed out.
func (s *Store) GetRefreshTokenHash(_ context.Context, id ulid.ULID) (*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, oops.With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if user.HashedRefreshToken == nil {
		return nil, nil
	}
	hash := *user.HashedRefreshToken
	return &hash, nil
}

// RotateRefreshTokenHash swaps expected for newHash under the lock.
func (s *Store) RotateRefreshTokenHash(_ context.Context, id ulid.ULID, expected, newHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok || user.HashedRefreshToken == nil || *user.HashedRefreshToken != expected {
		return false, nil
	}
	user.HashedRefreshToken = &newHash
	user.UpdatedAt = time.Now().UTC()
	return true, nil
}

// Ping always succeeds. It lets the store serve as a readiness check.
func (s *Store) Ping(context.Context) error { return nil }

func clone(u *auth.User) *auth.User {
	c := *u
	if u.DisplayName != nil {
		name := *u.DisplayName
		c.DisplayName = &name
	}
	if u.HashedRefreshToken != nil {
		hash := *u.HashedRefreshToken
		c.HashedRefreshToken = &hash
	}
	return &c
}

var _ auth.UserStore = (*Store)(nil)
