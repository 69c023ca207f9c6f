// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package mocks holds testify mocks for the auth interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/authgate/authgate/internal/auth"
)

// testingT is the subset of *testing.T the constructors need.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserStore mocks auth.UserStore.
type MockUserStore struct {
	mock.Mock
}

// NewMockUserStore creates a MockUserStore that asserts its expectations on cleanup.
func NewMockUserStore(t testingT) *MockUserStore {
	m := &MockUserStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserStore) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserStore) List(ctx context.Context) ([]*auth.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*auth.User)
	return users, args.Error(1)
}

func (m *MockUserStore) SetRefreshTokenHash(ctx context.Context, id ulid.ULID, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserStore) ClearRefreshTokenHash(ctx context.Context, id ulid.ULID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) GetRefreshTokenHash(ctx context.Context, id ulid.ULID) (*string, error) {
	args := m.Called(ctx, id)
	hash, _ := args.Get(0).(*string)
	return hash, args.Error(1)
}

func (m *MockUserStore) RotateRefreshTokenHash(ctx context.Context, id ulid.ULID, expected, newHash string) (bool, error) {
	args := m.Called(ctx, id, expected, newHash)
	return args.Bool(0), args.Error(1)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(secret string) (string, error) {
	args := m.Called(secret)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(secret, hash string) (bool, error) {
	args := m.Called(secret, hash)
	return args.Bool(0), args.Error(1)
}

// MockTokenIssuer mocks auth.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

// NewMockTokenIssuer creates a MockTokenIssuer that asserts its expectations on cleanup.
func NewMockTokenIssuer(t testingT) *MockTokenIssuer {
	m := &MockTokenIssuer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenIssuer) SignPair(ctx context.Context, userID ulid.ULID, email string) (*auth.TokenPair, error) {
	args := m.Called(ctx, userID, email)
	pair, _ := args.Get(0).(*auth.TokenPair)
	return pair, args.Error(1)
}

// MockRecorder mocks auth.Recorder.
type MockRecorder struct {
	mock.Mock
}

// NewMockRecorder creates a MockRecorder that asserts its expectations on cleanup.
func NewMockRecorder(t testingT) *MockRecorder {
	m := &MockRecorder{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecorder) RecordAuthOperation(operation, outcome string) {
	m.Called(operation, outcome)
}

var (
	_ auth.UserStore      = (*MockUserStore)(nil)
	_ auth.PasswordHasher = (*MockPasswordHasher)(nil)
	_ auth.TokenIssuer    = (*MockTokenIssuer)(nil)
	_ auth.Recorder       = (*MockRecorder)(nil)
)
