// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/pkg/errutil"
)

// Operation names reported to a Recorder.
const (
	OpSignUp  = "signup"
	OpSignIn  = "signin"
	OpSignOut = "signout"
	OpRefresh = "refresh"
)

// Outcomes reported to a Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder observes the outcome of each lifecycle operation.
type Recorder interface {
	RecordAuthOperation(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthOperation(string, string) {}

// SignUpInput is a validated registration request.
type SignUpInput struct {
	Email       string
	Password    string
	DisplayName *string
}

// Service is the session lifecycle orchestrator. An identity is either
// without a session (no stored refresh-token hash) or has exactly one
// active session whose refresh token hashes to the stored value.
type Service struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	logger   *slog.Logger
	recorder Recorder

	// dummyHash is verified against when the email is unknown so that sign-in
	// costs the same whether or not the account exists. It is produced by
	// hasher, so it carries the same cost parameters as real password hashes.
	dummyHash string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service) error

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if logger == nil {
			return oops.Errorf("logger is required")
		}
		s.logger = logger
		return nil
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) error {
		if r == nil {
			return oops.Errorf("recorder is required")
		}
		s.recorder = r
		return nil
	}
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}

	s := &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		logger:   slog.Default(),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	dummy, err := hasher.Hash(rand.Text())
	if err != nil {
		return nil, oops.With("operation", "prepare dummy password hash").Wrap(err)
	}
	s.dummyHash = dummy
	return s, nil
}

// SignUp registers a new identity and opens its first session.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (user *User, pair *TokenPair, err error) {
	defer func() { s.record(ctx, OpSignUp, err) }()

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, oops.Code(CodeSignUpFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	user, err = NewUser(in.Email, passwordHash, in.DisplayName)
	if err != nil {
		return nil, nil, oops.Code(CodeSignUpFailed).
			With("operation", "new user").
			Wrap(err)
	}

	if err = s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, nil, errEmailInUse()
		}
		return nil, nil, oops.Code(CodeSignUpFailed).
			With("operation", "create user").
			Wrap(err)
	}

	pair, refreshHash, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, oops.Code(CodeSignUpFailed).
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if err = s.users.SetRefreshTokenHash(ctx, user.ID, refreshHash); err != nil {
		return nil, nil, oops.Code(CodeSignUpFailed).
			With("operation", "store refresh token hash").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	user.HashedRefreshToken = &refreshHash

	return user, pair, nil
}

// SignIn checks credentials and replaces any existing session with a new one.
// Unknown email and wrong password produce the same error.
func (s *Service) SignIn(ctx context.Context, email, password string) (pair *TokenPair, err error) {
	defer func() { s.record(ctx, OpSignIn, err) }()

	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	var userExists bool
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = s.dummyHash
	default:
		return nil, oops.Code(CodeSignInFailed).
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, errInvalidCredentials()
		}
		return nil, oops.Code(CodeSignInFailed).
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		s.logger.WarnContext(ctx, "sign-in rejected", "known_user", userExists)
		return nil, errInvalidCredentials()
	}

	pair, refreshHash, err := s.issue(ctx, user)
	if err != nil {
		return nil, oops.Code(CodeSignInFailed).
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if err = s.users.SetRefreshTokenHash(ctx, user.ID, refreshHash); err != nil {
		return nil, oops.Code(CodeSignInFailed).
			With("operation", "store refresh token hash").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return pair, nil
}

// SignOut ends the identity's session. Signing out without a session succeeds.
func (s *Service) SignOut(ctx context.Context, userID ulid.ULID) (err error) {
	defer func() { s.record(ctx, OpSignOut, err) }()

	cleared, err := s.users.ClearRefreshTokenHash(ctx, userID)
	if err != nil {
		return oops.Code(CodeSignOutFailed).
			With("operation", "clear refresh token hash").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if !cleared {
		s.logger.DebugContext(ctx, "sign-out without active session", "user_id", userID.String())
	}
	return nil
}

// Refresh rotates the session of the principal. The presented refresh token
// must match the stored hash, and the stored hash is swapped only if nobody
// rotated it in the meantime, so at most one of several concurrent refreshes
// with the same token succeeds.
func (s *Service) Refresh(ctx context.Context, principal *Principal) (pair *TokenPair, err error) {
	defer func() { s.record(ctx, OpRefresh, err) }()

	if principal == nil || principal.RefreshToken == "" {
		return nil, errInvalidCredentials()
	}

	stored, err := s.users.GetRefreshTokenHash(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, oops.Code(CodeRefreshFailed).
			With("operation", "get refresh token hash").
			With("user_id", principal.UserID.String()).
			Wrap(err)
	}
	if stored == nil || *stored == "" {
		return nil, errInvalidCredentials()
	}

	matches, err := s.hasher.Verify(principal.RefreshToken, *stored)
	if err != nil {
		return nil, oops.Code(CodeRefreshFailed).
			With("operation", "verify refresh token").
			With("user_id", principal.UserID.String()).
			Wrap(err)
	}
	if !matches {
		s.logger.WarnContext(ctx, "refresh token does not match active session",
			"user_id", principal.UserID.String())
		return nil, errInvalidCredentials()
	}

	user := &User{ID: principal.UserID, Email: principal.Email}
	pair, refreshHash, err := s.issue(ctx, user)
	if err != nil {
		return nil, oops.Code(CodeRefreshFailed).
			With("user_id", principal.UserID.String()).
			Wrap(err)
	}

	rotated, err := s.users.RotateRefreshTokenHash(ctx, principal.UserID, *stored, refreshHash)
	if err != nil {
		return nil, oops.Code(CodeRefreshFailed).
			With("operation", "rotate refresh token hash").
			With("user_id", principal.UserID.String()).
			Wrap(err)
	}
	if !rotated {
		s.logger.WarnContext(ctx, "refresh lost race against concurrent rotation or sign-out",
			"user_id", principal.UserID.String())
		return nil, errInvalidCredentials()
	}

	return pair, nil
}

// CurrentUser returns the identity behind an authenticated request.
func (s *Service) CurrentUser(ctx context.Context, userID ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, oops.Code(CodeLookupFailed).
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

// ListUsers returns every registered identity.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code(CodeLookupFailed).
			With("operation", "list users").
			Wrap(err)
	}
	return users, nil
}

// issue signs a new pair for user and hashes its refresh token.
func (s *Service) issue(ctx context.Context, user *User) (*TokenPair, string, error) {
	pair, err := s.tokens.SignPair(ctx, user.ID, user.Email)
	if err != nil {
		return nil, "", oops.With("operation", "sign token pair").Wrap(err)
	}
	refreshHash, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return nil, "", oops.With("operation", "hash refresh token").Wrap(err)
	}
	return pair, refreshHash, nil
}

func (s *Service) record(ctx context.Context, operation string, err error) {
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case errutil.HasCode(err, CodeInvalidCredentials), errutil.HasCode(err, CodeEmailInUse):
		outcome = OutcomeRejected
	default:
		outcome = OutcomeError
		errutil.LogErrorContext(ctx, s.logger, operation+" failed", err)
	}
	s.recorder.RecordAuthOperation(operation, outcome)
}
