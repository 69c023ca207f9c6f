// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

// Token kinds.
const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the signed payload of both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	Email string    `json:"email"`
	Kind  TokenKind `json:"token_type"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeTokenInvalid).With("subject", c.Subject).Wrap(err)
	}
	return id, nil
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenIssuer mints token pairs.
type TokenIssuer interface {
	SignPair(ctx context.Context, userID ulid.ULID, email string) (*TokenPair, error)
}

// TokenVerifier checks signature, expiry and kind of a raw token.
type TokenVerifier interface {
	Verify(kind TokenKind, raw string) (*Claims, error)
}

// TokenConfig configures JWTIssuer.
type TokenConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	Issuer        string
}

// Validate rejects configurations that would let one key forge the other
// token kind, or that cannot produce a usable token.
func (c TokenConfig) Validate() error {
	switch {
	case len(c.AccessSecret) == 0:
		return oops.Code(CodeTokenConfigInvalid).Errorf("access token secret is required")
	case len(c.RefreshSecret) == 0:
		return oops.Code(CodeTokenConfigInvalid).Errorf("refresh token secret is required")
	case string(c.AccessSecret) == string(c.RefreshSecret):
		return oops.Code(CodeTokenConfigInvalid).Errorf("access and refresh token secrets must differ")
	case c.AccessTTL <= 0:
		return oops.Code(CodeTokenConfigInvalid).With("access_ttl", c.AccessTTL).Errorf("access token TTL must be positive")
	case c.RefreshTTL <= 0:
		return oops.Code(CodeTokenConfigInvalid).With("refresh_ttl", c.RefreshTTL).Errorf("refresh token TTL must be positive")
	}
	return nil
}

// JWTIssuer signs and verifies HS256 tokens, one secret per kind.
type JWTIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// JWTIssuerOption customizes a JWTIssuer.
type JWTIssuerOption func(*JWTIssuer)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) JWTIssuerOption {
	return func(i *JWTIssuer) {
		i.now = now
	}
}

// NewJWTIssuer creates a JWTIssuer. A misconfigured secret is a startup error.
func NewJWTIssuer(cfg TokenConfig, opts ...JWTIssuerOption) (*JWTIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	i := &JWTIssuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *JWTIssuer) AccessTTL() time.Duration { return i.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *JWTIssuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

// SignPair signs an access and a refresh token for the user concurrently.
func (i *JWTIssuer) SignPair(ctx context.Context, userID ulid.ULID, email string) (*TokenPair, error) {
	now := i.now()
	pair := &TokenPair{
		AccessExpiresAt:  now.Add(i.cfg.AccessTTL),
		RefreshExpiresAt: now.Add(i.cfg.RefreshTTL),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pair.AccessToken, err = i.sign(gctx, TokenKindAccess, userID, email, now, pair.AccessExpiresAt)
		return err
	})
	g.Go(func() error {
		var err error
		pair.RefreshToken, err = i.sign(gctx, TokenKindRefresh, userID, email, now, pair.RefreshExpiresAt)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pair, nil
}

func (i *JWTIssuer) sign(ctx context.Context, kind TokenKind, userID ulid.ULID, email string, now, expiresAt time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", oops.Code(CodeTokenSignFailed).With("kind", kind).Wrap(err)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Kind:  kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret(kind))
	if err != nil {
		return "", oops.Code(CodeTokenSignFailed).With("kind", kind).Wrap(err)
	}
	return signed, nil
}

// Verify parses raw with the secret of kind and checks expiry, issuer and
// the embedded kind. A token of the other kind never verifies.
func (i *JWTIssuer) Verify(kind TokenKind, raw string) (*Claims, error) {
	if raw == "" {
		return nil, oops.Code(CodeTokenInvalid).With("kind", kind).Errorf("token is empty")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(i.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret(kind), nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code(CodeTokenExpired).With("kind", kind).Wrap(err)
		}
		return nil, oops.Code(CodeTokenInvalid).With("kind", kind).Wrap(err)
	}
	if !token.Valid {
		return nil, oops.Code(CodeTokenInvalid).With("kind", kind).Errorf("token is not valid")
	}
	if claims.Kind != kind {
		return nil, oops.Code(CodeTokenInvalid).
			With("kind", kind).
			With("token_type", claims.Kind).
			Errorf("unexpected token type")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *JWTIssuer) secret(kind TokenKind) []byte {
	if kind == TokenKindRefresh {
		return i.cfg.RefreshSecret
	}
	return i.cfg.AccessSecret
}

// Compile-time interface checks.
var (
	_ TokenIssuer   = (*JWTIssuer)(nil)
	_ TokenVerifier = (*JWTIssuer)(nil)
)
