// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Principal is the authenticated caller of a request. It lives only for the
// duration of the request.
type Principal struct {
	UserID ulid.ULID
	Email  string
	// RefreshToken is the raw refresh token, set only by the refresh guard.
	RefreshToken string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached by a guard.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// PrincipalFromClaims builds a principal from verified claims.
func PrincipalFromClaims(claims *Claims) (*Principal, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return &Principal{UserID: id, Email: claims.Email}, nil
}
