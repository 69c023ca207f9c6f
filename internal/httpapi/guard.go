// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// UnauthorizedMessage is the body message of every guard rejection.
const UnauthorizedMessage = "Unauthorized"

// Access tags a route with the credential it requires.
type Access int

const (
	// AccessToken requires a valid access token. It is the default.
	AccessToken Access = iota
	// RefreshToken requires a valid refresh token.
	RefreshToken
	// Public requires nothing.
	Public
)

func (a Access) String() string {
	switch a {
	case AccessToken:
		return "access"
	case RefreshToken:
		return "refresh"
	case Public:
		return "public"
	default:
		return "unknown"
	}
}

// Extractor pulls a raw token out of a request. It returns "" when the
// request carries none.
type Extractor func(r *http.Request) string

// FromCookie reads the named cookie.
func FromCookie(name string) Extractor {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// FromBearerHeader reads an "Authorization: Bearer <token>" header.
func FromBearerHeader() Extractor {
	return func(r *http.Request) string {
		scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
}

// candidateTokens returns the non-empty tokens found by extractors, in
// extractor order.
func candidateTokens(r *http.Request, extractors []Extractor) []string {
	var tokens []string
	for _, extract := range extractors {
		if token := extract(r); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// Guards authenticates requests according to a route's Access tag.
type Guards struct {
	verifier auth.TokenVerifier
	access   []Extractor
	refresh  []Extractor
	logger   *slog.Logger
}

// NewGuards creates guards that look for the access token in accessCookie
// and the refresh token in refreshCookie, then in the Authorization header.
// The first candidate that verifies wins, so a stale cookie does not hide a
// valid bearer token.
func NewGuards(verifier auth.TokenVerifier, accessCookie, refreshCookie string, logger *slog.Logger) *Guards {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guards{
		verifier: verifier,
		access:   []Extractor{FromCookie(accessCookie), FromBearerHeader()},
		refresh:  []Extractor{FromCookie(refreshCookie), FromBearerHeader()},
		logger:   logger,
	}
}

// For returns the middleware enforcing access.
func (g *Guards) For(access Access) echo.MiddlewareFunc {
	switch access {
	case Public:
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	case RefreshToken:
		return g.guard(auth.TokenKindRefresh, g.refresh)
	default:
		return g.guard(auth.TokenKindAccess, g.access)
	}
}

func (g *Guards) guard(kind auth.TokenKind, extractors []Extractor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			raw, claims := g.verify(c, kind, candidateTokens(req, extractors))
			if claims == nil {
				return errUnauthorized()
			}

			principal, err := auth.PrincipalFromClaims(claims)
			if err != nil {
				return errUnauthorized()
			}
			if kind == auth.TokenKindRefresh {
				principal.RefreshToken = raw
			}

			c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), principal)))
			return next(c)
		}
	}
}

// verify returns the first candidate that verifies as kind, with its claims.
func (g *Guards) verify(c echo.Context, kind auth.TokenKind, candidates []string) (string, *auth.Claims) {
	for _, raw := range candidates {
		claims, err := g.verifier.Verify(kind, raw)
		if err == nil {
			return raw, claims
		}
		g.logger.DebugContext(c.Request().Context(), "token rejected",
			"kind", string(kind), "path", c.Path(), "error", err)
	}
	return "", nil
}

func errUnauthorized() error {
	return oops.Code(auth.CodeUnauthorized).Errorf(UnauthorizedMessage)
}

// principal returns the guard-attached principal or an unauthorized error.
func principal(c echo.Context) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return nil, errUnauthorized()
	}
	return p, nil
}
