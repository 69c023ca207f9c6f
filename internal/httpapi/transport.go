// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/authgate/authgate/internal/auth"
)

// Transport names.
const (
	TransportCookie = "cookie"
	TransportBody   = "body"
)

// tokenTransport delivers an issued pair to the client.
type tokenTransport interface {
	// issue writes the response for a successful sign-up, sign-in or refresh.
	issue(c echo.Context, status int, message string, pair *auth.TokenPair) error
	// clear removes client-held tokens after sign-out.
	clear(c echo.Context)
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// cookieTransport sets one HttpOnly cookie per token. Max-Age equals the
// token TTL.
type cookieTransport struct {
	accessName  string
	refreshName string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	secure      bool
}

func (t *cookieTransport) issue(c echo.Context, status int, message string, pair *auth.TokenPair) error {
	c.SetCookie(t.cookie(t.accessName, pair.AccessToken, t.accessTTL))
	c.SetCookie(t.cookie(t.refreshName, pair.RefreshToken, t.refreshTTL))
	return c.JSON(status, messageResponse{Message: message})
}

func (t *cookieTransport) clear(c echo.Context) {
	c.SetCookie(t.cookie(t.accessName, "", -1))
	c.SetCookie(t.cookie(t.refreshName, "", -1))
}

func (t *cookieTransport) cookie(name, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// bodyTransport returns both tokens in the JSON body.
type bodyTransport struct{}

func (bodyTransport) issue(c echo.Context, status int, _ string, pair *auth.TokenPair) error {
	return c.JSON(status, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (bodyTransport) clear(echo.Context) {}
