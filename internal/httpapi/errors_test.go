// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid credentials", oops.Code(auth.CodeInvalidCredentials).Errorf(auth.InvalidCredentialsMessage),
			http.StatusUnauthorized, "Invalid credentials"},
		{"guard rejection", errUnauthorized(), http.StatusUnauthorized, "Unauthorized"},
		{"email in use", oops.Code(auth.CodeEmailInUse).Errorf("taken"), http.StatusConflict, "Email is already in use"},
		{"bad body", oops.Code(CodeInvalidBody).Errorf("eof"), http.StatusBadRequest, "Invalid request body"},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"echo custom", echo.NewHTTPError(http.StatusTooManyRequests), http.StatusTooManyRequests, "Too Many Requests"},
		{"vanished user", fmt.Errorf("lookup: %w", auth.ErrNotFound), http.StatusUnauthorized, "Unauthorized"},
		{"store down", oops.Code(auth.CodeSignInFailed).Wrap(errors.New("dial tcp: connection refused")),
			http.StatusInternalServerError, "Internal server error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, body.Message)
			assert.Empty(t, body.Errors)
		})
	}
}

func TestInternalErrorsAreLoggedNotLeaked(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	svc := &fakeService{err: oops.Code(auth.CodeSignInFailed).Wrap(errors.New("dial tcp 10.0.0.5:5432: connection refused"))}

	server, err := New(testConfig(TransportCookie), svc, newTestIssuer(t), WithLogger(logger))
	require.NoError(t, err)

	rec := serve(t, server.Handler(), request{method: http.MethodPost, path: "/auth/signin", body: signInBody})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, logs.String(), "connection refused")
	assert.Contains(t, logs.String(), `"status":500`)
}

func TestPanicsBecomeInternalErrors(t *testing.T) {
	server, err := New(testConfig(TransportCookie), &fakeService{}, newTestIssuer(t), WithLogger(quietLogger()))
	require.NoError(t, err)
	server.echo.GET("/panic", func(echo.Context) error { panic("kaboom") })

	rec := serve(t, server.Handler(), request{method: http.MethodGet, path: "/panic"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}
