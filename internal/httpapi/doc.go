// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package httpapi exposes the session lifecycle over HTTP.
//
// # Routes
//
// Every route is a Route descriptor whose Access tag selects its guard:
// AccessToken (the zero value) requires a valid access token, RefreshToken
// requires a valid refresh token and hands the raw token to the handler,
// and Public skips authentication.
//
// # Token transport
//
// Issued tokens reach the client either as HttpOnly cookies or as JSON body
// fields, chosen once per deployment. Guards accept a token from the
// matching cookie or from an "Authorization: Bearer" header.
//
// # Errors
//
// Handlers return errors; a single error handler turns oops codes into
// status codes and small JSON bodies. Credential failures share one body so
// clients cannot tell an unknown email from a wrong password.
package httpapi
