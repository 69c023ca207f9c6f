// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package auth implements the session-token lifecycle of authgate.
//
// # Domain Types
//
// Users should be created with NewUser, which validates the email, password
// hash and display name. A user holds at most one refresh-token hash; a nil
// hash means the user has no session.
//
// # Tokens
//
// JWTIssuer signs an access token and a refresh token per issuance, each with
// its own secret and lifetime. Verify only accepts a token under the secret
// of the kind it is asked for, so an access token never passes as a refresh
// token or the other way around.
//
// # Services
//
// Service coordinates sign-up, sign-in, sign-out and refresh:
//   - SignUp and SignIn store the hash of a fresh refresh token, replacing any
//     previous one
//   - SignOut clears the stored hash
//   - Refresh compares the presented refresh token against the stored hash
//     and swaps in the new hash only if it is unchanged
//
// Every credential failure is reported as the same AUTH_INVALID_CREDENTIALS
// error so callers cannot tell an unknown email from a wrong password.
package auth
