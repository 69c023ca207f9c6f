// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/authgate/authgate/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when the email uniqueness
// constraint rejects a write.
var ErrEmailTaken = errors.New("email already in use")

// Error codes surfaced by the orchestrator and the token layer.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeEmailInUse         = "AUTH_EMAIL_IN_USE"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"

	CodeSignUpFailed  = "AUTH_SIGNUP_FAILED"
	CodeSignInFailed  = "AUTH_SIGNIN_FAILED"
	CodeSignOutFailed = "AUTH_SIGNOUT_FAILED"
	CodeRefreshFailed = "AUTH_REFRESH_FAILED"
	CodeLookupFailed  = "AUTH_LOOKUP_FAILED"

	CodeTokenSignFailed    = "TOKEN_SIGN_FAILED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenConfigInvalid = "TOKEN_CONFIG_INVALID"
)

// InvalidCredentialsMessage is the single message returned for every
// credential-related rejection.
const InvalidCredentialsMessage = "Invalid credentials"

// errInvalidCredentials builds the opaque credential error. Every negative
// branch of sign-in and refresh returns exactly this shape.
func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(InvalidCredentialsMessage)
}

// EmailInUseMessage is returned when sign-up hits an existing email.
const EmailInUseMessage = "Email is already in use"

func errEmailInUse() error {
	return oops.Code(CodeEmailInUse).Errorf(EmailInUseMessage)
}

// IsInvalidCredentials reports whether err is the opaque credential error.
func IsInvalidCredentials(err error) bool {
	return errutil.HasCode(err, CodeInvalidCredentials)
}
