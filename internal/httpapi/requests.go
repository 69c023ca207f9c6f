// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Codes for rejected request bodies.
const (
	CodeInvalidBody      = "HTTP_INVALID_BODY"
	CodeValidationFailed = "HTTP_VALIDATION_FAILED"
)

type signUpRequest struct {
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation string  `json:"passwordConfirmation"`
	DisplayName          *string `json:"displayName"`
}

func (r signUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&r.PasswordConfirmation,
			validation.Required,
			validation.By(equalsString(r.Password, "must match password")),
		),
		validation.Field(&r.DisplayName, validation.RuneLength(0, auth.MaxDisplayNameLength)),
	)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r signInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func equalsString(want, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != want {
			return errors.New(message)
		}
		return nil
	}
}

// decodeRequest reads a JSON body into dst, rejecting unknown fields, and
// runs its validation rules.
func decodeRequest(c echo.Context, dst validation.Validatable) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return oops.Code(CodeInvalidBody).Errorf("request body is empty")
		}
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			return herr
		}
		return oops.Code(CodeInvalidBody).Wrap(err)
	}
	if dec.More() {
		return oops.Code(CodeInvalidBody).Errorf("request body has trailing data")
	}

	if err := dst.Validate(); err != nil {
		var fields validation.Errors
		if errors.As(err, &fields) {
			return &validationError{fields: fields}
		}
		return oops.Code(CodeValidationFailed).Wrap(err)
	}
	return nil
}

// validationError carries per-field violations to the error handler.
type validationError struct {
	fields validation.Errors
}

func (e *validationError) Error() string { return e.fields.Error() }

func (e *validationError) Unwrap() error { return e.fields }

// details flattens the violations to field -> reason.
func (e *validationError) details() map[string]string {
	out := make(map[string]string, len(e.fields))
	for field, err := range e.fields {
		out[field] = err.Error()
	}
	return out
}
