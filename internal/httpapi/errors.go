// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/pkg/errutil"
)

// Response messages that are not taken from the error itself.
const (
	ValidationFailedMessage = "Validation failed"
	InvalidBodyMessage      = "Invalid request body"
	InternalErrorMessage    = "Internal server error"
)

type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// statusFor maps an error to its status and body. Unknown errors are 500
// with a fixed message; their detail only reaches the log.
func statusFor(err error) (int, errorResponse) {
	var verr *validationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorResponse{Message: ValidationFailedMessage, Errors: verr.details()}
	}

	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		msg := http.StatusText(herr.Code)
		if s, ok := herr.Message.(string); ok && s != "" {
			msg = s
		}
		return herr.Code, errorResponse{Message: msg}
	}

	switch errutil.Code(err) {
	case auth.CodeInvalidCredentials:
		return http.StatusUnauthorized, errorResponse{Message: auth.InvalidCredentialsMessage}
	case auth.CodeUnauthorized:
		return http.StatusUnauthorized, errorResponse{Message: UnauthorizedMessage}
	case auth.CodeEmailInUse:
		return http.StatusConflict, errorResponse{Message: auth.EmailInUseMessage}
	case CodeInvalidBody:
		return http.StatusBadRequest, errorResponse{Message: InvalidBodyMessage}
	case CodeValidationFailed:
		return http.StatusBadRequest, errorResponse{Message: ValidationFailedMessage}
	}

	if errors.Is(err, auth.ErrNotFound) {
		return http.StatusUnauthorized, errorResponse{Message: UnauthorizedMessage}
	}
	return http.StatusInternalServerError, errorResponse{Message: InternalErrorMessage}
}

// errorHandler returns the echo error handler writing statusFor responses.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := statusFor(err)
		if status >= http.StatusInternalServerError {
			errutil.LogErrorContext(c.Request().Context(), logger,
				fmt.Sprintf("%s %s failed", c.Request().Method, c.Path()), err)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.DebugContext(c.Request().Context(), "write error response", "error", writeErr)
		}
	}
}
