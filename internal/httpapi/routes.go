// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/authgate/authgate/internal/auth"
)

// Success messages of the cookie transport.
const (
	SignedUpMessage  = "Signed up successfully"
	SignedInMessage  = "Signed in successfully"
	SignedOutMessage = "Signed out successfully"
	RefreshedMessage = "Tokens refreshed"
)

// Route describes one endpoint. The zero Access requires an access token.
type Route struct {
	Method  string
	Path    string
	Access  Access
	Handler echo.HandlerFunc
}

// Routes returns the API's route table.
func (s *Server) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/auth/signup", Access: Public, Handler: s.signUp},
		{Method: http.MethodPost, Path: "/auth/signin", Access: Public, Handler: s.signIn},
		{Method: http.MethodPost, Path: "/auth/signout", Handler: s.signOut},
		{Method: http.MethodPost, Path: "/auth/refresh", Access: RefreshToken, Handler: s.refresh},
		{Method: http.MethodGet, Path: "/users/me", Handler: s.me},
		{Method: http.MethodGet, Path: "/users", Access: Public, Handler: s.listUsers},
		{Method: http.MethodGet, Path: "/healthz", Access: Public, Handler: s.healthz},
	}
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (s *Server) signUp(c echo.Context) error {
	var req signUpRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}

	_, pair, err := s.svc.SignUp(c.Request().Context(), auth.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return err
	}
	return s.transport.issue(c, http.StatusCreated, SignedUpMessage, pair)
}

func (s *Server) signIn(c echo.Context) error {
	var req signInRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}

	pair, err := s.svc.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return s.transport.issue(c, http.StatusOK, SignedInMessage, pair)
}

func (s *Server) signOut(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := s.svc.SignOut(c.Request().Context(), p.UserID); err != nil {
		return err
	}
	s.transport.clear(c)
	return c.JSON(http.StatusOK, messageResponse{Message: SignedOutMessage})
}

func (s *Server) refresh(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pair, err := s.svc.Refresh(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return s.transport.issue(c, http.StatusOK, RefreshedMessage, pair)
}

func (s *Server) me(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	user, err := s.svc.CurrentUser(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

func (s *Server) listUsers(c echo.Context) error {
	users, err := s.svc.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
