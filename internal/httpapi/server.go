// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// AuthService is the session lifecycle the API exposes.
type AuthService interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (*auth.User, *auth.TokenPair, error)
	SignIn(ctx context.Context, email, password string) (*auth.TokenPair, error)
	SignOut(ctx context.Context, userID ulid.ULID) error
	Refresh(ctx context.Context, principal *auth.Principal) (*auth.TokenPair, error)
	CurrentUser(ctx context.Context, userID ulid.ULID) (*auth.User, error)
	ListUsers(ctx context.Context) ([]*auth.User, error)
}

// RequestRecorder observes served requests.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int)
}

type noopRequestRecorder struct{}

func (noopRequestRecorder) RecordHTTPRequest(string, string, int) {}

// BodyLimit caps request bodies. Larger requests get 413.
const BodyLimit = "64K"

// Config configures the API server.
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	CORSOrigins       []string // glob patterns

	Transport     string // TransportCookie or TransportBody
	AccessCookie  string
	RefreshCookie string
	CookieSecure  bool
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestRecorder sets the per-request metrics sink.
func WithRequestRecorder(r RequestRecorder) Option {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Server is the public auth API.
type Server struct {
	cfg        Config
	svc        AuthService
	guards     *Guards
	transport  tokenTransport
	echo       *echo.Echo
	logger     *slog.Logger
	recorder   RequestRecorder
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// New builds the API server and registers its routes.
func New(cfg Config, svc AuthService, verifier auth.TokenVerifier, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("auth service is required")
	}
	if verifier == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("token verifier is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		svc:      svc,
		logger:   slog.Default(),
		recorder: noopRequestRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	switch cfg.Transport {
	case TransportCookie, "":
		if cfg.AccessCookie == "" || cfg.RefreshCookie == "" {
			return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("cookie transport needs both cookie names")
		}
		s.transport = &cookieTransport{
			accessName:  cfg.AccessCookie,
			refreshName: cfg.RefreshCookie,
			accessTTL:   cfg.AccessTTL,
			refreshTTL:  cfg.RefreshTTL,
			secure:      cfg.CookieSecure,
		}
	case TransportBody:
		s.transport = bodyTransport{}
	default:
		return nil, oops.Code("HTTP_CONFIG_INVALID").With("transport", cfg.Transport).
			Errorf("unknown token transport %q", cfg.Transport)
	}

	s.guards = NewGuards(verifier, cfg.AccessCookie, cfg.RefreshCookie, s.logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(s.logger)

	e.Use(middleware.RequestID())
	e.Use(s.logRequests)
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(BodyLimit))
	if len(cfg.CORSOrigins) > 0 {
		cors, err := corsMiddleware(cfg.CORSOrigins)
		if err != nil {
			return nil, err
		}
		e.Use(cors)
	}
	s.echo = e

	for _, r := range s.Routes() {
		e.Add(r.Method, r.Path, r.Handler, s.guards.For(r.Access))
	}
	return s, nil
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins serving on the configured address. The returned channel
// receives a serve failure, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("HTTP_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String(), "transport", s.transportName())
	return errCh, nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) transportName() string {
	if _, ok := s.transport.(bodyTransport); ok {
		return TransportBody
	}
	return TransportCookie
}

// logRequests logs and counts every request once its response is written.
func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.recorder.RecordHTTPRequest(req.Method, route, res.Status)

		level := slog.LevelInfo
		if res.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(req.Context(), level, "http request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("route", route),
			slog.Int("status", res.Status),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// corsMiddleware allows credentialed requests from origins matching any of
// patterns.
func corsMiddleware(patterns []string) (echo.MiddlewareFunc, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code("HTTP_CONFIG_INVALID").With("pattern", p).Wrap(err)
		}
		globs = append(globs, g)
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			for _, g := range globs {
				if g.Match(origin) {
					return true, nil
				}
			}
			return false, nil
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	}), nil
}
