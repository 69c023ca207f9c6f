// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/memstore"
	authpg "github.com/authgate/authgate/internal/auth/postgres"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/httpapi"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/observability"
	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/pkg/errutil"
)

const (
	serviceName      = "authgate"
	readinessTimeout = 2 * time.Second
)

// openedStore is an identity store together with its readiness probe.
type openedStore struct {
	users auth.UserStore
	ready observability.ReadinessChecker
	close func()
}

// serveDeps holds the injectable parts of the serve command. Nil fields use
// their default implementations.
type serveDeps struct {
	// OpenStore opens the configured identity store.
	// Default: openStore
	OpenStore func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*openedStore, error)

	// OnReady is called once both servers accept connections.
	OnReady func(apiAddr, metricsAddr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API",
		Long: `Start the auth API and, when metrics.addr is set, the metrics and
health server. SIGINT or SIGTERM triggers a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, nil)
		},
	}
}

// runServe runs both servers until ctx is cancelled or one of them fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *serveDeps) error {
	if deps == nil {
		deps = &serveDeps{}
	}
	if deps.OpenStore == nil {
		deps.OpenStore = openStore
	}

	logger, err := logging.New(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}

	logger.Info("starting authgate",
		"http_addr", cfg.HTTP.Addr,
		"storage_driver", cfg.Storage.Driver,
		"token_transport", cfg.Tokens.Transport)

	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	issuer, err := auth.NewJWTIssuer(cfg.TokenConfig())
	if err != nil {
		return oops.With("operation", "create token issuer").Wrap(err)
	}

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	svc, err := auth.NewService(st.users,
		auth.NewArgon2idHasherWithParams(cfg.Argon2Params()),
		issuer,
		auth.WithLogger(logger.With("component", "auth")),
		auth.WithRecorder(metrics),
	)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	api, err := httpapi.New(httpapi.Config{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		Transport:         cfg.Tokens.Transport,
		AccessCookie:      cfg.Tokens.AccessCookie,
		RefreshCookie:     cfg.Tokens.RefreshCookie,
		CookieSecure:      cfg.Tokens.CookieSecure,
		AccessTTL:         cfg.Tokens.AccessTTL,
		RefreshTTL:        cfg.Tokens.RefreshTTL,
	}, svc, issuer,
		httpapi.WithLogger(logger.With("component", "http")),
		httpapi.WithRequestRecorder(metrics),
	)
	if err != nil {
		return oops.With("operation", "create api server").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, registry, st.ready, logger.With("component", "observability"))
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	apiErrCh, err := api.Start()
	if err != nil {
		stopServer(obsServer, cfg, logger)
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)

	metricsAddr := ""
	if obsServer != nil {
		metricsAddr = obsServer.Addr()
	}
	cmd.Println("authgate started")
	logger.Info("authgate ready", "api_addr", api.Addr(), "metrics_addr", metricsAddr)
	if deps.OnReady != nil {
		deps.OnReady(api.Addr(), metricsAddr)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := api.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping api server", err)
	}
	stopServer(obsServer, cfg, logger)

	logger.Info("shutdown complete")
	return nil
}

func stopServer(s *observability.Server, cfg *config.Config, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		errutil.LogError(logger, "error stopping observability server", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			errutil.LogError(logger.With("server", name), "server failed", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// openStore opens the store selected by storage.driver. The postgres driver
// waits for the database and applies migrations when auto_migrate is set.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*openedStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, identities are lost on restart")
		users := memstore.New()
		return &openedStore{
			users: users,
			ready: store.NewPingChecker(users, readinessTimeout).Ready,
			close: func() {},
		}, nil

	case config.DriverPostgres:
		// Connect retries until the database answers; migrate only after that.
		pool, err := store.Connect(ctx, store.ConnectConfig{
			URL:            cfg.Database.URL,
			ConnectTimeout: cfg.Database.ConnectTimeout,
			MaxConns:       cfg.Database.MaxConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := migrateUp(cfg.Database.URL, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &openedStore{
			users: authpg.NewUserRepository(pool),
			ready: store.NewPingChecker(pool, readinessTimeout).Ready,
			close: pool.Close,
		}, nil

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("driver", cfg.Storage.Driver).
			Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(databaseURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing migrator", closeErr)
		}
	}()
	return migrator.Up()
}
