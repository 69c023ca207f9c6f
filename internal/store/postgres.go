// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default connection settings.
const (
	DefaultConnectTimeout = 30 * time.Second
	initialBackoff        = 250 * time.Millisecond
	maxBackoff            = 5 * time.Second
)

// ConnectConfig controls Connect.
type ConnectConfig struct {
	URL string
	// ConnectTimeout bounds the total time spent retrying the first ping.
	ConnectTimeout time.Duration
	// MaxConns overrides the pool size when positive.
	MaxConns int32
}

// pinger is the part of *pgxpool.Pool Connect needs to check reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool and waits until the database answers a ping, backing
// off exponentially between attempts. A malformed URL fails immediately.
func Connect(ctx context.Context, cfg ConnectConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, cfg.ConnectTimeout, logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("database connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns)
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, timeout time.Duration, logger *slog.Logger) error {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	backoff := retry.NewExponential(initialBackoff)
	backoff = retry.WithCappedDuration(maxBackoff, backoff)
	backoff = retry.WithMaxDuration(timeout, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

// PingChecker adapts a pinger into a readiness probe.
type PingChecker struct {
	db      pinger
	timeout time.Duration
}

// NewPingChecker creates a PingChecker that fails pings slower than timeout.
func NewPingChecker(db pinger, timeout time.Duration) *PingChecker {
	return &PingChecker{db: db, timeout: timeout}
}

// Ready reports whether the database answers within the timeout.
func (c *PingChecker) Ready() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.db.Ping(ctx) == nil
}
