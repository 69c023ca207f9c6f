// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/pkg/errutil"
)

// migrator is the part of *store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// migratorFactory opens a migrator for the configured database. Tests swap it.
var migratorFactory = func(databaseURL string, logger *slog.Logger) (migrator, error) {
	m, err := store.NewMigrator(databaseURL, logger)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the users schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all identities)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			cmd.Println("Rolling back migrations...")
			if err := m.Down(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
			}
			cmd.Println("Rollback completed successfully")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			status, err := m.Status()
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migrate status").Wrap(err)
			}
			printStatus(cmd, status)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Long: `Mark a version as applied without running it. Use this to recover
from a dirty state after fixing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migrate force").Wrap(err)
			}
			cmd.Printf("Forced version %d\n", version)
			return nil
		}),
	})

	return cmd
}

// withMigrator loads the configuration and opens a migrator around run.
func withMigrator(run func(cmd *cobra.Command, m migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
		}

		logger := logging.Setup(serviceName, version, cfg.Log.Format, cmd.ErrOrStderr())

		m, err := migratorFactory(cfg.Database.URL, logger)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				errutil.LogError(logger, "error closing migrator", closeErr)
			}
		}()

		return run(cmd, m, args)
	}
}

func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer: %q", s)
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative, got %d", version)
	}
	return version, nil
}

func printStatus(cmd *cobra.Command, status *store.Status) {
	state := "clean"
	if status.Dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", status.Version, state)
	for _, mig := range status.Applied {
		cmd.Printf("  [applied] %s\n", mig.Name)
	}
	for _, mig := range status.Pending {
		cmd.Printf("  [pending] %s\n", mig.Name)
	}
	if len(status.Pending) == 0 {
		cmd.Println("Schema is up to date")
	}
}

// Compile-time interface check.
var _ migrator = (*store.Migrator)(nil)
