// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/config"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the authgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "authgate - session token service",
		Long: `authgate issues paired access and refresh tokens, keeps one hashed
refresh token per identity, and rotates it on every refresh.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/authgate/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment (default: .env)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig merges every configuration source for cmd.
func loadConfig(cmd *cobra.Command, skipValidate bool) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		File:         configFile,
		EnvFile:      envFile,
		Flags:        cmd.Flags(),
		SkipValidate: skipValidate,
	})
}
