// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "migrate", "config"} {
		assert.Contains(t, out, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "with equals",
			args:     []string{"--config=/etc/authgate.yaml", "--help"},
			wantFlag: "/etc/authgate.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_OverrideFlagsInherited(t *testing.T) {
	cmd := NewRootCmd()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, name := range []string{"config", "env-file", "http-addr", "metrics-addr", "log-format", "log-level", "storage-driver", "database-url"} {
		assert.NotNil(t, serve.InheritedFlags().Lookup(name), "serve should inherit --%s", name)
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	isolate(t)
	cmd := NewRootCmd()
	cmd.Version = "1.2.3 (commit: abc, built: today)"
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "1.2.3")
}

func TestMigrateCommand_Subcommands(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "migrate", "--help")
	require.NoError(t, err)

	for _, sub := range []string{"up", "down", "status", "force"} {
		assert.Contains(t, out, sub)
	}
}
