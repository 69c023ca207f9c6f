// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

// isolate points every implicit config source at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{
		"AUTHGATE_TOKENS__ACCESS_SECRET",
		"AUTHGATE_TOKENS__REFRESH_SECRET",
		"AUTHGATE_DATABASE__URL",
		"AUTHGATE_STORAGE__DRIVER",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key) //nolint:errcheck // restored by t.Setenv
	}
	configFile = ""
	envFile = filepath.Join(dir, "missing.env")
	return dir
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
