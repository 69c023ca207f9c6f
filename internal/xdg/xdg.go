// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package xdg resolves XDG Base Directory paths for authgate.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "authgate"
	configFileName = "config.yaml"
)

// ConfigDir returns $XDG_CONFIG_HOME/authgate, falling back to
// ~/.config/authgate.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_NO_HOME").Wrapf(err, "resolve config directory")
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigFile returns the path of the default config file. The file may not exist.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ExistingConfigFile returns the default config file path if a regular file
// is present there, and "" otherwise.
func ExistingConfigFile() (string, error) {
	path, err := ConfigFile()
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", nil
	}
	return path, nil
}
