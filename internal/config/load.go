// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/authgate/authgate/internal/xdg"
)

// EnvPrefix prefixes every configuration environment variable. A double
// underscore separates sections: AUTHGATE_TOKENS__ACCESS_SECRET sets
// tokens.access_secret.
const EnvPrefix = "AUTHGATE_"

// DefaultEnvFile is loaded into the process environment when present.
const DefaultEnvFile = ".env"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"http-addr":      "http.addr",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"storage-driver": "storage.driver",
	"database-url":   "database.url",
}

// LoadOptions controls Load.
type LoadOptions struct {
	// File is an explicit config file. Empty means the XDG default, if it exists.
	File string
	// EnvFile is a dotenv file to load first. Empty means DefaultEnvFile.
	EnvFile string
	// Flags holds flags registered with RegisterFlags. May be nil.
	Flags *pflag.FlagSet
	// SkipValidate returns the merged configuration without calling Validate.
	SkipValidate bool
}

// RegisterFlags adds the configuration override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", "", "listen address of the auth API")
	fs.String("metrics-addr", "", "listen address of the metrics server (empty disables)")
	fs.String("log-format", "", "log format (json, text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("storage-driver", "", "identity store (postgres, memory)")
	fs.String("database-url", "", "PostgreSQL connection URL")
}

// Load builds the configuration from defaults, the config file, the
// environment and flags, then validates it.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	path, err := resolveFile(opts.File)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		// A nil koanf instance makes posflag skip flags the user did not set.
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", nil, flagKey), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}

	if !opts.SkipValidate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// YAML renders the configuration with secrets redacted.
func (c *Config) YAML() ([]byte, error) {
	out, err := yamlv3.Marshal(c.Redacted())
	if err != nil {
		return nil, oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	return out, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	// Variables already set in the environment win over the file.
	if err := godotenv.Load(path); err != nil {
		return oops.Code("CONFIG_ENV_FILE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func resolveFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path, err := xdg.ExistingConfigFile()
	if err != nil {
		return "", oops.Code("CONFIG_READ_FAILED").Wrap(err)
	}
	return path, nil
}

func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(name, "__", ".")
}

func flagKey(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok {
		return "", nil
	}
	return key, f.Value.String()
}
