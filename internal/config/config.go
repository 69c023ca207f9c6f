// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package config defines the authgate configuration and loads it from
// defaults, a YAML file, AUTHGATE_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Token transports.
const (
	TransportCookie = "cookie"
	TransportBody   = "body"
)

const redacted = "[redacted]"

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" yaml:"http" json:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics" json:"metrics"`
	Log      LogConfig      `koanf:"log" yaml:"log" json:"log"`
	Database DatabaseConfig `koanf:"database" yaml:"database" json:"database"`
	Storage  StorageConfig  `koanf:"storage" yaml:"storage" json:"storage"`
	Tokens   TokensConfig   `koanf:"tokens" yaml:"tokens" json:"tokens"`
	Hash     HashConfig     `koanf:"hash" yaml:"hash" json:"hash"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" yaml:"addr" json:"addr" jsonschema:"description=Listen address of the auth API"`
	CORSOrigins       []string      `koanf:"cors_origins" yaml:"cors_origins" json:"cors_origins" jsonschema:"description=Allowed CORS origins as glob patterns"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout" json:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr" json:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL            string        `koanf:"url" yaml:"url" json:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout"`
	MaxConns       int32         `koanf:"max_conns" yaml:"max_conns" json:"max_conns" jsonschema:"minimum=0"`
	AutoMigrate    bool          `koanf:"auto_migrate" yaml:"auto_migrate" json:"auto_migrate"`
}

// StorageConfig selects the identity store.
type StorageConfig struct {
	Driver string `koanf:"driver" yaml:"driver" json:"driver" jsonschema:"enum=postgres,enum=memory"`
}

// TokensConfig configures token signing and transport.
type TokensConfig struct {
	AccessSecret  string        `koanf:"access_secret" yaml:"access_secret" json:"access_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl" yaml:"access_ttl" json:"access_ttl"`
	RefreshSecret string        `koanf:"refresh_secret" yaml:"refresh_secret" json:"refresh_secret"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl" yaml:"refresh_ttl" json:"refresh_ttl"`
	Issuer        string        `koanf:"issuer" yaml:"issuer" json:"issuer"`
	Transport     string        `koanf:"transport" yaml:"transport" json:"transport" jsonschema:"enum=cookie,enum=body"`
	AccessCookie  string        `koanf:"access_cookie" yaml:"access_cookie" json:"access_cookie"`
	RefreshCookie string        `koanf:"refresh_cookie" yaml:"refresh_cookie" json:"refresh_cookie"`
	CookieSecure  bool          `koanf:"cookie_secure" yaml:"cookie_secure" json:"cookie_secure"`
}

// HashConfig holds the argon2id cost parameters.
type HashConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib" yaml:"memory_kib" json:"memory_kib"`
	Iterations  uint32 `koanf:"iterations" yaml:"iterations" json:"iterations"`
	Parallelism uint8  `koanf:"parallelism" yaml:"parallelism" json:"parallelism"`
}

// Default returns the built-in configuration. Token secrets have no default.
func Default() Config {
	params := auth.DefaultArgon2Params()
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":3333",
			CORSOrigins:       []string{},
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{
			ConnectTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{Driver: DriverPostgres},
		Tokens: TokensConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Issuer:        "authgate",
			Transport:     TransportCookie,
			AccessCookie:  "accessToken",
			RefreshCookie: "refreshToken",
		},
		Hash: HashConfig{
			MemoryKiB:   params.Memory,
			Iterations:  params.Iterations,
			Parallelism: params.Parallelism,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := validation.Errors{
		"http": validation.ValidateStruct(&c.HTTP,
			validation.Field(&c.HTTP.Addr, validation.Required),
			validation.Field(&c.HTTP.CORSOrigins, validation.By(validGlobs)),
			validation.Field(&c.HTTP.ReadHeaderTimeout, validation.Required, validation.Min(1)),
			validation.Field(&c.HTTP.ShutdownTimeout, validation.Required, validation.Min(1)),
		),
		"log": validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Format, validation.In("json", "text")),
			validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
		),
		"storage": validation.ValidateStruct(&c.Storage,
			validation.Field(&c.Storage.Driver, validation.Required, validation.In(DriverPostgres, DriverMemory)),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.URL, validation.By(c.requireDatabaseURL)),
			validation.Field(&c.Database.ConnectTimeout, validation.Required, validation.Min(1)),
			validation.Field(&c.Database.MaxConns, validation.Min(0)),
		),
		"tokens": validation.ValidateStruct(&c.Tokens,
			validation.Field(&c.Tokens.AccessSecret, validation.Required),
			validation.Field(&c.Tokens.RefreshSecret, validation.Required,
				validation.By(differsFrom(c.Tokens.AccessSecret, "must differ from the access secret"))),
			validation.Field(&c.Tokens.AccessTTL, validation.Required, validation.Min(1)),
			validation.Field(&c.Tokens.RefreshTTL, validation.Required, validation.Min(1)),
			validation.Field(&c.Tokens.Issuer, validation.Required),
			validation.Field(&c.Tokens.Transport, validation.Required, validation.In(TransportCookie, TransportBody)),
			validation.Field(&c.Tokens.AccessCookie, validation.Required),
			validation.Field(&c.Tokens.RefreshCookie, validation.Required,
				validation.By(differsFrom(c.Tokens.AccessCookie, "must differ from the access cookie"))),
		),
		"hash": validation.ValidateStruct(&c.Hash,
			validation.Field(&c.Hash.MemoryKiB, validation.Required),
			validation.Field(&c.Hash.Iterations, validation.Required),
			validation.Field(&c.Hash.Parallelism, validation.Required),
		),
	}.Filter()
	if errs != nil {
		return oops.Code("CONFIG_INVALID").Wrap(errs)
	}
	return nil
}

func (c *Config) requireDatabaseURL(value any) error {
	s, _ := value.(string)
	if c.Storage.Driver == DriverPostgres && s == "" {
		return errors.New("is required for the postgres storage driver")
	}
	return nil
}

func differsFrom(other, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != "" && s == other {
			return errors.New(message)
		}
		return nil
	}
}

func validGlobs(value any) error {
	patterns, _ := value.([]string)
	for _, p := range patterns {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("%q is not a valid origin pattern", p)
		}
	}
	return nil
}

// TokenConfig converts the tokens section for auth.NewJWTIssuer.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  []byte(c.Tokens.AccessSecret),
		RefreshSecret: []byte(c.Tokens.RefreshSecret),
		AccessTTL:     c.Tokens.AccessTTL,
		RefreshTTL:    c.Tokens.RefreshTTL,
		Issuer:        c.Tokens.Issuer,
	}
}

// Argon2Params converts the hash section for auth.NewArgon2idHasherWithParams.
func (c *Config) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		Memory:      c.Hash.MemoryKiB,
		Iterations:  c.Hash.Iterations,
		Parallelism: c.Hash.Parallelism,
	}
}

// Redacted returns a copy safe to print: token secrets and the database
// password are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.HTTP.CORSOrigins = append([]string(nil), c.HTTP.CORSOrigins...)
	if out.Tokens.AccessSecret != "" {
		out.Tokens.AccessSecret = redacted
	}
	if out.Tokens.RefreshSecret != "" {
		out.Tokens.RefreshSecret = redacted
	}
	if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			out.Database.URL = u.Redacted()
		}
	}
	return out
}
