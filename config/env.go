// Package config loads the gateway configuration: process settings from the
// environment and registrations, key chains and firewall zones from a YAML
// file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Env holds process level settings. Defaults are provided via struct tags.
type Env struct {
	// ListenAddr for the HTTP server. ENV: LTI_LISTEN_ADDR
	ListenAddr string `env:"LTI_LISTEN_ADDR,default=:8080"`
	// ConfigFile is the YAML registration file. ENV: LTI_CONFIG_FILE
	ConfigFile string `env:"LTI_CONFIG_FILE,default=lti1p3.yaml"`
	// LogLevel is one of debug, info, warn, error. ENV: LTI_LOG_LEVEL
	LogLevel string `env:"LTI_LOG_LEVEL,default=info"`
	// LogFormat is text or json. ENV: LTI_LOG_FORMAT
	LogFormat string `env:"LTI_LOG_FORMAT,default=text"`
	// RedisAddr enables the Redis nonce store when set. ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR"`
	// Leeway is the tolerated clock skew. ENV: LTI_CLOCK_LEEWAY
	Leeway time.Duration `env:"LTI_CLOCK_LEEWAY,default=60s"`
	// AccessTokenTTL bounds issued service access tokens. ENV: LTI_ACCESS_TOKEN_TTL
	AccessTokenTTL time.Duration `env:"LTI_ACCESS_TOKEN_TTL,default=1h"`
	// Realm advertised in WWW-Authenticate challenges. ENV: LTI_REALM
	Realm string `env:"LTI_REALM,default=lti"`
}

// LoadEnv decodes Env from the process environment.
func LoadEnv() (Env, error) {
	var env Env
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Env{}, fmt.Errorf("config: %w", err)
	}
	return env, nil
}

// SlogLevel maps LogLevel to a slog level.
func (e Env) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(e.LogLevel)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid log level %q", e.LogLevel)
	}
	return lvl, nil
}
