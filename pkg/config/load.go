package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"
)

// EnvPrefix prefixes every environment variable read by viper.
const EnvPrefix = "AUTHBRIDGE"

// legacyEnv maps the variable names used by earlier deployments to config keys.
var legacyEnv = map[string]string{
	"GOOGLE_CLIENT_ID":     "upstream.client_id",
	"GOOGLE_CLIENT_SECRET": "upstream.client_secret",
	"REDIS_URL":            "session.redis_url",
	"DATABASE_URL":         "store.dsn",
	"DISABLE_AUTH":         "disable_auth",
	"ALLOWED_EMAIL_DOMAIN": "allowed_email_domain",
	"BASE_URL":             "base_url",
}

// SetDefaults registers the default value of every key. Keys must be known to
// viper for AutomaticEnv to apply during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("address", DefaultAddress)
	v.SetDefault("base_url", "")
	v.SetDefault("resource_path", DefaultResourcePath)
	v.SetDefault("disable_auth", false)
	v.SetDefault("public_paths", []string{})
	v.SetDefault("debug", false)
	v.SetDefault("ca_bundle", "")
	v.SetDefault("allowed_email_domain", "")

	v.SetDefault("upstream.client_id", "")
	v.SetDefault("upstream.client_secret", "")
	v.SetDefault("upstream.scopes", DefaultUpstreamScopes)
	v.SetDefault("upstream.issuer", "")
	v.SetDefault("upstream.auth_url", DefaultGoogleAuthURL)
	v.SetDefault("upstream.token_url", DefaultGoogleTokenURL)
	v.SetDefault("upstream.tokeninfo_url", DefaultGoogleTokenInfoURL)
	v.SetDefault("upstream.timeout", DefaultUpstreamTimeout)

	v.SetDefault("session.backend", SessionBackendRedis)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("session.connect_attempts", DefaultRedisConnectTries)

	v.SetDefault("store.type", DefaultStoreType)
	v.SetDefault("store.path", DefaultSQLitePath)
	v.SetDefault("store.dsn", "")

	v.SetDefault("apikey.verify_url", "")
	v.SetDefault("apikey.timeout", DefaultUpstreamTimeout)

	v.SetDefault("introspection.url", "")
	v.SetDefault("introspection.timeout", DefaultUpstreamTimeout)

	v.SetDefault("cimd.allow_private_ips", false)
	v.SetDefault("cimd.timeout", DefaultUpstreamTimeout)
	v.SetDefault("cimd.max_bytes", DefaultCIMDMaxBytes)
}

// Load builds the configuration from v using the process environment.
func Load(v *viper.Viper) (*Config, error) {
	return LoadWithEnv(v, &env.OSReader{})
}

// LoadWithEnv builds the configuration from v with a custom environment reader.
// This allows for dependency injection of environment variable access for testing.
//
// Precedence, highest first: flags bound to v, AUTHBRIDGE_* variables, the
// YAML file named by the "config" key, legacy variable names, defaults.
func LoadWithEnv(v *viper.Viper, envReader env.Reader) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyLegacyEnv(v, envReader)

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL(cfg.Address)
	}
	return &cfg, nil
}

// applyLegacyEnv lowers legacy variables to defaults so that AUTHBRIDGE_*
// variables, the config file and flags still take precedence.
func applyLegacyEnv(v *viper.Viper, envReader env.Reader) {
	for name, key := range legacyEnv {
		val := envReader.Getenv(name)
		if val == "" {
			continue
		}
		if key == "disable_auth" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				continue
			}
			v.SetDefault(key, b)
			continue
		}
		v.SetDefault(key, val)
	}

	if port := envReader.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			v.SetDefault("address", ":"+port)
		}
	}
}

func defaultBaseURL(address string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "http://localhost" + strings.TrimPrefix(address, "localhost")
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
