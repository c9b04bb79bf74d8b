// Package config contains the definition of the bridge configuration and the
// logic required to load it from defaults, a YAML file, the environment and
// command line flags.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stacklok/mcp-authbridge/pkg/networking"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

// Default values
const (
	DefaultAddress            = ":3000"
	DefaultResourcePath       = "/mcp"
	DefaultSessionTTL         = 24 * time.Hour
	DefaultUpstreamTimeout    = 10 * time.Second
	DefaultStoreType          = StoreTypeSQLite
	DefaultSQLitePath         = "authbridge.db"
	DefaultCIMDMaxBytes       = 64 * 1024
	DefaultRedisConnectTries  = 5
	DefaultGoogleAuthURL      = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultGoogleTokenURL     = "https://oauth2.googleapis.com/token"
	DefaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
)

// maxOutboundTimeout caps every outbound HTTP timeout.
const maxOutboundTimeout = 30 * time.Second

// DefaultUpstreamScopes are requested from Google on every authorization.
var DefaultUpstreamScopes = []string{
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Store types
const (
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
)

// Session backends
const (
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// Config represents the configuration of the bridge.
type Config struct {
	Address      string   `mapstructure:"address" yaml:"address"`
	BaseURL      string   `mapstructure:"base_url" yaml:"base_url"`
	ResourcePath string   `mapstructure:"resource_path" yaml:"resource_path"`
	DisableAuth  bool     `mapstructure:"disable_auth" yaml:"disable_auth"`
	PublicPaths  []string `mapstructure:"public_paths" yaml:"public_paths,omitempty"`
	Debug        bool     `mapstructure:"debug" yaml:"debug"`

	// CABundle is a PEM file trusted by every outbound client instead of
	// the system roots.
	CABundle string `mapstructure:"ca_bundle" yaml:"ca_bundle,omitempty"`

	AllowedEmailDomain string `mapstructure:"allowed_email_domain" yaml:"allowed_email_domain"`

	Upstream      UpstreamConfig      `mapstructure:"upstream" yaml:"upstream"`
	Session       SessionConfig       `mapstructure:"session" yaml:"session"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	APIKey        APIKeyConfig        `mapstructure:"apikey" yaml:"apikey"`
	Introspection IntrospectionConfig `mapstructure:"introspection" yaml:"introspection"`
	CIMD          CIMDConfig          `mapstructure:"cimd" yaml:"cimd"`
}

// UpstreamConfig holds the credentials and endpoints of the upstream IdP.
type UpstreamConfig struct {
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	Scopes       []string      `mapstructure:"scopes" yaml:"scopes"`
	Issuer       string        `mapstructure:"issuer" yaml:"issuer,omitempty"`
	AuthURL      string        `mapstructure:"auth_url" yaml:"auth_url"`
	TokenURL     string        `mapstructure:"token_url" yaml:"token_url"`
	TokenInfoURL string        `mapstructure:"tokeninfo_url" yaml:"tokeninfo_url"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SessionConfig configures the MCP session store.
type SessionConfig struct {
	Backend         string        `mapstructure:"backend" yaml:"backend"`
	RedisURL        string        `mapstructure:"redis_url" yaml:"redis_url"`
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ConnectAttempts uint          `mapstructure:"connect_attempts" yaml:"connect_attempts"`
}

// StoreConfig configures the durable client and user binding store.
type StoreConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	Path string `mapstructure:"path" yaml:"path,omitempty"`
	DSN  string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// APIKeyConfig configures the API key strategy.
type APIKeyConfig struct {
	VerifyURL string        `mapstructure:"verify_url" yaml:"verify_url,omitempty"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// IntrospectionConfig configures how the bearer middleware reaches the
// introspection endpoint. An empty URL means this service's own endpoint.
type IntrospectionConfig struct {
	URL     string        `mapstructure:"url" yaml:"url,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CIMDConfig configures Client ID Metadata Document fetches.
type CIMDConfig struct {
	AllowPrivateIPs bool          `mapstructure:"allow_private_ips" yaml:"allow_private_ips"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBytes        int64         `mapstructure:"max_bytes" yaml:"max_bytes"`
}

// IssuerURL returns the base URL without a trailing slash.
func (c *Config) IssuerURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// ResourceURL returns the absolute URL of the protected MCP endpoint.
func (c *Config) ResourceURL() string {
	return c.IssuerURL() + c.ResourcePath
}

// ProtectedResourceMetadataURL returns the RFC 9728 metadata URL for the MCP endpoint.
func (c *Config) ProtectedResourceMetadataURL() string {
	return c.IssuerURL() + oauth.WellKnownProtectedResourcePath + c.ResourcePath
}

// IntrospectionURL returns the endpoint the bearer middleware calls.
func (c *Config) IntrospectionURL() string {
	if c.Introspection.URL != "" {
		return c.Introspection.URL
	}
	return c.IssuerURL() + "/introspect"
}

// EmailDomainSuffix returns the allowed domain normalized to "@domain".
func (c *Config) EmailDomainSuffix() string {
	d := strings.TrimSpace(c.AllowedEmailDomain)
	if d == "" || strings.HasPrefix(d, "@") {
		return d
	}
	return "@" + d
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.Upstream.ClientSecret != "" {
		cp.Upstream.ClientSecret = "REDACTED"
	}
	cp.Session.RedisURL = redactURL(cp.Session.RedisURL)
	cp.Store.DSN = redactURL(cp.Store.DSN)
	return cp
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}

// Validate reports every missing or inconsistent value at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Upstream.ClientID == "" {
		problems = append(problems, "upstream.client_id (GOOGLE_CLIENT_ID) is required")
	}
	if c.Upstream.ClientSecret == "" {
		problems = append(problems, "upstream.client_secret (GOOGLE_CLIENT_SECRET) is required")
	}
	if c.EmailDomainSuffix() == "" && !c.DisableAuth {
		problems = append(problems, "allowed_email_domain is required")
	}
	if !networking.IsURL(c.BaseURL) {
		problems = append(problems, "base_url must be an absolute URL")
	}
	for name, u := range map[string]string{
		"apikey.verify_url": c.APIKey.VerifyURL,
		"introspection.url": c.Introspection.URL,
	} {
		if u != "" && !networking.IsURL(u) {
			problems = append(problems, name+" must be an absolute http(s) URL")
		}
	}
	if c.Upstream.Issuer != "" && !networking.IsHTTPS(c.Upstream.Issuer) {
		problems = append(problems, "upstream.issuer must be an https URL")
	}
	if !strings.HasPrefix(c.ResourcePath, "/") {
		problems = append(problems, "resource_path must start with /")
	}

	switch c.Session.Backend {
	case SessionBackendRedis:
		if c.Session.RedisURL == "" {
			problems = append(problems, "session.redis_url (REDIS_URL) is required for the redis backend")
		}
	case SessionBackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown session.backend %q", c.Session.Backend))
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}

	switch c.Store.Type {
	case StoreTypeSQLite:
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite store")
		}
	case StoreTypePostgres:
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn (DATABASE_URL) is required for the postgres store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.type %q", c.Store.Type))
	}

	for name, d := range map[string]time.Duration{
		"upstream.timeout":      c.Upstream.Timeout,
		"apikey.timeout":        c.APIKey.Timeout,
		"introspection.timeout": c.Introspection.Timeout,
		"cimd.timeout":          c.CIMD.Timeout,
	} {
		if d <= 0 || d > maxOutboundTimeout {
			problems = append(problems, fmt.Sprintf("%s must be between 0 and %s", name, maxOutboundTimeout))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}
