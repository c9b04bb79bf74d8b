// Package middleware provides the HTTP authentication chain. Requests to
// public paths pass through untouched; requests carrying an x-api-key header
// are authenticated by the API key alone; everything else needs a bearer
// token that the introspection endpoint accepts.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/mcp-authbridge/pkg/auth"
	"github.com/stacklok/mcp-authbridge/pkg/auth/apikey"
	"github.com/stacklok/mcp-authbridge/pkg/auth/token"
	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
	"github.com/stacklok/mcp-authbridge/pkg/telemetry"
)

// APIKeyHeader carries API key credentials.
const APIKeyHeader = "X-Api-Key"

const (
	errInvalidToken      = "invalid_token"
	errInsufficientScope = "insufficient_scope"

	multipleAPIKeysMessage = "Expected x-api-key to be a string, received string[]"
	invalidAPIKeyMessage   = "Invalid API key"
)

// OAuthPaths are served by the authorization server and never authenticated.
var OAuthPaths = []string{
	oauth.WellKnownAuthorizationServerPath,
	oauth.WellKnownProtectedResourcePath,
	"/authorize",
	"/token",
	"/register",
	"/introspect",
}

// TokenIntrospector resolves a bearer token into its claims.
type TokenIntrospector interface {
	IntrospectToken(ctx context.Context, token string) (jwt.MapClaims, error)
}

// Config configures a Chain.
type Config struct {
	// PublicPaths bypass authentication in addition to OAuthPaths.
	PublicPaths []string
	// Verifier authenticates x-api-key requests.
	Verifier apikey.Verifier
	// Introspector authenticates bearer tokens.
	Introspector TokenIntrospector
	// Realm is advertised in WWW-Authenticate, usually the issuer URL.
	Realm string
	// ResourceMetadataURL is the RFC 9728 metadata document of the protected resource.
	ResourceMetadataURL string
	// RequiredScopes must all be granted to bearer tokens.
	RequiredScopes []string
	// Recorder receives authentication outcomes. Optional.
	Recorder telemetry.AuthRecorder
}

// Chain authenticates requests.
type Chain struct {
	publicPaths    map[string]struct{}
	verifier       apikey.Verifier
	introspector   TokenIntrospector
	realm          string
	resourceURL    string
	requiredScopes []string
	recorder       telemetry.AuthRecorder
	now            func() time.Time
}

// NewChain creates an authentication chain.
func NewChain(cfg Config) (*Chain, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("API key verifier is required")
	}
	if cfg.Introspector == nil {
		return nil, errors.New("token introspector is required")
	}

	public := make(map[string]struct{}, len(cfg.PublicPaths)+len(OAuthPaths))
	for _, p := range slices.Concat(cfg.PublicPaths, OAuthPaths) {
		if p = strings.TrimSpace(p); p != "" {
			public[p] = struct{}{}
		}
	}

	return &Chain{
		publicPaths:    public,
		verifier:       cfg.Verifier,
		introspector:   cfg.Introspector,
		realm:          cfg.Realm,
		resourceURL:    cfg.ResourceMetadataURL,
		requiredScopes: cfg.RequiredScopes,
		recorder:       cfg.Recorder,
		now:            time.Now,
	}, nil
}

// IsPublic reports whether path bypasses authentication. Protected resource
// metadata is also public under any path suffix.
func (c *Chain) IsPublic(path string) bool {
	if _, ok := c.publicPaths[path]; ok {
		return true
	}
	return strings.HasPrefix(path, oauth.WellKnownProtectedResourcePath+"/")
}

// Middleware returns the chain as HTTP middleware.
func (c *Chain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if keys := r.Header.Values(APIKeyHeader); len(keys) > 1 || (len(keys) == 1 && keys[0] != "") {
			c.serveAPIKey(w, r, next, keys)
			return
		}

		c.serveBearer(w, r, next)
	})
}

// serveAPIKey never falls back to bearer authentication.
func (c *Chain) serveAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, keys []string) {
	if len(keys) > 1 {
		c.record(string(auth.StrategyAPIKey), telemetry.OutcomeRejected)
		writeAPIKeyError(w, bridgeerrors.NewInvalidAPIKeyHeaderError(multipleAPIKeysMessage))
		return
	}

	principal, err := c.verifier.Verify(r.Context(), keys[0])
	if err != nil {
		logger.Errorw("Invalid API key", "error", err)
		c.record(string(auth.StrategyAPIKey), telemetry.OutcomeRejected)
		writeAPIKeyError(w, bridgeerrors.NewInvalidAPIKeyError(invalidAPIKeyMessage, err))
		return
	}

	c.record(string(auth.StrategyAPIKey), telemetry.OutcomeSuccess)
	next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
}

func (c *Chain) serveBearer(w http.ResponseWriter, r *http.Request, next http.Handler) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		c.record(string(auth.StrategyOAuth), telemetry.OutcomeMissing)
		c.writeBearerError(w, http.StatusUnauthorized, errInvalidToken, "Missing Authorization header")
		return
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
		c.record(string(auth.StrategyOAuth), telemetry.OutcomeMissing)
		c.writeBearerError(w, http.StatusUnauthorized, errInvalidToken,
			"Invalid Authorization header format, expected 'Bearer TOKEN'")
		return
	}

	claims, err := c.introspector.IntrospectToken(r.Context(), strings.TrimSpace(tokenString))
	if err != nil {
		logger.Debugw("token introspection failed", "error", err)
		c.record(string(auth.StrategyOAuth), telemetry.OutcomeRejected)
		c.writeBearerError(w, http.StatusUnauthorized, errInvalidToken, fmt.Sprintf("Invalid token: %v", err))
		return
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		c.record(string(auth.StrategyOAuth), telemetry.OutcomeRejected)
		c.writeBearerError(w, http.StatusUnauthorized, errInvalidToken, "Token has no expiration time")
		return
	}
	if !exp.After(c.now()) {
		c.record(string(auth.StrategyOAuth), telemetry.OutcomeRejected)
		c.writeBearerError(w, http.StatusUnauthorized, errInvalidToken, "Token has expired")
		return
	}

	scopes := token.Scopes(claims)
	for _, required := range c.requiredScopes {
		if !slices.Contains(scopes, required) {
			c.record(string(auth.StrategyOAuth), telemetry.OutcomeRejected)
			c.writeBearerError(w, http.StatusForbidden, errInsufficientScope, "Insufficient scope")
			return
		}
	}

	sub, _ := claims.GetSubject()
	principal := auth.NewOAuthPrincipal(token.Email(claims), sub, scopes)

	c.record(string(auth.StrategyOAuth), telemetry.OutcomeSuccess)
	ctx := token.WithClaims(r.Context(), claims)
	next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
}

func (c *Chain) record(strategy, outcome string) {
	if c.recorder != nil {
		c.recorder.RecordAuth(strategy, outcome)
	}
}

// writeAPIKeyError answers with the status of err's type and its message only.
func writeAPIKeyError(w http.ResponseWriter, err *bridgeerrors.Error) {
	writeJSON(w, bridgeerrors.HTTPStatus(err), map[string]string{"error": err.Message})
}

func (c *Chain) writeBearerError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("WWW-Authenticate", buildWWWAuthenticate(c.realm, c.resourceURL, code, description))
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// buildWWWAuthenticate builds a RFC 6750 / RFC 9728 compliant value for the
// WWW-Authenticate header. It includes realm and resource_metadata when set,
// followed by the error code and an optional description.
func buildWWWAuthenticate(realm, resourceURL, code, errDescription string) string {
	var parts []string

	if realm != "" {
		parts = append(parts, fmt.Sprintf(`realm="%s"`, EscapeQuotes(realm)))
	}

	// resource_metadata (RFC 9728)
	if resourceURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, EscapeQuotes(resourceURL)))
	}

	// error fields (RFC 6750 §3)
	if code != "" {
		parts = append(parts, fmt.Sprintf(`error="%s"`, code))
		if errDescription != "" {
			parts = append(parts, fmt.Sprintf(`error_description="%s"`, EscapeQuotes(errDescription)))
		}
	}
	return "Bearer " + strings.Join(parts, ", ")
}

// EscapeQuotes escapes quotes in a string for use in a quoted-string context.
func EscapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to encode response", "error", err)
	}
}
