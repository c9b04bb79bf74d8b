// Package token holds the claims of introspected bearer tokens.
package token

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsContextKey is the key used to store introspection claims in the request context.
type ClaimsContextKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims of the bearer token that
// authenticated the request.
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(ClaimsContextKey{}).(jwt.MapClaims)
	return claims, ok
}

// Scopes returns the granted scopes. RFC 7662 uses a space separated
// "scope" string; a JSON array is accepted too.
func Scopes(claims jwt.MapClaims) []string {
	switch v := claims["scope"].(type) {
	case string:
		return strings.Fields(v)
	case []any:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	default:
		return []string{}
	}
}

// Email returns the "email" claim, or "".
func Email(claims jwt.MapClaims) string {
	email, _ := claims["email"].(string)
	return email
}

// ClientID returns the "client_id" claim, or "".
func ClientID(claims jwt.MapClaims) string {
	id, _ := claims["client_id"].(string)
	return id
}
