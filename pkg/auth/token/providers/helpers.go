package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when the introspection endpoint rejects a token
// or reports it inactive.
var ErrInvalidToken = errors.New("invalid token")

// parseIntrospectionClaims parses an RFC 7662 introspection response into JWT
// claims. Every member other than "active" is kept; the standard string
// claims are trimmed and "exp" is normalized to a float64.
func parseIntrospectionClaims(body map[string]any) (jwt.MapClaims, error) {
	active, _ := body["active"].(bool)
	if !active {
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	for k, v := range body {
		if k == "active" {
			continue
		}
		claims[k] = v
	}

	for _, k := range []string{"sub", "scope", "iss", "email", "client_id"} {
		if s, ok := claims[k].(string); ok {
			claims[k] = strings.TrimSpace(s)
		}
	}

	if exp, ok := claims["exp"]; ok {
		f, err := toFloat(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid exp claim: %w", err)
		}
		claims["exp"] = f
	}

	return claims, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
