// Package providers contains the token introspection clients used by the
// bearer authentication middleware.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/mcp-authbridge/pkg/networking"
)

// maxResponseSize bounds introspection responses (64KB).
const maxResponseSize = 64 * 1024

// DefaultTimeout is the introspection request timeout when none is configured.
const DefaultTimeout = 10 * time.Second

// RFC7662Introspector implements standard RFC 7662 OAuth 2.0 Token Introspection
type RFC7662Introspector struct {
	client networking.HTTPClient
	url    string
}

// NewRFC7662Introspector creates a new RFC 7662 token introspection provider.
// A nil client is replaced by one with DefaultTimeout that may reach private
// and plain-HTTP addresses, since the introspection endpoint is usually this
// process.
func NewRFC7662Introspector(introspectURL string, client networking.HTTPClient) (*RFC7662Introspector, error) {
	if introspectURL == "" {
		return nil, errors.New("introspection URL is required")
	}
	if client == nil {
		c, err := networking.NewHttpClientBuilder().
			WithPrivateIPs(true).
			WithInsecureHTTP(true).
			WithTimeout(DefaultTimeout).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client = c
	}

	return &RFC7662Introspector{
		client: client,
		url:    introspectURL,
	}, nil
}

// Name returns the provider name
func (*RFC7662Introspector) Name() string {
	return "rfc7662"
}

// IntrospectToken introspects a token using RFC 7662 standard
func (r *RFC7662Introspector) IntrospectToken(ctx context.Context, tokenStr string) (jwt.MapClaims, error) {
	formData := url.Values{}
	formData.Set("token", tokenStr)

	result, err := networking.FetchJSONWithForm[map[string]any](ctx, r.client, r.url, formData,
		networking.WithMaxResponseSize(maxResponseSize),
		networking.WithErrorHandler(introspectionErrorHandler),
	)
	if err != nil {
		return nil, err
	}

	return parseIntrospectionClaims(result.Data)
}

// introspectionErrorHandler turns a rejection into ErrInvalidToken carrying
// the endpoint's description.
func introspectionErrorHandler(resp *http.Response, body []byte) error {
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusBadRequest {
		return nil
	}
	detail := strings.TrimSpace(networking.PreviewBody(body))
	return fmt.Errorf("%w: %s", ErrInvalidToken, detail)
}
