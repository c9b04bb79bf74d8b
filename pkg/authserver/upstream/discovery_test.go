// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiscoveryServer(t *testing.T, tokenEndpoint string) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		token := tokenEndpoint
		if token == "" {
			token = srv.URL + "/token"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         token,
			"jwks_uri":               srv.URL + "/jwks",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("resolves endpoints", func(t *testing.T) {
		t.Parallel()

		srv := newDiscoveryServer(t, "")
		endpoints, err := Discover(context.Background(), srv.URL, srv.Client())
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/auth", endpoints.AuthURL)
		assert.Equal(t, srv.URL+"/token", endpoints.TokenURL)
	})

	t.Run("rejects a scheme downgrade", func(t *testing.T) {
		t.Parallel()

		srv := newDiscoveryServer(t, "ftp://elsewhere.example.com/token")
		_, err := Discover(context.Background(), srv.URL, srv.Client())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token_endpoint scheme")
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		t.Parallel()

		srv := newDiscoveryServer(t, "")
		_, err := Discover(context.Background(), srv.URL+"/other", srv.Client())
		require.Error(t, err)
	})
}
