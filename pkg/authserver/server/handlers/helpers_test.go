// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/mcp-authbridge/pkg/authserver/clients"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/provider"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/upstream"
	upstreammocks "github.com/stacklok/mcp-authbridge/pkg/authserver/upstream/mocks"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
	storagemocks "github.com/stacklok/mcp-authbridge/pkg/storage/mocks"
)

const (
	testIssuer           = "https://bridge.example.com"
	testUpstreamClientID = "upstream-client.apps.example.com"
	testPublicClientID   = "public-client"
	testSecretClientID   = "secret-client"
	testClientSecret     = "s3cret"
	testRedirectURI      = "https://client/cb"
)

type testEnv struct {
	handler *Handler
	router  http.Handler
	idp     *upstreammocks.MockIdentityProvider
	store   *storagemocks.MockStore
}

// noFetchClient fails the test on any outbound CIMD fetch.
type noFetchClient struct {
	t *testing.T
}

func (c noFetchClient) Do(req *http.Request) (*http.Response, error) {
	c.t.Errorf("unexpected outbound request to %s", req.URL)
	return nil, errors.New("unexpected request")
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	store := storagemocks.NewMockStore(ctrl)
	idp := upstreammocks.NewMockIdentityProvider(ctrl)

	registry, err := clients.NewRegistry(store, clients.WithHTTPClient(noFetchClient{t: t}))
	require.NoError(t, err)

	p, err := provider.New(provider.Config{
		UpstreamClientID:   testUpstreamClientID,
		AllowedEmailDomain: "example.com",
	}, idp, registry, store)
	require.NoError(t, err)

	h := NewHandler(p, registry, Config{
		Issuer:          testIssuer,
		ResourcePath:    "/mcp",
		ScopesSupported: []string{"openid", "email", "profile"},
	})
	h.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &testEnv{
		handler: h,
		router:  h.Routes(),
		idp:     idp,
		store:   store,
	}
}

// expectClient makes the store return a registered DCR client.
func (e *testEnv) expectClient(client *oauth.ClientMetadata) {
	e.store.EXPECT().GetClient(gomock.Any(), client.ClientID).Return(client, nil).AnyTimes()
}

func (e *testEnv) expectUnknownClient(clientID string) {
	e.store.EXPECT().GetClient(gomock.Any(), clientID).Return(nil, storage.ErrNotFound).AnyTimes()
}

func publicClient() *oauth.ClientMetadata {
	return &oauth.ClientMetadata{
		ClientID:                testPublicClientID,
		RedirectURIs:            []string{testRedirectURI},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodNone,
		GrantTypes:              []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
	}
}

func secretClient() *oauth.ClientMetadata {
	return &oauth.ClientMetadata{
		ClientID:                testSecretClientID,
		ClientSecret:            testClientSecret,
		RedirectURIs:            []string{testRedirectURI, "https://client/other"},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodClientSecretPost,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func validTokenInfo() *upstream.TokenInfo {
	return &upstream.TokenInfo{
		Audience:        testUpstreamClientID,
		Subject:         "user-1",
		Email:           "alice@example.com",
		EmailVerified:   true,
		AuthorizedParty: testUpstreamClientID,
		AccessType:      "offline",
		Scopes:          []string{"openid", "email"},
		Expiry:          time.Unix(1_740_003_600, 0),
		Raw:             json.RawMessage(`{"sub":"user-1","email":"alice@example.com"}`),
	}
}
