// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/mcp-authbridge/pkg/authserver/clients"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/upstream"
	upstreammocks "github.com/stacklok/mcp-authbridge/pkg/authserver/upstream/mocks"
	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/networking"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
	storagemocks "github.com/stacklok/mcp-authbridge/pkg/storage/mocks"
)

const testUpstreamClientID = "upstream-client.apps.example.com"

type testDeps struct {
	idp      *upstreammocks.MockIdentityProvider
	bindings *storagemocks.MockBindingStore
}

func newTestProvider(t *testing.T) (*Provider, testDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)

	registry, err := clients.NewRegistry(storagemocks.NewMockClientStore(ctrl))
	require.NoError(t, err)

	deps := testDeps{
		idp:      upstreammocks.NewMockIdentityProvider(ctrl),
		bindings: storagemocks.NewMockBindingStore(ctrl),
	}
	p, err := New(Config{
		UpstreamClientID:   testUpstreamClientID,
		AllowedEmailDomain: "Example.com",
	}, deps.idp, registry, deps.bindings)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p, deps
}

func tokenInfo(sub, email, aud string) *upstream.TokenInfo {
	raw, _ := json.Marshal(map[string]any{"sub": sub, "email": email, "aud": aud})
	return &upstream.TokenInfo{
		Audience:        aud,
		Subject:         sub,
		Email:           email,
		EmailVerified:   true,
		AuthorizedParty: aud,
		AccessType:      "offline",
		Scopes:          []string{"openid", "email"},
		Expiry:          time.UnixMilli(1_740_000_000_999),
		Raw:             raw,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	registry, err := clients.NewRegistry(storagemocks.NewMockClientStore(ctrl))
	require.NoError(t, err)
	idp := upstreammocks.NewMockIdentityProvider(ctrl)
	bindings := storagemocks.NewMockBindingStore(ctrl)

	tests := []struct {
		name    string
		cfg     Config
		idp     upstream.IdentityProvider
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{UpstreamClientID: "c", AllowedEmailDomain: "@example.com"},
			idp:  idp,
		},
		{
			name:    "missing client id",
			cfg:     Config{AllowedEmailDomain: "example.com"},
			idp:     idp,
			wantErr: "upstream client id",
		},
		{
			name:    "missing domain",
			cfg:     Config{UpstreamClientID: "c", AllowedEmailDomain: "  "},
			idp:     idp,
			wantErr: "email domain",
		},
		{
			name:    "missing upstream",
			cfg:     Config{UpstreamClientID: "c", AllowedEmailDomain: "example.com"},
			wantErr: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := New(tt.cfg, tt.idp, registry, bindings)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.SkipLocalPKCEValidation())
			assert.Same(t, registry, p.Clients())
		})
	}
}

func TestProvider_Authorize(t *testing.T) {
	t.Parallel()

	p, deps := newTestProvider(t)
	client := &oauth.ClientMetadata{ClientID: "dcr-client"}

	deps.idp.EXPECT().AuthorizationURL(upstream.AuthorizationRequest{
		RedirectURI:   "https://client/cb",
		CodeChallenge: "abc",
		State:         "xyz",
	}).Return("https://accounts.example.com/o/oauth2/v2/auth?state=xyz", nil)

	got, err := p.Authorize(context.Background(), client, AuthorizationParams{
		RedirectURI:   "https://client/cb",
		CodeChallenge: "abc",
		State:         "xyz",
		Resource:      "https://bridge.example.com/mcp",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.example.com/o/oauth2/v2/auth?state=xyz", got)

	challenge, err := p.ChallengeForAuthorizationCode(context.Background(), client, "code")
	require.NoError(t, err)
	assert.Empty(t, challenge)
}

func TestProvider_AuthorizeUpstreamRejects(t *testing.T) {
	t.Parallel()

	p, deps := newTestProvider(t)
	deps.idp.EXPECT().AuthorizationURL(gomock.Any()).Return("", errors.New("redirect_uri is required"))

	_, err := p.Authorize(context.Background(), &oauth.ClientMetadata{ClientID: "c"}, AuthorizationParams{})
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsInvalidArgument(err))
}

func TestProvider_ExchangeAuthorizationCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		clientID      string
		tokens        *upstream.Tokens
		info          *upstream.TokenInfo
		wantMechanism oauth.RegistrationMechanism
		created       bool
		bindErr       error
		wantErr       func(error) bool
	}{
		{
			name:          "first sign-in through DCR client",
			clientID:      "dcr-client",
			tokens:        &upstream.Tokens{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 3599},
			info:          tokenInfo("user-1", "alice@example.com", testUpstreamClientID),
			wantMechanism: oauth.MechanismDCR,
			created:       true,
		},
		{
			name:          "repeat sign-in through CIMD client",
			clientID:      "https://app.example.org/oauth.json",
			tokens:        &upstream.Tokens{AccessToken: "at", TokenType: "Bearer"},
			info:          tokenInfo("user-1", "ALICE@EXAMPLE.COM", testUpstreamClientID),
			wantMechanism: oauth.MechanismCIMD,
			created:       false,
		},
		{
			name:     "email outside domain",
			clientID: "dcr-client",
			tokens:   &upstream.Tokens{AccessToken: "at"},
			info:     tokenInfo("user-1", "mallory@example.com.evil.org", testUpstreamClientID),
			wantErr:  bridgeerrors.IsDomainRestricted,
		},
		{
			name:     "missing subject",
			clientID: "dcr-client",
			tokens:   &upstream.Tokens{AccessToken: "at"},
			info:     tokenInfo("", "alice@example.com", testUpstreamClientID),
			wantErr:  bridgeerrors.IsUpstreamMissingField,
		},
		{
			name:     "missing email",
			clientID: "dcr-client",
			tokens:   &upstream.Tokens{AccessToken: "at"},
			info:     tokenInfo("user-1", "", testUpstreamClientID),
			wantErr:  bridgeerrors.IsUpstreamMissingField,
		},
		{
			name:          "binding store failure",
			clientID:      "dcr-client",
			tokens:        &upstream.Tokens{AccessToken: "at"},
			info:          tokenInfo("user-1", "alice@example.com", testUpstreamClientID),
			wantMechanism: oauth.MechanismDCR,
			bindErr:       errors.New("connection reset"),
			wantErr:       bridgeerrors.IsInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, deps := newTestProvider(t)
			client := &oauth.ClientMetadata{ClientID: tt.clientID}

			deps.idp.EXPECT().ExchangeCode(gomock.Any(), "code-1", "verifier-1", "https://client/cb").Return(tt.tokens, nil)
			deps.idp.EXPECT().TokenInfo(gomock.Any(), "at").Return(tt.info, nil)
			if tt.wantMechanism != "" {
				deps.bindings.EXPECT().
					RecordIfAbsent(gomock.Any(), tt.wantMechanism, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ oauth.RegistrationMechanism, b storage.UserBinding) (bool, error) {
						assert.Equal(t, tt.clientID, b.ClientID)
						assert.Equal(t, tt.info.Subject, b.UpstreamUserID)
						assert.Equal(t, tt.info.Email, b.Email)
						assert.JSONEq(t, string(tt.info.Raw), string(b.TokenInfo))
						return tt.created, tt.bindErr
					})
			}

			tokens, err := p.ExchangeAuthorizationCode(context.Background(), client, "code-1", "verifier-1", "https://client/cb")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				assert.Nil(t, tokens)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.tokens, tokens)
		})
	}
}

func TestProvider_ExchangeAuthorizationCodeUpstreamFailure(t *testing.T) {
	t.Parallel()

	p, deps := newTestProvider(t)
	upstreamErr := bridgeerrors.NewUpstreamError("token exchange failed",
		networking.NewHTTPError(400, "https://oauth2.example.com/token", "invalid_grant"))
	deps.idp.EXPECT().ExchangeCode(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, upstreamErr)

	_, err := p.ExchangeAuthorizationCode(context.Background(), &oauth.ClientMetadata{ClientID: "c"}, "bad", "", "https://client/cb")
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsUpstream(err))
	assert.Equal(t, 400, networking.StatusCodeOf(err))
}

func TestProvider_ExchangeRefreshToken(t *testing.T) {
	t.Parallel()

	t.Run("delegates upstream", func(t *testing.T) {
		t.Parallel()
		p, deps := newTestProvider(t)
		want := &upstream.Tokens{AccessToken: "new", TokenType: "Bearer", ExpiresIn: 3600}
		deps.idp.EXPECT().RefreshToken(gomock.Any(), "rt", []string{"email"}).Return(want, nil)

		got, err := p.ExchangeRefreshToken(context.Background(), &oauth.ClientMetadata{ClientID: "c"}, "rt", []string{"email"})
		require.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("rejected refresh token", func(t *testing.T) {
		t.Parallel()
		p, deps := newTestProvider(t)
		deps.idp.EXPECT().RefreshToken(gomock.Any(), "rt", gomock.Nil()).
			Return(nil, bridgeerrors.NewUpstreamRefreshFailedError(networking.NewHTTPError(400, "", "invalid_grant")))

		got, err := p.ExchangeRefreshToken(context.Background(), &oauth.ClientMetadata{ClientID: "c"}, "rt", nil)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, bridgeerrors.IsUpstreamRefreshFailed(err))
	})
}

func TestProvider_VerifyAccessToken(t *testing.T) {
	t.Parallel()

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()
		p, deps := newTestProvider(t)
		deps.idp.EXPECT().TokenInfo(gomock.Any(), "at").
			Return(tokenInfo("user-1", "alice@example.com", testUpstreamClientID), nil)

		info, err := p.VerifyAccessToken(context.Background(), "at")
		require.NoError(t, err)
		assert.Equal(t, "at", info.Token)
		assert.Equal(t, testUpstreamClientID, info.ClientID)
		assert.Equal(t, []string{"openid", "email"}, info.Scopes)
		assert.Equal(t, int64(1_740_000_000), info.ExpiresAt)
		assert.Equal(t, "alice@example.com", info.Email)
		assert.Equal(t, "user-1", info.Subject)
		assert.Equal(t, "offline", info.Extra["access_type"])
		assert.Equal(t, true, info.Extra["email_verified"])
	})

	t.Run("token without expiry", func(t *testing.T) {
		t.Parallel()
		p, deps := newTestProvider(t)
		noExpiry := tokenInfo("user-1", "alice@example.com", testUpstreamClientID)
		noExpiry.Expiry = time.Time{}
		deps.idp.EXPECT().TokenInfo(gomock.Any(), "at").Return(noExpiry, nil)

		info, err := p.VerifyAccessToken(context.Background(), "at")
		require.NoError(t, err)
		assert.Zero(t, info.ExpiresAt)
	})

	t.Run("token for another client", func(t *testing.T) {
		t.Parallel()
		p, deps := newTestProvider(t)
		deps.idp.EXPECT().TokenInfo(gomock.Any(), "at").
			Return(tokenInfo("user-1", "alice@example.com", "someone-else"), nil)

		_, err := p.VerifyAccessToken(context.Background(), "at")
		require.Error(t, err)
		assert.True(t, bridgeerrors.IsAudienceMismatch(err))
	})

	t.Run("email outside domain", func(t *testing.T) {
		t.Parallel()
		p, deps := newTestProvider(t)
		deps.idp.EXPECT().TokenInfo(gomock.Any(), "at").
			Return(tokenInfo("user-1", "bob@other.org", testUpstreamClientID), nil)

		_, err := p.VerifyAccessToken(context.Background(), "at")
		require.Error(t, err)
		assert.True(t, bridgeerrors.IsDomainRestricted(err))
	})

	t.Run("upstream rejects token", func(t *testing.T) {
		t.Parallel()
		p, deps := newTestProvider(t)
		deps.idp.EXPECT().TokenInfo(gomock.Any(), "at").
			Return(nil, bridgeerrors.NewUpstreamError("tokeninfo request failed", networking.NewHTTPError(400, "", "invalid_token")))

		_, err := p.VerifyAccessToken(context.Background(), "at")
		require.Error(t, err)
		assert.True(t, bridgeerrors.IsUpstream(err))
	})
}
