// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

func registerRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestRegisterClientHandler_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantSecret bool
		wantMethod string
	}{
		{
			name:       "confidential client by default",
			body:       `{"redirect_uris":["https://app.example.com/cb"],"client_name":"App","software_id":"app"}`,
			wantSecret: true,
			wantMethod: oauth.TokenEndpointAuthMethodClientSecretPost,
		},
		{
			name:       "public native client",
			body:       `{"redirect_uris":["http://127.0.0.1:33418/callback"],"token_endpoint_auth_method":"none"}`,
			wantMethod: oauth.TokenEndpointAuthMethodNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)

			var stored *oauth.ClientMetadata
			env.store.EXPECT().RegisterClient(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, c *oauth.ClientMetadata) error {
					stored = c
					return nil
				})

			rec := env.do(t, registerRequest(tt.body, "application/json"))

			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

			body := decodeBody(t, rec)
			clientID, _ := body["client_id"].(string)
			_, err := uuid.Parse(clientID)
			require.NoError(t, err)
			assert.Equal(t, stored.ClientID, clientID)
			assert.Equal(t, tt.wantMethod, body["token_endpoint_auth_method"])
			assert.InDelta(t, env.handler.now().Unix(), body["client_id_issued_at"], 0)
			assert.ElementsMatch(t, []any{"authorization_code", "refresh_token"}, body["grant_types"])

			if tt.wantSecret {
				assert.NotEmpty(t, body["client_secret"])
				assert.Equal(t, stored.ClientSecret, body["client_secret"])
			} else {
				assert.NotContains(t, body, "client_secret")
			}
		})
	}
}

func TestRegisterClientHandler_KeepsExtraMetadata(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.store.EXPECT().RegisterClient(gomock.Any(), gomock.Any()).Return(nil)

	rec := env.do(t, registerRequest(
		`{"redirect_uris":["https://app.example.com/cb"],"software_id":"app","software_version":"1.2.3"}`,
		"application/json; charset=utf-8"))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "app", body["software_id"])
	assert.Equal(t, "1.2.3", body["software_version"])
}

func TestRegisterClientHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		contentType string
		storeErr    error
		wantStatus  int
		wantError   string
	}{
		{
			name:        "wrong content type",
			body:        `{"redirect_uris":["https://app.example.com/cb"]}`,
			contentType: "text/plain",
			wantStatus:  http.StatusBadRequest,
			wantError:   "invalid_client_metadata",
		},
		{
			name:        "malformed JSON",
			body:        `{"redirect_uris":`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantError:   "invalid_client_metadata",
		},
		{
			name:        "missing redirect_uris",
			body:        `{"client_name":"App"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantError:   "invalid_redirect_uri",
		},
		{
			name:        "unsupported scope",
			body:        `{"redirect_uris":["https://app.example.com/cb"],"scope":"admin"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantError:   "invalid_client_metadata",
		},
		{
			name:        "store failure",
			body:        `{"redirect_uris":["https://app.example.com/cb"]}`,
			contentType: "application/json",
			storeErr:    errors.New("disk full"),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			if tt.storeErr != nil {
				env.store.EXPECT().RegisterClient(gomock.Any(), gomock.Any()).Return(tt.storeErr)
			}

			rec := env.do(t, registerRequest(tt.body, tt.contentType))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, rec)["error"])
		})
	}
}
