package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-authbridge/pkg/networking"
)

func newIntrospectionServer(t *testing.T, status int, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-token", r.PostForm.Get("token"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRFC7662Introspector_IntrospectToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      map[string]any
		wantErr   error
		wantClaim map[string]any
	}{
		{
			name:   "active token",
			status: http.StatusOK,
			body: map[string]any{
				"active":    true,
				"sub":       " user-1 ",
				"email":     "alice@example.com",
				"scope":     "openid email",
				"client_id": "upstream-client",
				"exp":       1_740_003_600,
				"azp":       "upstream-client",
			},
			wantClaim: map[string]any{
				"sub":   "user-1",
				"email": "alice@example.com",
				"scope": "openid email",
				"exp":   float64(1_740_003_600),
				"azp":   "upstream-client",
			},
		},
		{
			name:    "inactive token",
			status:  http.StatusOK,
			body:    map[string]any{"active": false},
			wantErr: ErrInvalidToken,
		},
		{
			name:    "rejected token",
			status:  http.StatusUnauthorized,
			body:    map[string]any{"active": false, "error": "Unauthorized"},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newIntrospectionServer(t, tt.status, tt.body)

			introspector, err := NewRFC7662Introspector(srv.URL+"/introspect", srv.Client())
			require.NoError(t, err)
			assert.Equal(t, "rfc7662", introspector.Name())

			claims, err := introspector.IntrospectToken(context.Background(), "the-token")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for k, v := range tt.wantClaim {
				assert.Equal(t, v, claims[k], k)
			}
			assert.NotContains(t, claims, "active")
		})
	}
}

func TestRFC7662Introspector_ServerError(t *testing.T) {
	t.Parallel()

	srv := newIntrospectionServer(t, http.StatusBadGateway, map[string]any{"error": "upstream down"})
	introspector, err := NewRFC7662Introspector(srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = introspector.IntrospectToken(context.Background(), "the-token")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidToken))
	assert.Equal(t, http.StatusBadGateway, networking.StatusCodeOf(err))
}

func TestNewRFC7662Introspector_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewRFC7662Introspector("", nil)
	require.Error(t, err)
}

func TestParseIntrospectionClaims_BadExp(t *testing.T) {
	t.Parallel()

	_, err := parseIntrospectionClaims(map[string]any{"active": true, "exp": "tomorrow"})
	require.Error(t, err)
}
