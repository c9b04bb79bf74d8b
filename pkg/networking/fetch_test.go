// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metadataDoc struct {
	ClientID     string   `json:"client_id"`
	RedirectURIs []string `json:"redirect_uris"`
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFetchJSON_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Accept"))
		writeJSON(t, w, http.StatusOK, metadataDoc{
			ClientID:     "https://app.example.com/client.json",
			RedirectURIs: []string{"https://app.example.com/cb"},
		})
	}))
	defer server.Close()

	result, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "https://app.example.com/client.json", result.Data.ClientID)
	assert.Equal(t, []string{"https://app.example.com/cb"}, result.Data.RedirectURIs)
	assert.Contains(t, result.Header.Get("Content-Type"), "application/json")
}

func TestFetchJSON_Accepts2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusCreated, map[string]string{"client_id": "abc"})
	}))
	defer server.Close()

	result, err := FetchJSON[map[string]string](context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "abc", result.Data["client_id"])
}

func TestFetchJSONWithForm_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ContentTypeFormURLEncoded, r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "1//rt", r.PostForm.Get("refresh_token"))
		writeJSON(t, w, http.StatusOK, map[string]any{"access_token": "ya29.new", "expires_in": 3599})
	}))
	defer server.Close()

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"1//rt"}}
	result, err := FetchJSONWithForm[map[string]any](context.Background(), server.Client(), server.URL, form)
	require.NoError(t, err)
	assert.Equal(t, "ya29.new", result.Data["access_token"])
}

func TestFetchJSON_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
	}{
		{"bad request", http.StatusBadRequest},
		{"unauthorized", http.StatusUnauthorized},
		{"not found", http.StatusNotFound},
		{"internal server error", http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, tt.statusCode, map[string]string{"error": "invalid_grant"})
			}))
			defer server.Close()

			_, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL)
			require.Error(t, err)
			assert.True(t, IsHTTPError(err, tt.statusCode))

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Contains(t, httpErr.Body, "invalid_grant")
			assert.Equal(t, "invalid_grant", httpErr.Code)
			assert.Equal(t, server.URL, httpErr.URL)
		})
	}
}

func TestFetchJSON_ErrorDoesNotLeakBody(t *testing.T) {
	t.Parallel()

	largeBody := strings.Repeat("refresh-token-", 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(largeBody))
	}))
	defer server.Close()

	_, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "refresh-token-")

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Len(t, httpErr.Body, DefaultErrorPreviewSize)
}

func TestFetchJSON_ContentTypeValidation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`{"client_id":"x"}`))
	}))
	defer server.Close()

	_, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")

	result, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL,
		WithoutContentTypeValidation())
	require.NoError(t, err)
	assert.Equal(t, "x", result.Data.ClientID)
}

func TestFetchJSON_MaxResponseSize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentTypeJSON)
		_, _ = w.Write([]byte(`{"client_id":"` + strings.Repeat("a", 1024) + `"}`))
	}))
	defer server.Close()

	_, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL, WithMaxResponseSize(64))
	require.ErrorIs(t, err, ErrResponseTooLarge)

	result, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL, WithMaxResponseSize(2048))
	require.NoError(t, err)
	assert.Len(t, result.Data.ClientID, 1024)
}

func TestFetchJSON_JSONBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Content-Type"))
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]string{"strategy": "apikey", "apiKey": "k-123"}, got)
		w.Header().Set("Content-Type", "application/vnd.identity+json")
		_, _ = w.Write([]byte(`{"client_id":"bot"}`))
	}))
	defer server.Close()

	result, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL,
		WithJSONBody(map[string]string{"strategy": "apikey", "apiKey": "k-123"}))
	require.NoError(t, err)
	assert.Equal(t, "bot", result.Data.ClientID)

	_, err = FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL,
		WithJSONBody(func() {}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode request body")
}

func TestIsJSONMediaType(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"application/json":                true,
		"application/json; charset=utf-8": true,
		"Application/JSON":                true,
		"application/problem+json":        true,
		"text/json+html":                  false,
		"text/html":                       false,
		"":                                false,
	}
	for contentType, want := range tests {
		assert.Equal(t, want, isJSONMediaType(contentType), contentType)
	}
}

func TestFetchJSON_CustomErrorHandler(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
	}))
	defer server.Close()

	sentinel := errors.New("api key rejected")
	_, err := FetchJSON[metadataDoc](context.Background(), server.Client(), server.URL,
		WithErrorHandler(func(resp *http.Response, _ []byte) error {
			if resp.StatusCode == http.StatusUnauthorized {
				return sentinel
			}
			return nil
		}))
	require.ErrorIs(t, err, sentinel)
	assert.False(t, IsHTTPError(err, 0))
}

func TestFetchJSON_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(t, w, http.StatusOK, metadataDoc{})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := FetchJSON[metadataDoc](ctx, server.Client(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchJSON_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := FetchJSON[metadataDoc](context.Background(), http.DefaultClient, "://bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}
