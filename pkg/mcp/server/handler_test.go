package server

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-authbridge/pkg/auth"
	mcpsession "github.com/stacklok/mcp-authbridge/pkg/mcp"
	"github.com/stacklok/mcp-authbridge/pkg/session"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

type failingStore struct {
	session.Store
}

func (failingStore) Get(context.Context, string, string) (any, error) {
	return nil, errors.New("redis down")
}

func (failingStore) Set(context.Context, string, string, any) error {
	return errors.New("redis down")
}

func TestHandler_Whoami(t *testing.T) {
	t.Parallel()

	h := NewHandler(session.NewMemoryStore(session.Options{}))

	principal := auth.NewAPIKeyPrincipal("bot@example.com", "Build", "Bot", "service")
	result, err := h.Whoami(auth.WithPrincipal(context.Background(), principal), callRequest("whoami", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, principal, result.StructuredContent)

	result, err = h.Whoami(context.Background(), callRequest("whoami", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandler_SessionRoundTrip(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore(session.Options{})
	h := NewHandler(store)
	sessionID, err := store.Create(context.Background(), "alice@example.com")
	require.NoError(t, err)
	ctx := mcpsession.WithSessionID(context.Background(), sessionID)

	tests := []struct {
		name  string
		key   string
		value any
		want  any
	}{
		{name: "string", key: "site", value: "example.com", want: "example.com"},
		{name: "object", key: "filters", value: map[string]any{"env": "prod"}, want: map[string]any{"env": "prod"}},
		{name: "array", key: "ids", value: []any{"a", "b"}, want: []any{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := h.SessionSet(ctx, callRequest("session_set", map[string]any{"key": tt.key, "value": tt.value}))
			require.NoError(t, err)
			require.False(t, result.IsError)

			result, err = h.SessionGet(ctx, callRequest("session_get", map[string]any{"key": tt.key}))
			require.NoError(t, err)
			require.False(t, result.IsError)
			assert.Equal(t, SessionValue{Key: tt.key, Value: tt.want}, result.StructuredContent)
		})
	}

	t.Run("missing key reads as null", func(t *testing.T) {
		t.Parallel()
		result, err := h.SessionGet(ctx, callRequest("session_get", map[string]any{"key": "nothing"}))
		require.NoError(t, err)
		require.False(t, result.IsError)
		assert.Equal(t, SessionValue{Key: "nothing"}, result.StructuredContent)
	})
}

func TestHandler_SessionErrors(t *testing.T) {
	t.Parallel()

	withSession := mcpsession.WithSessionID(context.Background(), "sid")
	memory := NewHandler(session.NewMemoryStore(session.Options{}))
	broken := NewHandler(failingStore{})

	tests := []struct {
		name string
		call func() (*mcp.CallToolResult, error)
	}{
		{
			name: "get without key",
			call: func() (*mcp.CallToolResult, error) {
				return memory.SessionGet(withSession, callRequest("session_get", map[string]any{}))
			},
		},
		{
			name: "get without session",
			call: func() (*mcp.CallToolResult, error) {
				return memory.SessionGet(context.Background(), callRequest("session_get", map[string]any{"key": "k"}))
			},
		},
		{
			name: "set without value",
			call: func() (*mcp.CallToolResult, error) {
				return memory.SessionSet(withSession, callRequest("session_set", map[string]any{"key": "k"}))
			},
		},
		{
			name: "set without session",
			call: func() (*mcp.CallToolResult, error) {
				return memory.SessionSet(context.Background(), callRequest("session_set", map[string]any{"key": "k", "value": "v"}))
			},
		},
		{
			name: "get store failure",
			call: func() (*mcp.CallToolResult, error) {
				return broken.SessionGet(withSession, callRequest("session_get", map[string]any{"key": "k"}))
			},
		},
		{
			name: "set store failure",
			call: func() (*mcp.CallToolResult, error) {
				return broken.SessionSet(withSession, callRequest("session_set", map[string]any{"key": "k", "value": "v"}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := tt.call()
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}
