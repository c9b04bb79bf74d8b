// Package server provides the MCP (Model Context Protocol) endpoint of the
// auth bridge.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/mcp-authbridge/pkg/auth"
	mcpsession "github.com/stacklok/mcp-authbridge/pkg/mcp"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/session"
)

// Handler handles MCP tool requests.
type Handler struct {
	sessions session.Store
}

// NewHandler creates a tool handler backed by sessions.
func NewHandler(sessions session.Store) *Handler {
	return &Handler{sessions: sessions}
}

type sessionGetArgs struct {
	Key string `json:"key"`
}

type sessionSetArgs struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SessionValue is the result of the session tools.
type SessionValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Whoami returns the principal that authenticated the request.
func (*Handler) Whoami(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("Request is not authenticated"), nil
	}
	return mcp.NewToolResultStructured(principal, fmt.Sprintf("Authenticated as %s via %s", principal.Email, principal.Strategy)), nil
}

// SessionGet reads a value from the caller's session.
func (h *Handler) SessionGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := sessionGetArgs{}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	if args.Key == "" {
		return mcp.NewToolResultError("Key cannot be empty"), nil
	}

	sessionID, ok := mcpsession.SessionIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("No MCP session is associated with this request"), nil
	}

	value, err := h.sessions.Get(ctx, sessionID, args.Key)
	if err != nil {
		logger.Errorw("failed to read session value", "key", args.Key, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read session value: %v", err)), nil
	}

	return mcp.NewToolResultStructuredOnly(SessionValue{Key: args.Key, Value: value}), nil
}

// SessionSet stores a value in the caller's session.
func (h *Handler) SessionSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := sessionSetArgs{}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	if args.Key == "" {
		return mcp.NewToolResultError("Key cannot be empty"), nil
	}
	if args.Value == nil {
		return mcp.NewToolResultError("Value cannot be null"), nil
	}

	sessionID, ok := mcpsession.SessionIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("No MCP session is associated with this request"), nil
	}

	if err := h.sessions.Set(ctx, sessionID, args.Key, args.Value); err != nil {
		logger.Errorw("failed to write session value", "key", args.Key, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to write session value: %v", err)), nil
	}

	return mcp.NewToolResultStructuredOnly(SessionValue{Key: args.Key, Value: args.Value}), nil
}
