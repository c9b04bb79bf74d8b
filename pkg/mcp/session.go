// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mcp binds MCP sessions to authenticated principals. The MCP
// endpoint itself is stateless; the session middleware issues identifiers on
// initialize and checks them on every later request.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/stacklok/mcp-authbridge/pkg/auth"
	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/session"
)

// SessionHeader carries the MCP session identifier.
const SessionHeader = "Mcp-Session-Id"

// MethodInitialize opens an MCP session.
const MethodInitialize = "initialize"

// maxBodySize bounds JSON-RPC request bodies read by the middleware.
const maxBodySize = 4 << 20

// JSON-RPC error codes.
const (
	CodeServerError   = -32000
	CodeInternalError = -32603
)

type sessionIDContextKey struct{}

// WithSessionID returns a copy of ctx carrying the MCP session identifier.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDContextKey{}, sessionID)
}

// SessionIDFromContext returns the MCP session identifier stored in ctx.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey{}).(string)
	return id, ok && id != ""
}

// IsInitialize reports whether body is an initialize request, or a batch
// containing one.
func IsInitialize(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		for _, m := range gjson.GetBytes(trimmed, "#.method").Array() {
			if m.String() == MethodInitialize {
				return true
			}
		}
		return false
	}
	return gjson.GetBytes(trimmed, "method").String() == MethodInitialize
}

// SessionMiddleware creates sessions for initialize requests and validates
// Mcp-Session-Id on everything else. It must run after authentication.
// Only POST requests carry JSON-RPC messages; other methods pass through.
func SessionMiddleware(store session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				WriteJSONRPCError(w, http.StatusUnauthorized, CodeServerError, "Unauthorized")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
			if err != nil {
				WriteJSONRPCError(w, http.StatusRequestEntityTooLarge, CodeServerError, "Request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			if IsInitialize(body) {
				sessionID, err := store.Create(ctx, principal.Email)
				if err != nil {
					logger.Errorw("failed to create MCP session", "error", err)
					WriteJSONRPCError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
					return
				}
				logger.Debugw("created MCP session", "principal", principal)
				w.Header().Set(SessionHeader, sessionID)
				next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, sessionID)))
				return
			}

			sessionID := r.Header.Get(SessionHeader)
			if sessionID == "" {
				WriteJSONRPCError(w, http.StatusBadRequest, CodeServerError, "Bad Request: Mcp-Session-Id header is required")
				return
			}

			if err := store.Validate(ctx, sessionID, principal.Email); err != nil {
				status := bridgeerrors.HTTPStatus(err)
				message := "Internal server error"
				var bridgeErr *bridgeerrors.Error
				if errors.As(err, &bridgeErr) && status < http.StatusInternalServerError {
					message = bridgeErr.Message
				} else {
					logger.Errorw("failed to validate MCP session", "error", err)
				}
				WriteJSONRPCError(w, status, CodeServerError, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, sessionID)))
		})
	}
}

type jsonRPCError struct {
	JSONRPC string `json:"jsonrpc"`
	Error   struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID any `json:"id"`
}

// WriteJSONRPCError writes a JSON-RPC error response with a null id.
func WriteJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	resp := jsonRPCError{JSONRPC: "2.0"}
	resp.Error.Code = code
	resp.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorw("failed to encode JSON-RPC error", "error", err)
	}
}
