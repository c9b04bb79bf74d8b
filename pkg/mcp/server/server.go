package server

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcpsession "github.com/stacklok/mcp-authbridge/pkg/mcp"
	"github.com/stacklok/mcp-authbridge/pkg/session"
	"github.com/stacklok/mcp-authbridge/pkg/versions"
)

const (
	// DefaultName is the server name reported on initialize.
	DefaultName = "mcp-authbridge"
	// DefaultEndpointPath is where the MCP endpoint is mounted.
	DefaultEndpointPath = "/mcp"
)

// Config holds the configuration for the MCP server
type Config struct {
	Name         string
	EndpointPath string

	// TrustSessionHeader lets tools read the session id straight from the
	// Mcp-Session-Id header when no session middleware put one in the
	// request context. The header is then unauthenticated, so this is only
	// for deployments that run with authentication disabled.
	TrustSessionHeader bool
}

// Server serves MCP over stateless streamable HTTP. Only POST is supported;
// GET and DELETE are answered with 405.
type Server struct {
	config     Config
	mcpServer  *server.MCPServer
	streamable *server.StreamableHTTPServer
	handler    *Handler
}

// New creates the MCP server and registers its tools.
func New(cfg Config, sessions session.Store) *Server {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = DefaultEndpointPath
	}

	mcpServer := server.NewMCPServer(
		cfg.Name,
		versions.GetVersionInfo().Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	handler := NewHandler(sessions)
	registerTools(mcpServer, handler)

	streamable := server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath(cfg.EndpointPath),
		server.WithStateLess(true),
		server.WithHTTPContextFunc(sessionContext(cfg.TrustSessionHeader)),
	)

	return &Server{
		config:     cfg,
		mcpServer:  mcpServer,
		streamable: streamable,
		handler:    handler,
	}
}

// EndpointPath returns the path the server expects to be mounted at.
func (s *Server) EndpointPath() string {
	return s.config.EndpointPath
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodDelete:
		w.Header().Set("Allow", http.MethodPost)
		mcpsession.WriteJSONRPCError(w, http.StatusMethodNotAllowed, mcpsession.CodeServerError, "Method not allowed.")
	default:
		s.streamable.ServeHTTP(w, r)
	}
}

// sessionContext copies the session id resolved by the session middleware
// into the tool context. With trustHeader it falls back to the raw request
// header.
func sessionContext(trustHeader bool) server.HTTPContextFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		if _, ok := mcpsession.SessionIDFromContext(ctx); ok {
			return ctx
		}
		if id, ok := mcpsession.SessionIDFromContext(r.Context()); ok {
			return mcpsession.WithSessionID(ctx, id)
		}
		if !trustHeader {
			return ctx
		}
		return mcpsession.WithSessionID(ctx, r.Header.Get(mcpsession.SessionHeader))
	}
}

// registerTools registers all MCP tools with the server
func registerTools(mcpServer *server.MCPServer, handler *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "whoami",
		Description: "Show the identity this MCP session is authenticated as",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, handler.Whoami)

	mcpServer.AddTool(mcp.Tool{
		Name:        "session_get",
		Description: "Read a value stored in the current MCP session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Key of the value to read",
				},
			},
			Required: []string{"key"},
		},
	}, handler.SessionGet)

	mcpServer.AddTool(mcp.Tool{
		Name:        "session_set",
		Description: "Store a value in the current MCP session. Values expire with the session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Key to store the value under",
				},
				"value": map[string]any{
					"description": "Value to store; strings are kept as-is, objects and arrays as JSON",
				},
			},
			Required: []string{"key", "value"},
		},
	}, handler.SessionSet)
}
