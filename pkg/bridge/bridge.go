// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridge assembles the auth bridge: storage, sessions, the upstream
// identity provider, the OAuth endpoints, the authentication chain and the
// MCP endpoint, behind one chi router.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/mcp-authbridge/pkg/auth/apikey"
	authmw "github.com/stacklok/mcp-authbridge/pkg/auth/middleware"
	"github.com/stacklok/mcp-authbridge/pkg/auth/token/providers"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/clients"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/provider"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/server/handlers"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/upstream"
	"github.com/stacklok/mcp-authbridge/pkg/config"
	"github.com/stacklok/mcp-authbridge/pkg/lifecycle"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	mcpsession "github.com/stacklok/mcp-authbridge/pkg/mcp"
	mcpserver "github.com/stacklok/mcp-authbridge/pkg/mcp/server"
	"github.com/stacklok/mcp-authbridge/pkg/networking"
	"github.com/stacklok/mcp-authbridge/pkg/session"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
	"github.com/stacklok/mcp-authbridge/pkg/telemetry"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second

	// HealthPath and MetricsPath are always public.
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// Option overrides a dependency that New would otherwise build from config.
type Option func(*options)

type options struct {
	store        storage.Store
	sessions     session.Store
	idp          upstream.IdentityProvider
	verifier     apikey.Verifier
	introspector authmw.TokenIntrospector
}

// WithStore uses store instead of opening the configured one. The bridge
// takes ownership and closes it on shutdown.
func WithStore(store storage.Store) Option {
	return func(o *options) { o.store = store }
}

// WithSessions uses sessions instead of the configured backend.
func WithSessions(sessions session.Store) Option {
	return func(o *options) { o.sessions = sessions }
}

// WithIdentityProvider replaces the Google provider.
func WithIdentityProvider(idp upstream.IdentityProvider) Option {
	return func(o *options) { o.idp = idp }
}

// WithAPIKeyVerifier replaces the HTTP API key verifier.
func WithAPIKeyVerifier(v apikey.Verifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithIntrospector replaces the RFC 7662 introspection client.
func WithIntrospector(i authmw.TokenIntrospector) Option {
	return func(o *options) { o.introspector = i }
}

// Bridge is a fully wired auth bridge.
type Bridge struct {
	config   *config.Config
	router   chi.Router
	cleanup  *lifecycle.Registry
	store    storage.Store
	sessions session.Store
	metrics  *telemetry.Metrics
}

// New builds every component named by cfg. On error, anything already
// opened is closed before returning.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Bridge, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	b := &Bridge{
		config:  cfg,
		cleanup: lifecycle.NewRegistry(),
	}
	defer func() {
		if err != nil {
			b.cleanup.Shutdown(ctx)
		}
	}()

	b.store = o.store
	if b.store == nil {
		if b.store, err = OpenStore(ctx, cfg.Store); err != nil {
			return nil, err
		}
	}
	if err = b.cleanup.RegisterCloser("store", b.store.Close); err != nil {
		return nil, err
	}

	b.sessions = o.sessions
	if b.sessions == nil {
		if b.sessions, err = OpenSessions(ctx, cfg.Session); err != nil {
			return nil, err
		}
	}
	if err = b.cleanup.RegisterCloser("sessions", b.sessions.Close); err != nil {
		return nil, err
	}

	if b.metrics, err = telemetry.NewMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	if b.router, err = b.routes(ctx, o); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bridge) routes(ctx context.Context, o *options) (chi.Router, error) {
	cfg := b.config

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		requestLogger,
		recoverer,
		cors,
		b.metrics.Middleware,
	)

	r.Mount(HealthPath, HealthcheckRouter(map[string]Pinger{
		"store":    b.store,
		"sessions": b.sessions,
	}))
	r.Method(http.MethodGet, MetricsPath, b.metrics.Handler())

	if cfg.EmailDomainSuffix() != "" {
		oauthHandler, err := b.oauthHandler(ctx, o)
		if err != nil {
			return nil, err
		}
		oauthHandler.OAuthRoutes(r)
		oauthHandler.WellKnownRoutes(r)
	} else {
		logger.Warn("allowed_email_domain is empty; OAuth endpoints are not served")
	}

	if cfg.DisableAuth {
		logger.Warnw("authentication is disabled; the MCP endpoint is open to anyone and "+
			"session tools trust the client-supplied session header",
			"header", mcpsession.SessionHeader,
		)
		r.Handle(cfg.ResourcePath, mcpserver.New(mcpserver.Config{
			EndpointPath:       cfg.ResourcePath,
			TrustSessionHeader: true,
		}, b.sessions))
		return r, nil
	}

	mcp := mcpserver.New(mcpserver.Config{EndpointPath: cfg.ResourcePath}, b.sessions)

	chain, err := b.authChain(o)
	if err != nil {
		return nil, err
	}
	r.Group(func(r chi.Router) {
		r.Use(chain.Middleware, principalLogger, mcpsession.SessionMiddleware(b.sessions))
		r.Handle(cfg.ResourcePath, mcp)
	})
	return r, nil
}

func (b *Bridge) oauthHandler(ctx context.Context, o *options) (*handlers.Handler, error) {
	cfg := b.config

	idp := o.idp
	if idp == nil {
		google, err := newGoogleProvider(ctx, cfg.Upstream, cfg.CABundle)
		if err != nil {
			return nil, err
		}
		idp = google
	}

	cimdClient, err := networking.NewHttpClientBuilder().
		WithCABundle(cfg.CABundle).
		WithPrivateIPs(cfg.CIMD.AllowPrivateIPs).
		WithTimeout(cfg.CIMD.Timeout).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create CIMD HTTP client: %w", err)
	}
	registry, err := clients.NewRegistry(b.store,
		clients.WithHTTPClient(cimdClient),
		clients.WithMaxDocumentSize(cfg.CIMD.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client registry: %w", err)
	}

	p, err := provider.New(provider.Config{
		UpstreamClientID:   cfg.Upstream.ClientID,
		AllowedEmailDomain: cfg.AllowedEmailDomain,
	}, idp, registry, b.store)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth provider: %w", err)
	}

	return handlers.NewHandler(p, registry, handlers.Config{
		Issuer:          cfg.IssuerURL(),
		ResourcePath:    cfg.ResourcePath,
		ScopesSupported: cfg.Upstream.Scopes,
	}), nil
}

func (b *Bridge) authChain(o *options) (*authmw.Chain, error) {
	cfg := b.config

	verifier := o.verifier
	if verifier == nil {
		if cfg.APIKey.VerifyURL == "" {
			logger.Info("apikey.verify_url is empty; every API key will be rejected")
		}
		client, err := internalClient(cfg.CABundle, cfg.APIKey.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity API HTTP client: %w", err)
		}
		v, err := apikey.NewHTTPVerifier(cfg.APIKey.VerifyURL, client, cfg.APIKey.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create API key verifier: %w", err)
		}
		verifier = v
	}

	introspector := o.introspector
	if introspector == nil {
		client, err := internalClient(cfg.CABundle, cfg.Introspection.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create introspection HTTP client: %w", err)
		}
		i, err := providers.NewRFC7662Introspector(cfg.IntrospectionURL(), client)
		if err != nil {
			return nil, fmt.Errorf("failed to create token introspector: %w", err)
		}
		introspector = i
	}

	return authmw.NewChain(authmw.Config{
		PublicPaths:         append([]string{HealthPath, MetricsPath}, cfg.PublicPaths...),
		Verifier:            verifier,
		Introspector:        introspector,
		Realm:               cfg.IssuerURL(),
		ResourceMetadataURL: cfg.ProtectedResourceMetadataURL(),
		Recorder:            b.metrics,
	})
}

// internalClient reaches services deployed next to the bridge (identity API,
// introspection), which may sit on private addresses behind plain http.
func internalClient(caBundle string, timeout time.Duration) (*http.Client, error) {
	return networking.NewHttpClientBuilder().
		WithCABundle(caBundle).
		WithPrivateIPs(true).
		WithInsecureHTTP(true).
		WithTimeout(timeout).
		Build()
}

// newGoogleProvider builds the upstream provider, resolving endpoints through
// OIDC discovery when an issuer is configured.
func newGoogleProvider(ctx context.Context, cfg config.UpstreamConfig, caBundle string) (*upstream.GoogleProvider, error) {
	client, err := networking.NewHttpClientBuilder().WithCABundle(caBundle).WithTimeout(cfg.Timeout).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream HTTP client: %w", err)
	}

	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if cfg.Issuer != "" {
		endpoints, err := upstream.Discover(ctx, cfg.Issuer, client)
		if err != nil {
			return nil, fmt.Errorf("failed to discover upstream endpoints: %w", err)
		}
		authURL, tokenURL = endpoints.AuthURL, endpoints.TokenURL
		logger.Infow("discovered upstream endpoints", "issuer", cfg.Issuer, "authorization_endpoint", authURL)
	}

	p, err := upstream.NewGoogleProvider(&upstream.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		AuthURL:      authURL,
		TokenURL:     tokenURL,
		TokenInfoURL: cfg.TokenInfoURL,
	}, upstream.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream provider: %w", err)
	}
	return p, nil
}

// Handler returns the root HTTP handler.
func (b *Bridge) Handler() http.Handler {
	return b.router
}

// Cleanup returns the registry run on shutdown, so callers can add their own
// resources.
func (b *Bridge) Cleanup() *lifecycle.Registry {
	return b.cleanup
}

// Close releases every resource the bridge opened.
func (b *Bridge) Close(ctx context.Context) {
	b.cleanup.Shutdown(ctx)
}

// Run serves on the configured address until ctx is cancelled, then shuts
// the server down and runs the cleanup registry.
func (b *Bridge) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", b.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.config.Address, err)
	}
	return b.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (b *Bridge) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           b.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	shutdownCtx := context.WithoutCancel(ctx)
	defer b.Close(shutdownCtx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("MCP auth bridge listening",
			"address", listener.Addr().String(),
			"issuer", b.config.IssuerURL(),
			"resource", b.config.ResourceURL(),
		)
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped with error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	timeoutCtx, cancel := context.WithTimeout(shutdownCtx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(timeoutCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("graceful shutdown complete")
	return nil
}
