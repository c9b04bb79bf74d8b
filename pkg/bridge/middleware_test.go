package bridge

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-authbridge/pkg/auth"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
)

func TestRecoverer(t *testing.T) {
	t.Parallel()

	h := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())

	abort := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.Panics(t, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()

	var reached bool
	h := cors(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantReached bool
	}{
		{name: "preflight", method: http.MethodOptions, origin: "https://a.example", preflight: true,
			wantStatus: http.StatusNoContent, wantOrigin: "https://a.example"},
		{name: "plain options reaches handler", method: http.MethodOptions,
			wantStatus: http.StatusTeapot, wantOrigin: "*", wantReached: true},
		{name: "post with origin", method: http.MethodPost, origin: "https://b.example",
			wantStatus: http.StatusTeapot, wantOrigin: "https://b.example", wantReached: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/mcp", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantReached, reached)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var (
		gotLogger *slog.Logger
		gotID     string
	)
	h := middleware.RequestID(requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLogger = logger.FromContext(r.Context())
		gotID = middleware.GetReqID(r.Context())
		_, _ = w.Write([]byte("ok"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, gotID)
	require.NotNil(t, gotLogger)
	assert.NotSame(t, logger.Get(), gotLogger)
}

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	sr.WriteHeader(http.StatusCreated)
	sr.WriteHeader(http.StatusBadRequest)
	n, err := sr.Write([]byte("hello"))
	require.NoError(t, err)
	sr.Flush()

	assert.Equal(t, 5, n)
	assert.Equal(t, 5, sr.bytes)
	assert.Equal(t, http.StatusCreated, sr.status)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, sr.Unwrap())
}

func TestPrincipalLogger(t *testing.T) {
	t.Parallel()

	base := slog.New(slog.DiscardHandler)
	var got *slog.Logger
	h := principalLogger(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	ctx := logger.WithContext(req.Context(), base)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))
	assert.Same(t, base, got)

	principal := auth.NewAPIKeyPrincipal("bot@example.com", "", "", "service")
	ctx = auth.WithPrincipal(ctx, principal)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))
	assert.NotSame(t, base, got)
}
