package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	supportdesk "github.com/blueberrycongee/supportdesk"
	"github.com/blueberrycongee/supportdesk/internal/config"
	"github.com/blueberrycongee/supportdesk/internal/observability"
)

type fakeRegistrar struct{}

func (fakeRegistrar) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBuildMux_RegistersMetricsWhenEnabled(t *testing.T) {
	cfg := config.DefaultConfig()

	mux, err := buildMux(cfg, fakeRegistrar{})
	if err != nil {
		t.Fatalf("buildMux() error = %v", err)
	}
	if got := routePattern(mux, http.MethodPost, "/v1/chat"); got != "POST /v1/chat" {
		t.Fatalf("mux missing chat route, got pattern %q", got)
	}
	if got := routePattern(mux, http.MethodGet, "/metrics"); got != "GET /metrics" {
		t.Fatalf("mux missing metrics route, got pattern %q", got)
	}

	cfg.Metrics.Enabled = false
	mux, err = buildMux(cfg, fakeRegistrar{})
	if err != nil {
		t.Fatalf("buildMux() error = %v", err)
	}
	if got := routePattern(mux, http.MethodGet, "/metrics"); got != "" {
		t.Fatalf("metrics route should be absent, got pattern %q", got)
	}
}

func TestBuildMux_RequiresConfig(t *testing.T) {
	if _, err := buildMux(nil, fakeRegistrar{}); !errors.Is(err, errNilConfig) {
		t.Fatalf("buildMux(nil) error = %v, want errNilConfig", err)
	}
}

func TestBuildMiddlewareStack_SetsRequestID(t *testing.T) {
	var seen string
	handler := buildMiddlewareStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if seen == "" {
		t.Fatal("request id missing from context")
	}
	if got := rr.Header().Get(observability.RequestIDHeader); got != seen {
		t.Fatalf("response request id = %q, want %q", got, seen)
	}
}

type recordingSetter struct {
	policies []supportdesk.Policy
	err      error
}

func (r *recordingSetter) SetPolicy(p supportdesk.Policy) error {
	if r.err != nil {
		return r.err
	}
	r.policies = append(r.policies, p)
	return nil
}

func TestPolicyReloaderAppliesPolicy(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{}))
	setter := &recordingSetter{}
	reloader := newPolicyReloader(logger, setter, config.DefaultConfig())

	next := config.DefaultConfig()
	next.Policy.StreakLimit = 4
	reloader.Reload(next)

	require.Len(t, setter.policies, 1)
	require.Equal(t, 4, setter.policies[0].StreakLimit)
	require.NotEmpty(t, setter.policies[0].Keywords)
	require.Same(t, next, reloader.current)
}

func TestPolicyReloaderKeepsStateOnFailure(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{}))
	initial := config.DefaultConfig()
	reloader := newPolicyReloader(logger, &recordingSetter{err: errors.New("invalid")}, initial)

	reloader.Reload(config.DefaultConfig())

	require.Same(t, initial, reloader.current)
}

func TestRestartSections(t *testing.T) {
	prev := config.DefaultConfig()
	next := config.DefaultConfig()
	next.Policy.StreakLimit = 9
	require.Empty(t, restartSections(prev, next))

	next.Oracle.Backend = "gemini"
	next.Server.Port = 9999
	require.Equal(t, []string{"server", "oracle"}, restartSections(prev, next))
	require.Nil(t, restartSections(nil, next))
}

func routePattern(mux *http.ServeMux, method, path string) string {
	req := httptest.NewRequest(method, path, nil)
	_, pattern := mux.Handler(req)
	return pattern
}
