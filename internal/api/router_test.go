package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/looplab/internal/api"
	"github.com/felixgeelhaar/looplab/internal/api/middleware"
	"github.com/felixgeelhaar/looplab/internal/coach"
	"github.com/felixgeelhaar/looplab/internal/config"
	"github.com/felixgeelhaar/looplab/internal/loop"
	"github.com/felixgeelhaar/looplab/internal/sandbox"
	"github.com/felixgeelhaar/looplab/internal/storage/memory"
)

const routerLoopYAML = `title: Filter adults
spec:
  - Keep only adults
exports:
  - toFilter
hint_budget: 2
starter: |
  export const toFilter = (people) => [];
tests: |
  import { toFilter } from './loop'
`

type okProvider struct{}

func (okProvider) Execute(ctx context.Context, req sandbox.ExecRequest) (*sandbox.ExecResult, error) {
	return &sandbox.ExecResult{ExitCode: 0, Duration: 50 * time.Millisecond}, nil
}

func (okProvider) Close() error { return nil }

func newTestApp(t *testing.T, debug bool) *api.App {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "filter-adults.yaml"), []byte(routerLoopYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := loop.NewRegistry(loop.NewLoader(dir))
	if err := registry.Load(); err != nil {
		t.Fatalf("load loops: %v", err)
	}

	return &api.App{
		Config: &config.Config{Port: 8080, Debug: debug},
		Loops:  registry,
		Runner: sandbox.NewRunner(registry, okProvider{}, sandbox.DefaultConfig()),
		Coach:  coach.NewController(memory.NewBudgetStore()),
		Engine: coach.NewEngine(),
	}
}

func TestRouter_Health(t *testing.T) {
	handler := api.NewRouter(newTestApp(t, true))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRouter_Ready(t *testing.T) {
	handler := api.NewRouter(newTestApp(t, true))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ReadyFailsWhenStoreDown(t *testing.T) {
	app := newTestApp(t, true)
	app.StorePing = func(ctx context.Context) error {
		return context.DeadlineExceeded
	}
	handler := api.NewRouter(app)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRouter_RequestIDAndScopeHeaders(t *testing.T) {
	handler := api.NewRouter(newTestApp(t, true))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/loops", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}

	scoped := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.ScopeCookieName && c.Value != "" {
			scoped = true
		}
	}
	if !scoped {
		t.Error("scope cookie not minted")
	}
}

func TestRouter_UnknownAPIRouteIsJSON404(t *testing.T) {
	handler := api.NewRouter(newTestApp(t, true))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRouter_ResetRouteOnlyInDebug(t *testing.T) {
	path := "/api/v1/loops/filter-adults/coach/reset"

	debug := api.NewRouter(newTestApp(t, true))
	rec := httptest.NewRecorder()
	debug.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("debug reset status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	prod := api.NewRouter(newTestApp(t, false))
	rec = httptest.NewRecorder()
	prod.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("prod reset status = %d, want 404", rec.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	handler := api.NewRouter(newTestApp(t, true))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/loops", nil)
	req.Header.Set("Origin", "http://localhost:5173")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}
}
