package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/looplab/internal/api/handlers"
	"github.com/felixgeelhaar/looplab/internal/api/middleware"
)

// Router wraps the HTTP multiplexer with middleware and handlers
type Router struct {
	mux   *http.ServeMux
	app   *App
	loops *handlers.LoopHandler
	run   *handlers.RunHandler
	coach *handlers.CoachHandler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(app *App) http.Handler {
	r := &Router{
		mux: http.NewServeMux(),
		app: app,
	}

	// Initialize handlers
	r.loops = handlers.NewLoopHandler(app.Loops)
	r.run = handlers.NewRunHandler(app.Runner, app.Publisher)
	r.coach = handlers.NewCoachHandler(app.Loops, app.Runner, app.Coach, app.Engine, app.Publisher)

	r.registerRoutes()

	return r.buildMiddlewareChain(r.mux, app)
}

func (r *Router) registerRoutes() {
	// Health checks
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /ready", r.handleReady)

	// Loop metadata (public read)
	r.mux.HandleFunc("GET /api/v1/loops", r.loops.List)
	r.mux.HandleFunc("GET /api/v1/loops/{id}", r.loops.Get)

	// Sandbox-backed endpoints get their own stricter limiter
	r.mux.Handle("POST /api/v1/loops/{id}/run", r.sandboxLimited(r.run.TriggerRun))
	r.mux.Handle("POST /api/v1/loops/{id}/coach", r.sandboxLimited(r.coach.Coach))

	// Dev-only budget reset
	if r.app.Config.Debug {
		r.mux.HandleFunc("POST /api/v1/loops/{id}/coach/reset", r.coach.Reset)
	}

	// JSON 404 for everything else under the API prefix
	r.mux.HandleFunc("/api/", func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusNotFound, ErrNotFoundWith("route"))
	})
}

func (r *Router) buildMiddlewareChain(handler http.Handler, app *App) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(handler)
	handler = middleware.Scope(!app.Config.Debug)(handler)

	// Skip general rate limiting in debug mode for easier development
	if !app.Config.Debug {
		handler = middleware.RateLimitMiddleware(middleware.DefaultRateLimitConfig())(handler)
	}

	handler = middleware.RequestID(handler)
	handler = middleware.CORS(handler)

	return handler
}

// sandboxLimited wraps a handler with the code execution rate limit
func (r *Router) sandboxLimited(next http.HandlerFunc) http.Handler {
	if r.app.Config.Debug {
		return next
	}
	return middleware.SandboxRateLimitMiddleware(middleware.DefaultRateLimitConfig())(next)
}

// Health check handlers
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	checks := map[string]string{
		"loops": "healthy",
		"store": "healthy",
	}
	ready := true

	if r.app.Loops.Count() == 0 {
		checks["loops"] = "no loops loaded"
		ready = false
	}

	if r.app.StorePing != nil {
		if err := r.app.StorePing(req.Context()); err != nil {
			slog.Error("store health check failed",
				"error", err,
				"request_id", middleware.GetRequestID(req.Context()),
			)
			checks["store"] = "unhealthy"
			ready = false
		}
	}

	if !ready {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"checks": checks,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": checks,
	})
}
