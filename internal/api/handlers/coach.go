package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/looplab/internal/api/middleware"
	"github.com/felixgeelhaar/looplab/internal/coach"
	"github.com/felixgeelhaar/looplab/internal/domain"
	"github.com/felixgeelhaar/looplab/internal/events"
	"github.com/felixgeelhaar/looplab/internal/loop"
	"github.com/felixgeelhaar/looplab/internal/report"
	"github.com/felixgeelhaar/looplab/internal/sandbox"
)

// CoachHandler handles hint coaching endpoints
type CoachHandler struct {
	registry   *loop.Registry
	runner     *sandbox.Runner
	controller *coach.Controller
	engine     *coach.Engine
	publisher  *events.Publisher // nil when events are disabled
}

// NewCoachHandler creates a new coach handler
func NewCoachHandler(registry *loop.Registry, runner *sandbox.Runner, controller *coach.Controller, engine *coach.Engine, publisher *events.Publisher) *CoachHandler {
	return &CoachHandler{
		registry:   registry,
		runner:     runner,
		controller: controller,
		engine:     engine,
		publisher:  publisher,
	}
}

// CoachRequest is the request body for a hint request
type CoachRequest struct {
	Source string `json:"source"`
}

// RunSummary condenses the grading run that backed a coaching decision
type RunSummary struct {
	Passed       bool `json:"passed"`
	FailingTests int  `json:"failingTests"`
}

// CoachResponse is the outcome of a hint request. A refused reveal is a
// normal response, not an error status.
type CoachResponse struct {
	Revealed bool                    `json:"revealed"`
	Reason   string                  `json:"reason,omitempty"`
	Coaching *domain.CoachingPayload `json:"coaching,omitempty"`
	Budget   domain.BudgetState      `json:"budget"`
	Run      RunSummary              `json:"run"`
}

// Coach grades the submission and, when the budget allows, reveals the
// next hint tier. Tokens are only spent on a successful reveal.
func (h *CoachHandler) Coach(w http.ResponseWriter, r *http.Request) {
	loopID := r.PathValue("id")
	scope := middleware.GetScope(r.Context())

	l, err := h.registry.Get(loopID)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "loop not found")
		return
	}

	var req CoachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.runner.Run(r.Context(), loopID, req.Source)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			h.jsonError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrLoopNotFound):
			h.jsonError(w, http.StatusNotFound, "loop not found")
		default:
			slog.Error("coaching run failed",
				"loop_id", loopID,
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			h.jsonError(w, http.StatusInternalServerError, "sandbox execution failed")
		}
		return
	}

	failing := domain.FailingTests(report.Normalize(result.RawReport))
	summary := RunSummary{Passed: result.Passed(), FailingTests: len(failing)}

	state, err := h.controller.Current(r.Context(), scope, loopID, l.HintBudget)
	if err != nil {
		slog.Error("failed to load budget state", "loop_id", loopID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "failed to load hint budget")
		return
	}

	if !h.controller.CanReveal(state, l.HintBudget, len(failing) > 0) {
		h.jsonResponse(w, http.StatusOK, CoachResponse{
			Revealed: false,
			Reason:   refusalReason(l, state, len(failing) > 0),
			Budget:   state,
			Run:      summary,
		})
		return
	}

	tier := state.NextTier(l.HintBudget)
	payload, proof := h.engine.Grade(l, req.Source, failing, tier)

	newState, err := h.controller.ApplyReveal(r.Context(), scope, loopID, state, proof)
	if err != nil {
		slog.Error("failed to apply hint reveal", "loop_id", loopID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "failed to update hint budget")
		return
	}

	h.publishHintRevealed(r, loopID, scope, newState)

	h.jsonResponse(w, http.StatusOK, CoachResponse{
		Revealed: true,
		Coaching: &payload,
		Budget:   newState,
		Run:      summary,
	})
}

// Reset restores the full budget for one (scope, loop) pair. Registered
// only in debug mode.
func (h *CoachHandler) Reset(w http.ResponseWriter, r *http.Request) {
	loopID := r.PathValue("id")
	scope := middleware.GetScope(r.Context())

	l, err := h.registry.Get(loopID)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "loop not found")
		return
	}

	state, err := h.controller.Reset(r.Context(), scope, loopID, l.HintBudget)
	if err != nil {
		slog.Error("failed to reset budget state", "loop_id", loopID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "failed to reset hint budget")
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]any{"budget": state})
}

// refusalReason names why a reveal was declined, in check order
func refusalReason(l *domain.Loop, state domain.BudgetState, hasFailingTests bool) string {
	switch {
	case !l.CoachingEnabled():
		return "coaching is disabled for this loop"
	case !hasFailingTests:
		return "all tests are passing, nothing to coach"
	case state.TokensRemaining <= 0:
		return "hint budget exhausted"
	case state.HighestTierUnlocked >= domain.MaxTierFor(l.HintBudget):
		return "highest hint tier already unlocked"
	default:
		return "hint not available"
	}
}

func (h *CoachHandler) publishHintRevealed(r *http.Request, loopID, scope string, state domain.BudgetState) {
	if h.publisher == nil {
		return
	}

	ev := &events.HintRevealed{
		LoopID:          loopID,
		Scope:           scope,
		Tier:            state.HighestTierUnlocked,
		TokensRemaining: state.TokensRemaining,
	}

	if err := h.publisher.PublishHintRevealed(r.Context(), ev); err != nil {
		slog.Warn("failed to publish hint revealed event", "loop_id", loopID, "error", err)
	}
}

func (h *CoachHandler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (h *CoachHandler) jsonError(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
