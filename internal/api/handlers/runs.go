package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/looplab/internal/api/middleware"
	"github.com/felixgeelhaar/looplab/internal/domain"
	"github.com/felixgeelhaar/looplab/internal/events"
	"github.com/felixgeelhaar/looplab/internal/report"
	"github.com/felixgeelhaar/looplab/internal/sandbox"
)

// RunHandler handles sandbox run endpoints
type RunHandler struct {
	runner    *sandbox.Runner
	publisher *events.Publisher // nil when events are disabled
}

// NewRunHandler creates a new run handler
func NewRunHandler(runner *sandbox.Runner, publisher *events.Publisher) *RunHandler {
	return &RunHandler{runner: runner, publisher: publisher}
}

// TriggerRunRequest is the request body for a sandbox run
type TriggerRunRequest struct {
	Source string `json:"source"`
}

// RunResponse is the graded outcome of one sandbox run
type RunResponse struct {
	Passed     bool                `json:"passed"`
	ExitCode   int                 `json:"exitCode"`
	TimedOut   bool                `json:"timedOut"`
	Stdout     string              `json:"stdout"`
	Stderr     string              `json:"stderr"`
	DurationMs int64               `json:"durationMs"`
	Tests      []domain.TestRecord `json:"tests"`
	RawReport  json.RawMessage     `json:"rawReport,omitempty"`
}

// TriggerRun grades a submission against a loop's hidden tests
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	loopID := r.PathValue("id")

	var req TriggerRunRequest
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
			slog.Error("sandbox run failed",
				"loop_id", loopID,
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			h.jsonError(w, http.StatusInternalServerError, "sandbox execution failed")
		}
		return
	}

	tests := report.Normalize(result.RawReport)

	h.publishRunCompleted(r, loopID, result, tests)

	h.jsonResponse(w, http.StatusOK, RunResponse{
		Passed:     result.Passed(),
		ExitCode:   result.ExitCode,
		TimedOut:   result.ExitCode == sandbox.TimeoutExitCode,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		DurationMs: result.Duration.Milliseconds(),
		Tests:      tests,
		RawReport:  result.RawReport,
	})
}

// publishRunCompleted emits the run event, best effort
func (h *RunHandler) publishRunCompleted(r *http.Request, loopID string, result *domain.SandboxResult, tests []domain.TestRecord) {
	if h.publisher == nil {
		return
	}

	ev := &events.RunCompleted{
		LoopID:       loopID,
		Scope:        middleware.GetScope(r.Context()),
		Passed:       result.Passed(),
		ExitCode:     result.ExitCode,
		TimedOut:     result.ExitCode == sandbox.TimeoutExitCode,
		FailingTests: len(domain.FailingTests(tests)),
		Duration:     result.Duration,
	}

	if err := h.publisher.PublishRunCompleted(r.Context(), ev); err != nil {
		slog.Warn("failed to publish run completed event", "loop_id", loopID, "error", err)
	}
}

func (h *RunHandler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (h *RunHandler) jsonError(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
