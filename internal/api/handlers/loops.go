package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/looplab/internal/domain"
	"github.com/felixgeelhaar/looplab/internal/loop"
)

// LoopHandler handles loop metadata endpoints
type LoopHandler struct {
	registry *loop.Registry
}

// NewLoopHandler creates a new loop handler
func NewLoopHandler(registry *loop.Registry) *LoopHandler {
	return &LoopHandler{registry: registry}
}

// LoopResponse is the learner-facing view of a loop. Test source is
// server-owned and never leaves this process.
type LoopResponse struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	SpecLines       []string        `json:"specLines"`
	ExpectedExports []string        `json:"expectedExports"`
	HintBudget      int             `json:"hintBudget"`
	Docs            []domain.DocRef `json:"docs"`
	StarterCode     string          `json:"starterCode"`
}

func toLoopResponse(l *domain.Loop) LoopResponse {
	return LoopResponse{
		ID:              l.ID,
		Title:           l.Title,
		SpecLines:       l.SpecLines,
		ExpectedExports: l.ExpectedExports,
		HintBudget:      l.HintBudget,
		Docs:            l.DocRefs,
		StarterCode:     l.StarterCode,
	}
}

// List returns all loaded loops
func (h *LoopHandler) List(w http.ResponseWriter, r *http.Request) {
	loops := h.registry.List()

	resp := make([]LoopResponse, 0, len(loops))
	for _, l := range loops {
		resp = append(resp, toLoopResponse(l))
	}

	h.jsonResponse(w, http.StatusOK, map[string]any{
		"loops": resp,
		"count": len(resp),
	})
}

// Get returns one loop by id
func (h *LoopHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "loop not found")
		return
	}

	h.jsonResponse(w, http.StatusOK, toLoopResponse(l))
}

func (h *LoopHandler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (h *LoopHandler) jsonError(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
