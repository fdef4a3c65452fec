package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/looplab/internal/api/handlers"
	"github.com/felixgeelhaar/looplab/internal/coach"
	"github.com/felixgeelhaar/looplab/internal/domain"
	"github.com/felixgeelhaar/looplab/internal/loop"
	"github.com/felixgeelhaar/looplab/internal/sandbox"
	"github.com/felixgeelhaar/looplab/internal/storage/memory"
)

const loopYAML = `title: Filter adults
spec:
  - Export a function toFilter(people)
  - Keep only entries whose age is at least 18
exports:
  - toFilter
hint_budget: 3
docs:
  - label: Array.prototype.filter
    url: https://developer.mozilla.org/docs/Web/JavaScript/Reference/Global_Objects/Array/filter
  - label: Comparison operators
    url: https://developer.mozilla.org/docs/Web/JavaScript/Reference/Operators
starter: |
  export const toFilter = (people) => {
    // your code here
  };
tests: |
  import { toFilter } from './loop'
`

const failingReport = `{"testResults":[{"name":"/workspace/loop.test.ts","assertionResults":[
  {"title":"keeps adults","status":"passed"},
  {"title":"age exactly 18 is included","status":"failed","failureMessages":["expected length 1, got 0"]}
]}]}`

const passingReport = `{"testResults":[{"name":"/workspace/loop.test.ts","assertionResults":[
  {"title":"keeps adults","status":"passed"},
  {"title":"age exactly 18 is included","status":"passed"}
]}]}`

// stubProvider plays the container role: fixed exit code, optional
// report written into the workspace.
type stubProvider struct {
	exitCode   int
	reportJSON string
	err        error
}

func (s *stubProvider) Execute(ctx context.Context, req sandbox.ExecRequest) (*sandbox.ExecResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.reportJSON != "" {
		path := filepath.Join(req.WorkspaceDir, sandbox.ReportFileName)
		if err := os.WriteFile(path, []byte(s.reportJSON), 0o644); err != nil {
			return nil, err
		}
	}
	return &sandbox.ExecResult{ExitCode: s.exitCode, Stdout: "run output", Duration: 100 * time.Millisecond}, nil
}

func (s *stubProvider) Close() error { return nil }

type fixture struct {
	registry   *loop.Registry
	controller *coach.Controller
	mux        *http.ServeMux
}

func newFixture(t *testing.T, provider sandbox.ExecProvider) *fixture {
	t.Helper()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "ts-v1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ts-v1", "filter-adults.yaml"), []byte(loopYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := loop.NewRegistry(loop.NewLoader(dir))
	if err := registry.Load(); err != nil {
		t.Fatalf("load loops: %v", err)
	}

	runner := sandbox.NewRunner(registry, provider, sandbox.DefaultConfig())
	controller := coach.NewController(memory.NewBudgetStore())

	loopHandler := handlers.NewLoopHandler(registry)
	runHandler := handlers.NewRunHandler(runner, nil)
	coachHandler := handlers.NewCoachHandler(registry, runner, controller, coach.NewEngine(), nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/loops", loopHandler.List)
	mux.HandleFunc("GET /api/v1/loops/{id}", loopHandler.Get)
	mux.HandleFunc("POST /api/v1/loops/{id}/run", runHandler.TriggerRun)
	mux.HandleFunc("POST /api/v1/loops/{id}/coach", coachHandler.Coach)
	mux.HandleFunc("POST /api/v1/loops/{id}/coach/reset", coachHandler.Reset)

	return &fixture{registry: registry, controller: controller, mux: mux}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// Loop id segments are URL-escaped in paths
const loopPath = "/api/v1/loops/ts-v1%2Ffilter-adults"

func TestLoopHandler_List(t *testing.T) {
	f := newFixture(t, &stubProvider{})

	rec := f.do(t, http.MethodGet, "/api/v1/loops", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Loops []handlers.LoopResponse `json:"loops"`
		Count int                     `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Loops) != 1 {
		t.Fatalf("count = %d, loops = %d, want 1", resp.Count, len(resp.Loops))
	}
	if resp.Loops[0].ID != "ts-v1/filter-adults" {
		t.Errorf("id = %q", resp.Loops[0].ID)
	}
}

func TestLoopHandler_Get(t *testing.T) {
	f := newFixture(t, &stubProvider{})

	rec := f.do(t, http.MethodGet, loopPath, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp handlers.LoopResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.HintBudget != 3 {
		t.Errorf("hintBudget = %d, want 3", resp.HintBudget)
	}

	// Hidden test source must never appear in the metadata view
	if strings.Contains(rec.Body.String(), "import { toFilter }") {
		t.Error("response leaked the hidden test source")
	}
}

func TestLoopHandler_Get_Unknown(t *testing.T) {
	f := newFixture(t, &stubProvider{})

	rec := f.do(t, http.MethodGet, "/api/v1/loops/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRunHandler_TriggerRun(t *testing.T) {
	f := newFixture(t, &stubProvider{exitCode: 1, reportJSON: failingReport})

	rec := f.do(t, http.MethodPost, loopPath+"/run", `{"source":"export const toFilter = (p) => p.filter(x => x.age > 18);"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Passed {
		t.Error("exit code 1 must not pass")
	}
	if len(resp.Tests) != 2 {
		t.Fatalf("tests = %d, want 2", len(resp.Tests))
	}
	if resp.Tests[1].State != domain.TestStateFail {
		t.Errorf("second test state = %q, want fail", resp.Tests[1].State)
	}
	if resp.RawReport == nil {
		t.Error("raw report should be passed through")
	}
}

func TestRunHandler_TriggerRun_Errors(t *testing.T) {
	tests := []struct {
		name       string
		provider   sandbox.ExecProvider
		path       string
		body       string
		wantStatus int
	}{
		{"malformed body", &stubProvider{}, loopPath + "/run", `{"source":`, http.StatusBadRequest},
		{"empty source", &stubProvider{}, loopPath + "/run", `{"source":"  "}`, http.StatusBadRequest},
		{"unknown loop", &stubProvider{}, "/api/v1/loops/nope/run", `{"source":"x"}`, http.StatusNotFound},
		{"infra failure", &stubProvider{err: errors.New("daemon down")}, loopPath + "/run", `{"source":"export const toFilter = () => [];"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.provider)
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCoachHandler_RevealLadder(t *testing.T) {
	f := newFixture(t, &stubProvider{exitCode: 1, reportJSON: failingReport})

	body := `{"source":"export const toFilter = (p) => p.filter(x => x.age > 18);"}`

	for want := 1; want <= 3; want++ {
		rec := f.do(t, http.MethodPost, loopPath+"/coach", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("reveal %d: status = %d: %s", want, rec.Code, rec.Body.String())
		}

		var resp handlers.CoachResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Revealed {
			t.Fatalf("reveal %d refused: %s", want, resp.Reason)
		}
		if resp.Coaching == nil || resp.Coaching.Tier != want {
			t.Fatalf("reveal %d: coaching = %+v", want, resp.Coaching)
		}
		if resp.Budget.TokensRemaining != 3-want {
			t.Errorf("reveal %d: tokens = %d, want %d", want, resp.Budget.TokensRemaining, 3-want)
		}
		if !resp.Coaching.Safety.NoFullSolution {
			t.Error("safety flag must always be set")
		}
	}

	// Fourth request is a refusal payload, not an error status
	rec := f.do(t, http.MethodPost, loopPath+"/coach", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("exhausted: status = %d, want 200", rec.Code)
	}
	var resp handlers.CoachResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Revealed {
		t.Error("exhausted budget must refuse")
	}
	if resp.Reason == "" {
		t.Error("refusal should carry a reason")
	}
	if resp.Budget.TokensRemaining != 0 {
		t.Errorf("tokens = %d, want 0", resp.Budget.TokensRemaining)
	}
}

func TestCoachHandler_RefusesWhenAllTestsPass(t *testing.T) {
	f := newFixture(t, &stubProvider{exitCode: 0, reportJSON: passingReport})

	rec := f.do(t, http.MethodPost, loopPath+"/coach", `{"source":"export const toFilter = (p) => p.filter(x => x.age >= 18);"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp handlers.CoachResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Revealed {
		t.Error("passing run must not reveal a hint")
	}
	if resp.Budget.TokensRemaining != 3 {
		t.Errorf("refusal must not spend tokens, remaining = %d", resp.Budget.TokensRemaining)
	}
	if !resp.Run.Passed {
		t.Error("run summary should report the pass")
	}
}

func TestCoachHandler_UnknownLoop(t *testing.T) {
	f := newFixture(t, &stubProvider{})

	rec := f.do(t, http.MethodPost, "/api/v1/loops/nope/coach", `{"source":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCoachHandler_Reset(t *testing.T) {
	f := newFixture(t, &stubProvider{exitCode: 1, reportJSON: failingReport})

	body := `{"source":"export const toFilter = (p) => p.filter(x => x.age > 18);"}`
	f.do(t, http.MethodPost, loopPath+"/coach", body)
	f.do(t, http.MethodPost, loopPath+"/coach", body)

	rec := f.do(t, http.MethodPost, loopPath+"/coach/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Budget domain.BudgetState `json:"budget"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Budget.TokensRemaining != 3 || resp.Budget.HighestTierUnlocked != 0 {
		t.Errorf("reset state = %+v", resp.Budget)
	}
}
