package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TestState is the canonical state of one normalized test record
type TestState string

const (
	TestStatePass    TestState = "pass"
	TestStateFail    TestState = "fail"
	TestStateSkip    TestState = "skip"
	TestStateTodo    TestState = "todo"
	TestStateUnknown TestState = "unknown"
)

// ParseTestState maps heterogeneous report state strings onto the canonical
// set. Matching is case-insensitive; anything unrecognized maps to unknown,
// never to an error.
func ParseTestState(s string) TestState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "passed":
		return TestStatePass
	case "fail", "failed":
		return TestStateFail
	case "skip", "skipped":
		return TestStateSkip
	case "todo":
		return TestStateTodo
	default:
		return TestStateUnknown
	}
}

// TestRecord is the uniform representation of one assertion from a raw
// test report, independent of the reporter that produced it.
type TestRecord struct {
	Name  string    `json:"name"`
	State TestState `json:"state"`
	File  string    `json:"file,omitempty"`
	Error string    `json:"error,omitempty"`
}

// SandboxResult is the outcome of one sandboxed execution of learner code
// against a loop's hidden tests.
type SandboxResult struct {
	ExitCode  int             `json:"exitCode"`
	Stdout    string          `json:"stdout"`
	Stderr    string          `json:"stderr"`
	RawReport json.RawMessage `json:"rawReport,omitempty"` // nil if the run died before writing one
	Duration  time.Duration   `json:"-"`
}

// Passed reports the run verdict. The exit code is the sole pass signal;
// a missing or unparseable report never flips it.
func (r *SandboxResult) Passed() bool {
	return r.ExitCode == 0
}

// FailingTests filters records down to the fail state
func FailingTests(records []TestRecord) []TestRecord {
	var failing []TestRecord
	for _, rec := range records {
		if rec.State == TestStateFail {
			failing = append(failing, rec)
		}
	}
	return failing
}
