package domain

import "testing"

func TestParseTestState(t *testing.T) {
	tests := []struct {
		input string
		want  TestState
	}{
		{"pass", TestStatePass},
		{"passed", TestStatePass},
		{"PASSED", TestStatePass},
		{"fail", TestStateFail},
		{"Failed", TestStateFail},
		{"skip", TestStateSkip},
		{"skipped", TestStateSkip},
		{"todo", TestStateTodo},
		{"  pass  ", TestStatePass},
		{"", TestStateUnknown},
		{"only", TestStateUnknown},
		{"errored", TestStateUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseTestState(tc.input); got != tc.want {
				t.Errorf("ParseTestState(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestSandboxResult_Passed(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
	}{
		{"exit zero", 0, true},
		{"exit one", 1, false},
		{"killed", 137, false},
		{"timeout convention", 124, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &SandboxResult{ExitCode: tc.exitCode}
			if got := r.Passed(); got != tc.want {
				t.Errorf("Passed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSandboxResult_PassedIgnoresReport(t *testing.T) {
	// Verdict comes from the exit code alone; a missing report must not
	// change it either way.
	r := &SandboxResult{ExitCode: 1, RawReport: nil}
	if r.Passed() {
		t.Error("run with exit 1 and no report should not pass")
	}

	r = &SandboxResult{ExitCode: 0, RawReport: nil}
	if !r.Passed() {
		t.Error("run with exit 0 and no report should pass")
	}
}

func TestFailingTests(t *testing.T) {
	records := []TestRecord{
		{Name: "a", State: TestStatePass},
		{Name: "b", State: TestStateFail},
		{Name: "c", State: TestStateSkip},
		{Name: "d", State: TestStateFail},
		{Name: "e", State: TestStateUnknown},
	}

	failing := FailingTests(records)
	if len(failing) != 2 {
		t.Fatalf("expected 2 failing tests, got %d", len(failing))
	}
	if failing[0].Name != "b" || failing[1].Name != "d" {
		t.Errorf("failing order = %s, %s; want b, d", failing[0].Name, failing[1].Name)
	}

	if got := FailingTests(nil); len(got) != 0 {
		t.Errorf("FailingTests(nil) = %v, want empty", got)
	}
}
