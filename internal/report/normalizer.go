// Package report normalizes heterogeneous test-reporter JSON into the
// uniform records the rest of the pipeline consumes.
package report

import (
	"encoding/json"
	"strings"

	"github.com/felixgeelhaar/looplab/internal/domain"
)

// Two reporter shapes express the same facts differently. The shape is
// detected structurally by which top-level field is present:
//
//	shape A: {"testResults": [{"name": file, "assertionResults": [...]}]}
//	         flat per-file assertion lists, state under "status" or "state"
//	shape B: {"files": [{"name": file, "tasks": [...]}]}
//	         per-file task trees of arbitrary depth; leaves of type "test"
//	         carry "state" on the node or inside a nested "result"
type rawReport struct {
	TestResults []flatFile `json:"testResults"`
	Files       []taskNode `json:"files"`
}

type flatFile struct {
	Name             string          `json:"name"`
	AssertionResults []flatAssertion `json:"assertionResults"`
}

type flatAssertion struct {
	Title           string   `json:"title"`
	FullName        string   `json:"fullName"`
	Name            string   `json:"name"`
	State           string   `json:"state"`
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	FailureMessages []string `json:"failureMessages"`
}

type taskNode struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	State  string      `json:"state"`
	Result *taskResult `json:"result"`
	Tasks  []taskNode  `json:"tasks"`
}

type taskResult struct {
	State   string      `json:"state"`
	Message string      `json:"message"`
	Errors  []taskError `json:"errors"`
}

type taskError struct {
	Message string `json:"message"`
}

// Normalize parses a raw report into one record per assertion. A nil,
// empty, malformed or unrecognized report yields an empty list; this
// function never fails.
func Normalize(raw json.RawMessage) []domain.TestRecord {
	records := []domain.TestRecord{}
	if len(raw) == 0 {
		return records
	}

	var report rawReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return records
	}

	switch {
	case len(report.TestResults) > 0:
		for _, file := range report.TestResults {
			records = append(records, normalizeFlatFile(file)...)
		}
	case len(report.Files) > 0:
		for _, file := range report.Files {
			for _, task := range file.Tasks {
				records = walkTask(task, file.Name, records)
			}
		}
	}

	return records
}

func normalizeFlatFile(file flatFile) []domain.TestRecord {
	records := make([]domain.TestRecord, 0, len(file.AssertionResults))
	for _, a := range file.AssertionResults {
		state := a.State
		if state == "" {
			state = a.Status
		}

		errMsg := a.Message
		if len(a.FailureMessages) > 0 {
			errMsg = strings.Join(a.FailureMessages, "\n")
		}

		records = append(records, domain.TestRecord{
			Name:  flatAssertionName(a),
			State: domain.ParseTestState(state),
			File:  file.Name,
			Error: errMsg,
		})
	}
	return records
}

func flatAssertionName(a flatAssertion) string {
	if a.Title != "" {
		return a.Title
	}
	if a.FullName != "" {
		return a.FullName
	}
	return a.Name
}

// walkTask descends a shape-B task tree. Suites nest arbitrarily; only
// leaf nodes of type "test" produce records.
func walkTask(node taskNode, file string, records []domain.TestRecord) []domain.TestRecord {
	if node.Type == "test" {
		state := node.State
		var errMsg string
		if node.Result != nil {
			if state == "" {
				state = node.Result.State
			}
			errMsg = taskErrorMessage(node.Result)
		}
		return append(records, domain.TestRecord{
			Name:  node.Name,
			State: domain.ParseTestState(state),
			File:  file,
			Error: errMsg,
		})
	}

	for _, child := range node.Tasks {
		records = walkTask(child, file, records)
	}
	return records
}

func taskErrorMessage(result *taskResult) string {
	if len(result.Errors) > 0 {
		messages := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			messages = append(messages, e.Message)
		}
		return strings.Join(messages, "\n")
	}
	return result.Message
}
