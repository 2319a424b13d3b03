package model

import (
	"encoding/json"
)

// TestStatus is the completion status of a run or step.
type TestStatus string

const (
	TestStatusUnknown  TestStatus = "UNKNOWN"
	TestStatusComplete TestStatus = "COMPLETE"
	TestStatusError    TestStatus = "ERROR"
	TestStatusSkipped  TestStatus = "SKIPPED"
)

// TestResult is the outcome of a completed run.
type TestResult string

const (
	TestResultNotApplicable TestResult = "NOT_APPLICABLE"
	TestResultPass          TestResult = "PASS"
	TestResultFail          TestResult = "FAIL"
)

// TestRunArtifact holds exactly one run-scoped payload.
type TestRunArtifact struct {
	TestRunStart *TestRunStart `json:"test_run_start,omitempty"`
	TestRunEnd   *TestRunEnd   `json:"test_run_end,omitempty"`
	Log          *Log          `json:"log,omitempty"`
	Tag          *Tag          `json:"tag,omitempty"`
	Error        *Error        `json:"error,omitempty"`
}

// TestRunStart is the first artifact of every run.
type TestRunStart struct {
	// Name of the diagnostic
	Name string `json:"name"`
	// Version of the diagnostic
	Version string `json:"version,omitempty"`
	// Parameters the diagnostic was started with, protobuf JSON encoded
	Parameters json.RawMessage `json:"parameters,omitempty"`
	// Devices under test registered for the run
	DutInfo []DutInfo `json:"dut_info,omitempty"`
}

// TestRunEnd is the last artifact of every run.
type TestRunEnd struct {
	Name   string     `json:"name"`
	Status TestStatus `json:"status"`
	Result TestResult `json:"result"`
}

// Tag is a free-form label attached to a run or file.
type Tag struct {
	Tag string `json:"tag"`
}
