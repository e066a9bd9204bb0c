// Package results holds the outcome taxonomy of a run and the aggregation
// of per-test results into a run summary.
package results

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"snektest/pkg/assert"
)

// Status is the classification of a test body's outcome.
type Status string

const (
	// StatusPassed means the body completed without error.
	StatusPassed Status = "passed"
	// StatusFailed means the body raised an assertion failure.
	StatusFailed Status = "failed"
	// StatusError means the body raised anything else.
	StatusError Status = "error"
)

// Outcome is the classified result of running a test body.
type Outcome struct {
	Status Status
	Err    error
	// Detail is the rendered assertion detail of a failed outcome.
	Detail string
	Trace  Traceback
}

// Classify maps the error returned by a test body to an outcome.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Status: StatusPassed}
	}
	var failure *assert.Failure
	if errors.As(err, &failure) {
		return Outcome{Status: StatusFailed, Err: err, Detail: failure.Detail(), Trace: TraceOf(err)}
	}
	return Outcome{Status: StatusError, Err: err, Trace: TraceOf(err)}
}

// TeardownFailure records a fixture whose teardown did not complete cleanly.
type TeardownFailure struct {
	Fixture string
	Err     error
	Trace   Traceback
	// Violation marks a fixture that suspended a second time.
	Violation bool
}

func (f TeardownFailure) String() string {
	if f.Violation {
		return fmt.Sprintf("fixture %s: protocol violation: %v", f.Fixture, f.Err)
	}
	return fmt.Sprintf("fixture %s: %v", f.Fixture, f.Err)
}

// TestResult is the record of one executed test unit.
type TestResult struct {
	Name     string
	File     string
	Markers  []string
	Duration time.Duration
	Outcome  Outcome
	// Output is the captured stdout of the body and its function fixtures.
	Output string
	// OutputTruncated is set when the head of Output was dropped.
	OutputTruncated bool
	Warnings        []string

	FixtureTeardownFailures []TeardownFailure
}

// HasFailure reports whether the result counts against the run in any way.
func (r TestResult) HasFailure() bool {
	return r.Outcome.Status != StatusPassed || len(r.FixtureTeardownFailures) > 0
}

// Counts are the totals of a run.
type Counts struct {
	Passed                int `json:"passed"`
	Failed                int `json:"failed"`
	Errors                int `json:"errors"`
	FixtureTeardownFailed int `json:"fixture_teardown_failed"`
	SessionTeardownFailed int `json:"session_teardown_failed"`
}

// Summarize computes the counts of a run.
func Summarize(results []TestResult, sessionFailures []TeardownFailure) Counts {
	var c Counts
	for _, r := range results {
		switch r.Outcome.Status {
		case StatusPassed:
			c.Passed++
		case StatusFailed:
			c.Failed++
		default:
			c.Errors++
		}
		c.FixtureTeardownFailed += len(r.FixtureTeardownFailures)
	}
	c.SessionTeardownFailed = len(sessionFailures)
	return c
}

// HasFailures decides a non-zero exit status.
func (c Counts) HasFailures() bool {
	return c.Failed > 0 || c.Errors > 0 || c.FixtureTeardownFailed > 0 || c.SessionTeardownFailed > 0
}

// RunSummary is the frozen outcome of a run.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Results                 []TestResult
	SessionTeardownFailures []TeardownFailure
	// SessionOutput is what session fixtures wrote while tearing down.
	SessionOutput string
	Counts        Counts

	// Cancelled is set when the run was interrupted before the queue drained.
	Cancelled bool
	// DebuggerStopped is set when debug-on-failure ended scheduling.
	DebuggerStopped bool
}

// NewRunSummary starts an empty summary with a fresh run id.
func NewRunSummary(start time.Time) *RunSummary {
	return &RunSummary{RunID: uuid.NewString(), StartedAt: start}
}

// Add appends a result in execution order.
func (s *RunSummary) Add(r TestResult) {
	s.Results = append(s.Results, r)
}

// Finish freezes the summary.
func (s *RunSummary) Finish(sessionFailures []TeardownFailure, end time.Time) {
	s.SessionTeardownFailures = sessionFailures
	s.Counts = Summarize(s.Results, sessionFailures)
	s.Duration = end.Sub(s.StartedAt)
}
