// Package reporting presents the results of a run: a console reporter with
// per-test progress, FAILURES and SUMMARY sections, a JSON reporter for
// machines, and a detailed report file.
package reporting

import (
	"snektest/internal/results"
)

// RunInfo describes a run about to start.
type RunInfo struct {
	Filters       []string
	CaptureOutput bool
	PDBOnFailure  bool
	Mark          string
	ReportPath    string
}

// Reporter receives the events of a run.
type Reporter interface {
	RunStarted(info RunInfo)
	TestStarted(name string)
	TestFinished(result results.TestResult)
	RunFinished(summary *results.RunSummary)
}

// multiReporter fans events out to several reporters in order.
type multiReporter []Reporter

// Multi combines reporters.
func Multi(reporters ...Reporter) Reporter {
	return multiReporter(reporters)
}

func (m multiReporter) RunStarted(info RunInfo) {
	for _, r := range m {
		r.RunStarted(info)
	}
}

func (m multiReporter) TestStarted(name string) {
	for _, r := range m {
		r.TestStarted(name)
	}
}

func (m multiReporter) TestFinished(result results.TestResult) {
	for _, r := range m {
		r.TestFinished(result)
	}
}

func (m multiReporter) RunFinished(summary *results.RunSummary) {
	for _, r := range m {
		r.RunFinished(summary)
	}
}
