package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/acarl005/stripansi"

	"snektest/internal/results"
	"snektest/pkg/logging"
)

// DefaultReportName names report files after the moment the run finished.
const DefaultReportName = `snektest-report-{{ now | date "20060102-150405" }}.json`

// DetailedReport is the content of a report file.
type DetailedReport struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  float64        `json:"duration"`
	Counts    results.Counts `json:"counts"`
	Cancelled bool           `json:"cancelled,omitempty"`

	Tests                   []DetailedTest    `json:"tests"`
	SessionTeardownFailures []DetailedFailure `json:"session_teardown_failures,omitempty"`
	SessionOutput           string            `json:"session_output,omitempty"`
}

// DetailedTest is one test entry of a report file.
type DetailedTest struct {
	Name     string         `json:"name"`
	File     string         `json:"file"`
	Markers  []string       `json:"markers"`
	Status   results.Status `json:"status"`
	Duration float64        `json:"duration"`
	Error    string         `json:"error,omitempty"`
	Detail   string         `json:"detail,omitempty"`

	Traceback        results.Traceback `json:"traceback,omitempty"`
	Output           string            `json:"output,omitempty"`
	OutputTruncated  bool              `json:"output_truncated,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
	TeardownFailures []DetailedFailure `json:"teardown_failures,omitempty"`
}

// DetailedFailure is a fixture teardown failure in a report file.
type DetailedFailure struct {
	Fixture   string            `json:"fixture"`
	Error     string            `json:"error"`
	Violation bool              `json:"violation,omitempty"`
	Traceback results.Traceback `json:"traceback,omitempty"`
}

// ReportFileReporter saves a detailed JSON report when the run ends.
type ReportFileReporter struct {
	dir  string
	name *template.Template

	// path is the file written by the last run.
	path string
}

// NewReportFileReporter creates a reporter writing into dir. The file name
// is a text/template with the sprig functions and the summary as data.
func NewReportFileReporter(dir, nameTemplate string) (*ReportFileReporter, error) {
	if nameTemplate == "" {
		nameTemplate = DefaultReportName
	}
	tmpl, err := template.New("report-name").Funcs(sprig.TxtFuncMap()).Parse(nameTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid report name template: %w", err)
	}
	return &ReportFileReporter{dir: dir, name: tmpl}, nil
}

func (r *ReportFileReporter) RunStarted(RunInfo)              {}
func (r *ReportFileReporter) TestStarted(string)              {}
func (r *ReportFileReporter) TestFinished(results.TestResult) {}

func (r *ReportFileReporter) RunFinished(s *results.RunSummary) {
	path, err := r.save(s)
	if err != nil {
		logging.Error("Reporter", err, "failed to save detailed report")
		return
	}
	r.path = path
	logging.Info("Reporter", "Detailed report saved to %s", path)
}

// Path returns the report written by the last run, if any.
func (r *ReportFileReporter) Path() string {
	return r.path
}

func (r *ReportFileReporter) save(s *results.RunSummary) (string, error) {
	var name bytes.Buffer
	if err := r.name.Execute(&name, s); err != nil {
		return "", fmt.Errorf("failed to render report name: %w", err)
	}
	if name.Len() == 0 {
		return "", fmt.Errorf("report name template rendered an empty name")
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(NewDetailedReport(s), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(r.dir, filepath.Base(name.String()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// NewDetailedReport builds the report file content of s. Captured output is
// stripped of terminal escape sequences.
func NewDetailedReport(s *results.RunSummary) DetailedReport {
	report := DetailedReport{
		RunID:         s.RunID,
		StartedAt:     s.StartedAt,
		Duration:      s.Duration.Seconds(),
		Counts:        s.Counts,
		Cancelled:     s.Cancelled,
		Tests:         make([]DetailedTest, 0, len(s.Results)),
		SessionOutput: stripansi.Strip(s.SessionOutput),
	}
	for _, res := range s.Results {
		markers := res.Markers
		if markers == nil {
			markers = []string{}
		}
		test := DetailedTest{
			Name:      res.Name,
			File:      res.File,
			Markers:   markers,
			Status:    res.Outcome.Status,
			Duration:  res.Duration.Seconds(),
			Detail:    stripansi.Strip(res.Outcome.Detail),
			Traceback: res.Outcome.Trace,
			Output:    stripansi.Strip(res.Output),
			Warnings:  res.Warnings,

			OutputTruncated: res.OutputTruncated,
		}
		if res.Outcome.Err != nil {
			test.Error = stripansi.Strip(res.Outcome.Err.Error())
		}
		test.TeardownFailures = detailedFailures(res.FixtureTeardownFailures)
		report.Tests = append(report.Tests, test)
	}
	report.SessionTeardownFailures = detailedFailures(s.SessionTeardownFailures)
	return report
}

func detailedFailures(failures []results.TeardownFailure) []DetailedFailure {
	var out []DetailedFailure
	for _, f := range failures {
		msg := ""
		if f.Err != nil {
			msg = stripansi.Strip(f.Err.Error())
		}
		out = append(out, DetailedFailure{
			Fixture:   f.Fixture,
			Error:     msg,
			Violation: f.Violation,
			Traceback: f.Trace,
		})
	}
	return out
}
