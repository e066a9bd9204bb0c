package reporting

import (
	"io"

	"snektest/internal/results"
	"snektest/pkg/logging"
)

// jsonReporter stays silent during the run and prints the machine-readable
// summary at the end.
type jsonReporter struct {
	out io.Writer
}

// NewJSONReporter creates a reporter that writes only the JSON summary.
func NewJSONReporter(out io.Writer) Reporter {
	return &jsonReporter{out: out}
}

func (r *jsonReporter) RunStarted(RunInfo)              {}
func (r *jsonReporter) TestStarted(string)              {}
func (r *jsonReporter) TestFinished(results.TestResult) {}

func (r *jsonReporter) RunFinished(s *results.RunSummary) {
	if err := results.WriteJSON(r.out, s); err != nil {
		logging.Error("Reporter", err, "failed to write JSON summary")
	}
}
