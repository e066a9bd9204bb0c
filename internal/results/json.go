package results

import (
	"encoding/json"
	"io"
)

// JSONTest is one entry of the tests list of the machine-readable summary.
type JSONTest struct {
	Name     string   `json:"name"`
	Duration float64  `json:"duration"`
	Markers  []string `json:"markers"`
	Status   Status   `json:"status"`
}

// JSONSummary is the machine-readable summary printed with --json.
type JSONSummary struct {
	Counts
	Tests []JSONTest `json:"tests"`
}

// NewJSONSummary builds the machine-readable view of s. Durations are in
// seconds.
func NewJSONSummary(s *RunSummary) JSONSummary {
	out := JSONSummary{Counts: s.Counts, Tests: make([]JSONTest, 0, len(s.Results))}
	for _, r := range s.Results {
		markers := r.Markers
		if markers == nil {
			markers = []string{}
		}
		out.Tests = append(out.Tests, JSONTest{
			Name:     r.Name,
			Duration: r.Duration.Seconds(),
			Markers:  markers,
			Status:   r.Outcome.Status,
		})
	}
	return out
}

// WriteJSON writes the machine-readable summary of s to w.
func WriteJSON(w io.Writer, s *RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewJSONSummary(s))
}
