package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"snektest/internal/results"
	"snektest/pkg/textutil"
)

const (
	maxOutputChars = 4000
	maxWarningLen  = 200
)

// consoleReporter writes human readable progress and a final report.
type consoleReporter struct {
	out     io.Writer
	verbose bool
}

// NewConsoleReporter creates the default reporter. Colours follow the
// go-pretty global switch (text.DisableColors).
func NewConsoleReporter(out io.Writer, verbose bool) Reporter {
	return &consoleReporter{out: out, verbose: verbose}
}

func (r *consoleReporter) RunStarted(info RunInfo) {
	fmt.Fprintf(r.out, "🐍 snektest: running %s\n", strings.Join(info.Filters, " "))

	if r.verbose {
		fmt.Fprintf(r.out, "\n⚙️  Configuration:\n")
		fmt.Fprintf(r.out, "   • Capture output: %t\n", info.CaptureOutput)
		fmt.Fprintf(r.out, "   • Debug on failure: %t\n", info.PDBOnFailure)
		fmt.Fprintf(r.out, "   • Marker: %s\n", stringOrDefault(info.Mark, "any"))
		if info.ReportPath != "" {
			fmt.Fprintf(r.out, "   • Report path: %s\n", info.ReportPath)
		}
	}
	fmt.Fprintln(r.out)
}

func (r *consoleReporter) TestStarted(name string) {
	fmt.Fprintf(r.out, "%s ... ", name)
}

func (r *consoleReporter) TestFinished(res results.TestResult) {
	fmt.Fprintf(r.out, "%s %s", resultSymbol(res.Outcome.Status), statusText(res.Outcome.Status))
	if r.verbose {
		fmt.Fprintf(r.out, " (%s)", res.Duration.Round(time.Millisecond))
	}
	if n := len(res.FixtureTeardownFailures); n > 0 {
		fmt.Fprintf(r.out, " %s", text.FgYellow.Sprintf("⚠️  %d fixture teardown failed", n))
	}
	fmt.Fprintln(r.out)
}

func (r *consoleReporter) RunFinished(s *results.RunSummary) {
	if s.Counts.HasFailures() {
		r.printFailures(s)
	}
	r.printWarnings(s)
	r.printSummary(s)
}

func (r *consoleReporter) printFailures(s *results.RunSummary) {
	fmt.Fprintf(r.out, "\n%s\n", text.Colors{text.Bold, text.FgRed}.Sprint(banner("FAILURES")))

	for _, res := range s.Results {
		if !res.HasFailure() {
			continue
		}
		fmt.Fprintf(r.out, "\n%s\n", text.FgRed.Sprint(heading(res.Name)))

		switch res.Outcome.Status {
		case results.StatusFailed:
			fmt.Fprintf(r.out, "%s\n", res.Outcome.Detail)
		case results.StatusError:
			fmt.Fprintf(r.out, "%s\n", res.Outcome.Err)
		}
		if trace := res.Outcome.Trace.Narrow(res.File); len(trace) > 0 {
			fmt.Fprintf(r.out, "\nTraceback:\n%s", trace)
		}

		for _, f := range res.FixtureTeardownFailures {
			r.printTeardownFailure(f, res.File)
		}
		if res.Output != "" {
			title := "Captured output"
			if res.OutputTruncated {
				title += " (earlier output dropped)"
			}
			fmt.Fprintf(r.out, "\n--- %s ---\n%s", title, trimOutput(res.Output, maxOutputChars))
			if !strings.HasSuffix(res.Output, "\n") {
				fmt.Fprintln(r.out)
			}
		}
	}

	if len(s.SessionTeardownFailures) > 0 {
		fmt.Fprintf(r.out, "\n%s\n", text.FgRed.Sprint(heading("session fixtures")))
		for _, f := range s.SessionTeardownFailures {
			r.printTeardownFailure(f, "")
		}
	}
	if s.SessionOutput != "" {
		fmt.Fprintf(r.out, "\n--- Session teardown output ---\n%s", trimOutput(s.SessionOutput, maxOutputChars))
	}
}

func (r *consoleReporter) printTeardownFailure(f results.TeardownFailure, file string) {
	label := "Teardown failed"
	if f.Violation {
		label = "Teardown protocol violation"
	}
	fmt.Fprintf(r.out, "\n%s: %s\n", text.FgYellow.Sprint(label), f)

	trace := f.Trace
	if file != "" {
		trace = trace.Narrow(file)
	}
	if len(trace) > 0 {
		fmt.Fprintf(r.out, "%s", trace)
	}
}

func (r *consoleReporter) printWarnings(s *results.RunSummary) {
	var lines []string
	for _, res := range s.Results {
		for _, w := range res.Warnings {
			lines = append(lines, fmt.Sprintf("%s: %s", res.Name, textutil.OneLine(w, maxWarningLen)))
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(r.out, "\n%s\n", text.FgYellow.Sprint(banner("WARNINGS")))
	for _, line := range lines {
		fmt.Fprintln(r.out, line)
	}
}

func (r *consoleReporter) printSummary(s *results.RunSummary) {
	fmt.Fprintf(r.out, "\n%s\n", text.Bold.Sprint(banner("SUMMARY")))

	if r.verbose {
		t := table.NewWriter()
		t.SetOutputMirror(r.out)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{text.FgHiCyan.Sprint("OUTCOME"), text.FgHiCyan.Sprint("COUNT")})
		t.AppendRows([]table.Row{
			{"passed", s.Counts.Passed},
			{"failed", s.Counts.Failed},
			{"error", s.Counts.Errors},
			{"fixture teardown failed", s.Counts.FixtureTeardownFailed},
			{"session fixture teardown failed", s.Counts.SessionTeardownFailed},
		})
		t.Render()
	}

	switch {
	case s.Cancelled:
		fmt.Fprintf(r.out, "%s\n", text.FgYellow.Sprint("⏹️  Run interrupted"))
	case s.DebuggerStopped:
		fmt.Fprintf(r.out, "%s\n", text.FgYellow.Sprint("⏹️  Run stopped after debugging the first failure"))
	}

	line := StatusLine(s)
	if s.Counts.HasFailures() {
		fmt.Fprintf(r.out, "💔 %s\n", text.FgRed.Sprint(line))
	} else {
		fmt.Fprintf(r.out, "🎉 %s\n", text.FgGreen.Sprint(line))
	}
}

// StatusLine renders the one line summary of a run, for example
// "1 failed, 2 passed in 0.31s".
func StatusLine(s *results.RunSummary) string {
	var parts []string
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(s.Counts.Failed, "failed")
	add(s.Counts.Errors, "error")
	add(s.Counts.FixtureTeardownFailed, "fixture teardown failed")
	add(s.Counts.SessionTeardownFailed, "session fixture teardown failed")
	parts = append(parts, fmt.Sprintf("%d passed", s.Counts.Passed))
	return fmt.Sprintf("%s in %.2fs", strings.Join(parts, ", "), s.Duration.Seconds())
}

func resultSymbol(status results.Status) string {
	switch status {
	case results.StatusPassed:
		return "✅"
	case results.StatusFailed:
		return "❌"
	case results.StatusError:
		return "💥"
	default:
		return "❓"
	}
}

func statusText(status results.Status) string {
	switch status {
	case results.StatusPassed:
		return text.FgGreen.Sprint("PASSED")
	case results.StatusFailed:
		return text.FgRed.Sprint("FAILED")
	default:
		return text.FgRed.Sprint("ERROR")
	}
}

func banner(title string) string {
	return fmt.Sprintf("%s %s %s", strings.Repeat("=", 20), title, strings.Repeat("=", 20))
}

func heading(title string) string {
	return fmt.Sprintf("%s %s %s", strings.Repeat("_", 10), title, strings.Repeat("_", 10))
}

// trimOutput keeps the tail of long output, cut on a rune boundary.
func trimOutput(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	cut := len(s) - maxChars
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "... (truncated)\n" + s[cut:]
}

func stringOrDefault(s, defaultValue string) string {
	if s == "" {
		return defaultValue
	}
	return s
}
