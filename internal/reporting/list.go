package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"snektest/internal/suite"
	"snektest/pkg/textutil"
)

// maxKeyLen bounds the parameter key column.
const maxKeyLen = 40

// PrintCollected renders the collected units as a table.
func PrintCollected(out io.Writer, items []suite.Item) {
	if len(items) == 0 {
		fmt.Fprintf(out, "%s %s\n", text.FgYellow.Sprint("📋"), text.FgYellow.Sprint("No tests collected"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PATH"),
		text.FgHiCyan.Sprint("TEST"),
		text.FgHiCyan.Sprint("PARAMS"),
		text.FgHiCyan.Sprint("KIND"),
		text.FgHiCyan.Sprint("MARKERS"),
	})
	for _, item := range items {
		t.AppendRow(table.Row{
			item.Path(),
			text.Bold.Sprint(item.Test.Name),
			stringOrDefault(textutil.OneLine(item.Combination.Key(), maxKeyLen), "-"),
			item.Test.Kind.String(),
			stringOrDefault(strings.Join(item.Test.Markers, ","), "-"),
		})
	}
	t.Render()

	fmt.Fprintf(out, "%s %s\n", text.FgHiBlue.Sprint("📊"), fmt.Sprintf("%d tests collected", len(items)))
}
