package serialize

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/golangoscal/metaschema/model"
)

// WriteReport prints diagnostics as an aligned table, one per line,
// followed by per-severity totals.
func WriteReport(w io.Writer, diags []model.Diagnostic) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "SEVERITY\tCODE\tDOCUMENT\tPATH\tMESSAGE"); err != nil {
		return err
	}
	counts := make(map[model.Severity]int)
	for _, d := range diags {
		counts[d.Severity]++
		path := d.Path
		if path == "" {
			path = "-"
		}
		doc := d.Document
		if doc == "" {
			doc = "-"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Severity, d.Code, doc, path, d.Message); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d diagnostics (%d errors, %d warnings, %d info)\n",
		len(diags), countAtMost(counts, model.SeverityError), counts[model.SeverityWarning]+counts[model.SeverityMinor]+counts[model.SeverityStyle], counts[model.SeverityInfo])
	return err
}

func countAtMost(counts map[model.Severity]int, sev model.Severity) int {
	n := 0
	for s, c := range counts {
		if s <= sev {
			n += c
		}
	}
	return n
}
