package cli

import (
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/blimu-dev/svc-gen/pkg/generator"
)

// summaryRows turns results into table rows, header first.
func summaryRows(results []generator.Result) [][]string {
	rows := [][]string{{"Declaration", "Kind", "Outcome", "Files", "Time", "Error"}}
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		rows = append(rows, []string{
			r.Decl,
			string(r.Kind),
			r.Outcome.String(),
			strconv.Itoa(r.Report.Artifacts()),
			r.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}
	return rows
}

// printSummary renders the outcome of a run as a table followed by a status line.
func printSummary(w io.Writer, results []generator.Result) error {
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(summaryRows(results)).Render(); err != nil {
		return err
	}
	if failed := len(generator.Failures(results)); failed > 0 {
		pterm.Error.WithWriter(w).Printfln("%d of %d declarations failed", failed, len(results))
		return nil
	}
	pterm.Success.WithWriter(w).Printfln("Generated %d declarations", len(results))
	return nil
}

// utility
func absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, _ := filepath.Abs(p)
	return abs
}
