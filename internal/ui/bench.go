package ui

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/nicokoch/fastcopy/internal/engine"
)

// RenderBenchTable writes one row per (case, copier) result. The speedup
// column compares each copier's mean time per op against the baseline
// copier of the same case.
func RenderBenchTable(w io.Writer, results []engine.BenchResult, baseline string) error {
	base := make(map[string]engine.BenchResult)
	for _, r := range results {
		if r.Copier == baseline && r.Skipped == "" {
			base[r.Case] = r
		}
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"CASE", "COPIER", "RUNS", "SIZE", "PER OP", "RATE", "SPEEDUP"}),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)

	for _, r := range results {
		row := []string{r.Case, r.Copier, "-", "-", "-", "-", r.Skipped}
		if r.Skipped == "" {
			row = []string{
				r.Case,
				r.Copier,
				FormatCount(int64(r.Iterations)),
				FormatBytes(r.Bytes),
				FormatLatency(r.PerOp()),
				FormatRate(r.BytesPerSec()),
				speedup(r, base[r.Case]),
			}
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func speedup(r, base engine.BenchResult) string {
	if base.Iterations == 0 || r.PerOp() <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fx", float64(base.PerOp())/float64(r.PerOp()))
}
