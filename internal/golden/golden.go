// Package golden implements the golden-comparison harness
// (SPEC_FULL.md §C.5): a field-by-field diff of two metrics.ViewMetrics
// values that reports every differing key instead of collapsing to a
// single pass/fail boolean. No other package in this module calls it; it
// is exercised only by its own tests.
package golden

import (
	"fmt"
	"sort"

	"github.com/beetlebugorg/rasteroccl/internal/metrics"
)

// Diff is one differing field between a golden and current ViewMetrics.
type Diff struct {
	Field   string
	Golden  any
	Current any
}

func (d Diff) String() string {
	return fmt.Sprintf("%s: golden=%v current=%v", d.Field, d.Golden, d.Current)
}

// Options controls which fields Compare excludes. Timing is volatile by
// construction (wall-clock, never reproducible across runs) so it is
// excluded by default, mirroring original_source/tools/compare_golden.py's
// "exclude volatile columns (RunId, ElapsedSec, ConfigHash)" CSV rule.
type Options struct {
	IncludeTiming bool
}

// Compare returns every field where golden and current disagree, in a
// stable field order. An empty result means the two are equal under opts.
func Compare(golden, current metrics.ViewMetrics, opts Options) []Diff {
	var diffs []Diff
	add := func(field string, g, c any, eq bool) {
		if !eq {
			diffs = append(diffs, Diff{Field: field, Golden: g, Current: c})
		}
	}

	add("TotalCells", golden.TotalCells, current.TotalCells, golden.TotalCells == current.TotalCells)
	add("Empty", golden.Empty, current.Empty, golden.Empty == current.Empty)
	add("ModelOnly", golden.ModelOnly, current.ModelOnly, golden.ModelOnly == current.ModelOnly)
	add("AnnoOnly", golden.AnnoOnly, current.AnnoOnly, golden.AnnoOnly == current.AnnoOnly)
	add("Overlap", golden.Overlap, current.Overlap, golden.Overlap == current.Overlap)

	add("ExtCellsAny", golden.ExtCellsAny, current.ExtCellsAny, golden.ExtCellsAny == current.ExtCellsAny)
	add("ExtCellsOnly", golden.ExtCellsOnly, current.ExtCellsOnly, golden.ExtCellsOnly == current.ExtCellsOnly)
	add("ExtCellsDWG", golden.ExtCellsDWG, current.ExtCellsDWG, golden.ExtCellsDWG == current.ExtCellsDWG)
	add("ExtCellsRVT", golden.ExtCellsRVT, current.ExtCellsRVT, golden.ExtCellsRVT == current.ExtCellsRVT)

	add("AnnoCells.Text", golden.AnnoCells.Text, current.AnnoCells.Text, golden.AnnoCells.Text == current.AnnoCells.Text)
	add("AnnoCells.Tag", golden.AnnoCells.Tag, current.AnnoCells.Tag, golden.AnnoCells.Tag == current.AnnoCells.Tag)
	add("AnnoCells.Dim", golden.AnnoCells.Dim, current.AnnoCells.Dim, golden.AnnoCells.Dim == current.AnnoCells.Dim)
	add("AnnoCells.Detail", golden.AnnoCells.Detail, current.AnnoCells.Detail, golden.AnnoCells.Detail == current.AnnoCells.Detail)
	add("AnnoCells.Lines", golden.AnnoCells.Lines, current.AnnoCells.Lines, golden.AnnoCells.Lines == current.AnnoCells.Lines)
	add("AnnoCells.Region", golden.AnnoCells.Region, current.AnnoCells.Region, golden.AnnoCells.Region == current.AnnoCells.Region)
	add("AnnoCells.Other", golden.AnnoCells.Other, current.AnnoCells.Other, golden.AnnoCells.Other == current.AnnoCells.Other)

	add("CellSizeFt", golden.CellSizeFt, current.CellSizeFt, golden.CellSizeFt == current.CellSizeFt)
	add("CellSizeFtRequested", golden.CellSizeFtRequested, current.CellSizeFtRequested, golden.CellSizeFtRequested == current.CellSizeFtRequested)
	add("CellSizeFtEffective", golden.CellSizeFtEffective, current.CellSizeFtEffective, golden.CellSizeFtEffective == current.CellSizeFtEffective)
	add("ResolutionMode", golden.ResolutionMode, current.ResolutionMode, golden.ResolutionMode == current.ResolutionMode)
	add("CapTriggered", golden.CapTriggered, current.CapTriggered, golden.CapTriggered == current.CapTriggered)

	add("Strategy.Tiny", golden.Strategy.Tiny, current.Strategy.Tiny, golden.Strategy.Tiny == current.Strategy.Tiny)
	add("Strategy.Linear", golden.Strategy.Linear, current.Strategy.Linear, golden.Strategy.Linear == current.Strategy.Linear)
	add("Strategy.Areal", golden.Strategy.Areal, current.Strategy.Areal, golden.Strategy.Areal == current.Strategy.Areal)
	add("Strategy.ImportedCAD", golden.Strategy.ImportedCAD, current.Strategy.ImportedCAD, golden.Strategy.ImportedCAD == current.Strategy.ImportedCAD)
	add("Strategy.MissingBBox", golden.Strategy.MissingBBox, current.Strategy.MissingBBox, golden.Strategy.MissingBBox == current.Strategy.MissingBBox)
	diffs = append(diffs, compareStrategyBreakdown(golden.Strategy.ArealByFootprintStrategy, current.Strategy.ArealByFootprintStrategy)...)

	if opts.IncludeTiming {
		add("Timing.CollectMs", golden.Timing.CollectMs, current.Timing.CollectMs, golden.Timing.CollectMs == current.Timing.CollectMs)
		add("Timing.BasisMs", golden.Timing.BasisMs, current.Timing.BasisMs, golden.Timing.BasisMs == current.Timing.BasisMs)
		add("Timing.ModelPassMs", golden.Timing.ModelPassMs, current.Timing.ModelPassMs, golden.Timing.ModelPassMs == current.Timing.ModelPassMs)
		add("Timing.AnnotateMs", golden.Timing.AnnotateMs, current.Timing.AnnotateMs, golden.Timing.AnnotateMs == current.Timing.AnnotateMs)
		add("Timing.TotalMs", golden.Timing.TotalMs, current.Timing.TotalMs, golden.Timing.TotalMs == current.Timing.TotalMs)
	}

	return diffs
}

func compareStrategyBreakdown(golden, current map[string]int) []Diff {
	keys := map[string]bool{}
	for k := range golden {
		keys[k] = true
	}
	for k := range current {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var diffs []Diff
	for _, k := range sorted {
		if golden[k] != current[k] {
			diffs = append(diffs, Diff{
				Field:   fmt.Sprintf("Strategy.ArealByFootprintStrategy[%s]", k),
				Golden:  golden[k],
				Current: current[k],
			})
		}
	}
	return diffs
}

// Equal reports whether golden and current match under opts.
func Equal(golden, current metrics.ViewMetrics, opts Options) bool {
	return len(Compare(golden, current, opts)) == 0
}
