// Package policy is the single source of truth for which elements
// contribute to model occupancy (spec §4.2 "Policy (single source of
// truth)"). It answers ShouldInclude(element, source) and aggregates
// exclusion statistics by reason and category, grounded on
// original_source/revit/collection_policy.py and, in Go shape, on the
// teacher's QueryOptions/ParseOptions filter structs
// (pkg/s57/index.go, pkg/s57/options.go).
package policy

import "github.com/beetlebugorg/rasteroccl/internal/host"

// Reason explains why should_include returned false, or why it returned
// true (spec §4.2's "aggregated exclusion statistics by reason").
type Reason string

const (
	ReasonIncluded          Reason = "included"
	ReasonNotAllowlisted    Reason = "not_allowlisted"
	ReasonGloballyExcluded  Reason = "globally_excluded"
	ReasonLineFromLink      Reason = "line_from_link"
	ReasonLineFromDWG       Reason = "line_from_dwg"
	ReasonViewSpecificLine  Reason = "view_specific_line"
)

// Table holds the inclusion allowlist and the global exclusion list by
// category name (spec §4.2).
type Table struct {
	Allowlist map[string]bool
	Excluded  map[string]bool
}

// Default returns the category tables named explicitly in spec §4.2.
func Default() Table {
	return Table{
		Allowlist: setOf(
			"Walls", "Floors", "Roofs", "Doors", "Windows", "Columns",
			"Structural Columns", "Structural Framing", "Stairs", "Railings",
			"Ceilings", "Generic Models", "Mechanical Equipment",
			"Electrical Equipment", "Plumbing Fixtures", "Duct Curves",
			"Pipe Curves", "Lines",
		),
		Excluded: setOf(
			"Rooms", "Areas", "Spaces", "Grids", "Levels", "Section Heads",
			"Cameras", "Reveals", "Point Clouds", "Detail Components",
		),
	}
}

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Decision is the result of evaluating an element against the policy.
type Decision struct {
	Include bool
	Reason  Reason
	// CategoryName echoes the element's category for stats purposes.
	CategoryName string
}

// ShouldInclude implements spec §4.2's should_include(element, source_type).
//
// Per-source override: "Lines" only contributes from HOST; LINK and DWG
// never contribute lines, regardless of the allowlist.
func (t Table) ShouldInclude(elem host.Element, source host.SourceType) Decision {
	cat := elem.CategoryName

	if t.Excluded[cat] {
		return Decision{Include: false, Reason: ReasonGloballyExcluded, CategoryName: cat}
	}

	if cat == "Lines" {
		if source != host.SourceHost {
			r := ReasonLineFromLink
			if source == host.SourceDWG {
				r = ReasonLineFromDWG
			}
			return Decision{Include: false, Reason: r, CategoryName: cat}
		}
		if elem.ViewSpecific {
			return Decision{Include: false, Reason: ReasonViewSpecificLine, CategoryName: cat}
		}
	}

	if !t.Allowlist[cat] {
		return Decision{Include: false, Reason: ReasonNotAllowlisted, CategoryName: cat}
	}

	return Decision{Include: true, Reason: ReasonIncluded, CategoryName: cat}
}

// Report aggregates include/exclude statistics across one collection pass
// (spec §4.2, SPEC_FULL.md §C.4).
type Report struct {
	IncludedByCategory map[string]int
	ExcludedByReason   map[string]int
	ExcludedByCategory map[string]int
}

// NewReport returns an empty Report ready to accumulate.
func NewReport() *Report {
	return &Report{
		IncludedByCategory: make(map[string]int),
		ExcludedByReason:   make(map[string]int),
		ExcludedByCategory: make(map[string]int),
	}
}

// Add records one decision into the report.
func (r *Report) Add(d Decision) {
	if d.Include {
		r.IncludedByCategory[d.CategoryName]++
		return
	}
	r.ExcludedByReason[string(d.Reason)]++
	r.ExcludedByCategory[d.CategoryName]++
}
