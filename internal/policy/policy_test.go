package policy

import (
	"testing"

	"github.com/beetlebugorg/rasteroccl/internal/host"
)

func TestShouldIncludeAllowlist(t *testing.T) {
	tbl := Default()
	d := tbl.ShouldInclude(host.Element{CategoryName: "Walls"}, host.SourceHost)
	if !d.Include {
		t.Fatalf("expected Walls to be included")
	}
}

func TestShouldIncludeGlobalExclusion(t *testing.T) {
	tbl := Default()
	d := tbl.ShouldInclude(host.Element{CategoryName: "Rooms"}, host.SourceHost)
	if d.Include || d.Reason != ReasonGloballyExcluded {
		t.Fatalf("expected Rooms excluded globally, got %+v", d)
	}
}

func TestLinesOnlyFromHost(t *testing.T) {
	tbl := Default()

	dHost := tbl.ShouldInclude(host.Element{CategoryName: "Lines"}, host.SourceHost)
	if !dHost.Include {
		t.Fatalf("host lines should be included: %+v", dHost)
	}

	dLink := tbl.ShouldInclude(host.Element{CategoryName: "Lines"}, host.SourceLink)
	if dLink.Include || dLink.Reason != ReasonLineFromLink {
		t.Fatalf("link lines must be excluded: %+v", dLink)
	}

	dDWG := tbl.ShouldInclude(host.Element{CategoryName: "Lines"}, host.SourceDWG)
	if dDWG.Include || dDWG.Reason != ReasonLineFromDWG {
		t.Fatalf("dwg lines must be excluded: %+v", dDWG)
	}
}

func TestViewSpecificLinesExcluded(t *testing.T) {
	tbl := Default()
	d := tbl.ShouldInclude(host.Element{CategoryName: "Lines", ViewSpecific: true}, host.SourceHost)
	if d.Include || d.Reason != ReasonViewSpecificLine {
		t.Fatalf("view-specific host lines must be excluded: %+v", d)
	}
}

func TestNotAllowlisted(t *testing.T) {
	tbl := Default()
	d := tbl.ShouldInclude(host.Element{CategoryName: "Furniture"}, host.SourceHost)
	if d.Include || d.Reason != ReasonNotAllowlisted {
		t.Fatalf("unknown category should be excluded as not allowlisted: %+v", d)
	}
}

func TestReportAggregation(t *testing.T) {
	tbl := Default()
	rep := NewReport()
	rep.Add(tbl.ShouldInclude(host.Element{CategoryName: "Walls"}, host.SourceHost))
	rep.Add(tbl.ShouldInclude(host.Element{CategoryName: "Walls"}, host.SourceHost))
	rep.Add(tbl.ShouldInclude(host.Element{CategoryName: "Rooms"}, host.SourceHost))

	if rep.IncludedByCategory["Walls"] != 2 {
		t.Fatalf("included count wrong: %+v", rep.IncludedByCategory)
	}
	if rep.ExcludedByReason[string(ReasonGloballyExcluded)] != 1 {
		t.Fatalf("excluded reason count wrong: %+v", rep.ExcludedByReason)
	}
}
