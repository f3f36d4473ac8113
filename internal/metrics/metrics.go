// Package metrics implements the Metrics Aggregator (spec §4.8): the final
// single pass over a completed ViewRaster that classifies every cell,
// derives external-source and per-type annotation counts, and enforces the
// exact-sum invariant (IV4) fatally rather than silently renormalizing.
package metrics

import (
	"fmt"

	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/raster"
)

// AnnoTypeCounts is the per-type annotation cell tally (spec §4.8's
// "AnnoCells_{TEXT,TAG,DIM,DETAIL,LINES,REGION,OTHER}"). KEYNOTE never
// appears here: internal/annotate's classification already folds it into
// TAG or TEXT before any cell is stamped.
type AnnoTypeCounts struct {
	Text, Tag, Dim, Detail, Lines, Region, Other int
}

// StrategyCounts mirrors internal/modelpass.Stats; metrics imports it by
// value rather than by package to avoid a metrics->modelpass dependency the
// pipeline doesn't otherwise need.
type StrategyCounts struct {
	Tiny, Linear, Areal, ImportedCAD, MissingBBox int
	ArealByFootprintStrategy                      map[string]int
}

// Timings holds wall-clock phase durations, filled in by the caller
// (internal/runner) around each pipeline stage.
type Timings struct {
	CollectMs, BasisMs, ModelPassMs, AnnotateMs, TotalMs float64
}

// ViewMetrics is the per-view metrics record spec §8 names.
type ViewMetrics struct {
	TotalCells, Empty, ModelOnly, AnnoOnly, Overlap int

	ExtCellsAny, ExtCellsOnly, ExtCellsDWG, ExtCellsRVT int

	AnnoCells AnnoTypeCounts

	CellSizeFt          float64 // alias for CellSizeFtEffective; the "current" size downstream tools read
	CellSizeFtRequested float64
	CellSizeFtEffective float64
	ResolutionMode      string // "crop" | "extents" | "fallback"
	CapTriggered        bool

	Strategy StrategyCounts
	Timing   Timings
}

// Aggregate implements spec §4.8 end to end: one pass classifying every
// cell into Empty/ModelOnly/AnnoOnly/Overlap, external-source accounting
// over model_edge_key/model_proxy_key, and per-type annotation counts over
// anno_key. mode is the configured model-presence mode (config.Overlap's
// ModelPresenceMode, resolved via raster.PresenceModeFromConfig).
func Aggregate(viewID int64, r *raster.ViewRaster, mode raster.PresenceMode, requestedCellFt, effectiveCellFt float64, resolutionMode string, capTriggered bool, strategy StrategyCounts) (ViewMetrics, error) {
	m := ViewMetrics{
		TotalCells:          r.W * r.H,
		CellSizeFt:          effectiveCellFt,
		CellSizeFtRequested: requestedCellFt,
		CellSizeFtEffective: effectiveCellFt,
		ResolutionMode:      resolutionMode,
		CapTriggered:        capTriggered,
		Strategy:            strategy,
	}

	for j := 0; j < r.H; j++ {
		for i := 0; i < r.W; i++ {
			modelPresent := r.ModelPresent(i, j, mode)
			annoIdx := r.AnnoKey(i, j)
			annoSet := annoIdx != -1

			switch {
			case annoSet && modelPresent:
				m.Overlap++
			case modelPresent:
				m.ModelOnly++
			case annoSet:
				m.AnnoOnly++
			default:
				m.Empty++
			}

			tallyExternal(&m, r, i, j)
			if annoSet {
				tallyAnnoType(&m, r, annoIdx)
			}
		}
	}

	if sum := m.Empty + m.ModelOnly + m.AnnoOnly + m.Overlap; sum != m.TotalCells {
		return ViewMetrics{}, &raster.InvariantError{
			Invariant: "IV4", ViewID: viewID, Index: -1,
			Detail: fmt.Sprintf("empty(%d)+model_only(%d)+anno_only(%d)+overlap(%d) = %d, want total_cells(%d)",
				m.Empty, m.ModelOnly, m.AnnoOnly, m.Overlap, sum, m.TotalCells),
		}
	}
	return m, nil
}

// tallyExternal implements spec §4.8's external-cell accounting: both
// model_edge_key and model_proxy_key are consulted (a cell can carry an
// edge from one element and a proxy stamp from another), each resolved
// through element_meta.source, and Ext_Cells_Any/Only counted once per cell
// (union over the two keys), never once per key.
func tallyExternal(m *ViewMetrics, r *raster.ViewRaster, i, j int) {
	var hasHost, hasLink, hasDWG bool
	if idx := r.ModelEdgeKey(i, j); idx != -1 {
		markSource(r.ElementMeta[idx].Source, &hasHost, &hasLink, &hasDWG)
	}
	if idx := r.ModelProxyKey(i, j); idx != -1 {
		markSource(r.ElementMeta[idx].Source, &hasHost, &hasLink, &hasDWG)
	}
	if !hasLink && !hasDWG {
		return
	}
	m.ExtCellsAny++
	if !hasHost {
		m.ExtCellsOnly++
	}
	if hasDWG {
		m.ExtCellsDWG++
	}
	if hasLink {
		m.ExtCellsRVT++
	}
}

func markSource(s host.SourceType, hasHost, hasLink, hasDWG *bool) {
	switch s {
	case host.SourceHost:
		*hasHost = true
	case host.SourceLink:
		*hasLink = true
	case host.SourceDWG:
		*hasDWG = true
	}
}

func tallyAnnoType(m *ViewMetrics, r *raster.ViewRaster, annoIdx int) {
	switch r.AnnoMeta[annoIdx].Type {
	case host.AnnoText:
		m.AnnoCells.Text++
	case host.AnnoTag:
		m.AnnoCells.Tag++
	case host.AnnoDim:
		m.AnnoCells.Dim++
	case host.AnnoDetail:
		m.AnnoCells.Detail++
	case host.AnnoLines:
		m.AnnoCells.Lines++
	case host.AnnoRegion:
		m.AnnoCells.Region++
	default:
		m.AnnoCells.Other++
	}
}
