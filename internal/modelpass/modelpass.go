// Package modelpass implements the Interwoven Model Pass (spec §4.5): the
// single front-to-back sweep over a view's collected elements that resolves
// each one's strategy class, extracts its footprint, and rasterizes it
// through the shared two-pass rule. "Interwoven" means every element is
// fully rasterized (fill + edges) before the next one runs, so occlusion
// ordering is correct without a separate depth buffer pass.
package modelpass

import (
	"math"
	"sort"

	"github.com/beetlebugorg/rasteroccl/internal/classify"
	"github.com/beetlebugorg/rasteroccl/internal/collect"
	"github.com/beetlebugorg/rasteroccl/internal/diag"
	"github.com/beetlebugorg/rasteroccl/internal/footprint"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/raster"
	"github.com/beetlebugorg/rasteroccl/internal/safehost"
)

// Stats tallies the per-strategy counters spec §4.5 step 4 names.
type Stats struct {
	Tiny, Linear, Areal     int
	ImportedCAD             int
	MissingBBox             int
	ArealByFootprintStrategy map[string]int
}

// Run implements spec §4.5: elements are ordered front-to-back by
// (is_missing, depth) and rasterized one at a time, so try_write_cell's
// depth test alone is enough to resolve occlusion correctly no matter what
// order the host originally returned them in (IV8).
func Run(elems []collect.Collected, cap host.Capability, basis model.ViewBasis, bounds model.Bounds2D, cellSizeFt float64, thresholds classify.Thresholds, tol footprint.Tolerances, planLike bool, r *raster.ViewRaster, rec *diag.Recorder, viewID int64) Stats {
	ordered := orderFrontToBack(elems, basis)

	stats := Stats{ArealByFootprintStrategy: map[string]int{}}
	for _, oe := range ordered {
		if oe.isMissing {
			stats.MissingBBox++
		}
		rasterizeOne(oe, cap, basis, bounds, cellSizeFt, thresholds, tol, planLike, r, &stats, rec, viewID)
	}
	return stats
}

type orderedElement struct {
	collect.Collected
	depth     float64
	isMissing bool
}

// orderFrontToBack implements spec §4.5's sort key: strict (is_missing,
// depth) ascending, non-missing elements always sorting before missing
// ones. sort.SliceStable preserves the host's original relative order
// within ties, which IV8 requires to not matter for the final raster.
func orderFrontToBack(elems []collect.Collected, basis model.ViewBasis) []orderedElement {
	out := make([]orderedElement, len(elems))
	for i, e := range elems {
		depth, missing := nearestDepth(e.Element, basis)
		out[i] = orderedElement{Collected: e, depth: depth, isMissing: missing}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].isMissing != out[j].isMissing {
			return out[j].isMissing
		}
		return out[i].depth < out[j].depth
	})
	return out
}

// nearestDepth returns the minimum projected depth (w) over the element's 8
// bbox corners, or +Inf with isMissing=true if the element carries no
// usable bbox (spec §4.5: "never 0, never -Inf").
func nearestDepth(e host.Element, basis model.ViewBasis) (depth float64, isMissing bool) {
	if e.BBoxSource == host.BBoxNone {
		return math.Inf(1), true
	}
	corners := model.BBox8(e.BBoxMin, e.BBoxMax)
	depth = math.Inf(1)
	for _, c := range corners {
		_, _, w := basis.Project(e.WorldTransform.Apply(c))
		if w < depth {
			depth = w
		}
	}
	return depth, false
}

func rasterizeOne(oe orderedElement, cap host.Capability, basis model.ViewBasis, bounds model.Bounds2D, cellSizeFt float64, thresholds classify.Thresholds, tol footprint.Tolerances, planLike bool, r *raster.ViewRaster, stats *Stats, rec *diag.Recorder, viewID int64) {
	e := oe.Element
	metaIdx := r.MetaIndexFor(e.ID, oe.CategoryName, e.Source, e.Source.String())

	polylines, _ := safehost.Call(func() ([][]model.Point, error) { return cap.ImportedPolylines(e) }, nil, safehost.Options{
		Recorder: rec, Phase: diag.PhaseModelPass, Callsite: "modelpass.rasterizeOne.ImportedPolylines",
		ViewID: viewID, ElemID: e.ID, Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
	})
	if len(polylines) > 0 {
		stats.ImportedCAD++
		rasterizeImportedCAD(r, polylines, e, basis, bounds, cellSizeFt, oe.depth, metaIdx)
		return
	}

	widthCells, heightCells := projectedExtentCells(e, basis, cellSizeFt)
	switch classify.Classify(widthCells, heightCells, thresholds) {
	case classify.Tiny:
		stats.Tiny++
		rasterizeTinyElement(r, e, basis, bounds, cellSizeFt, oe.depth, metaIdx, thresholds.TinyMax)
	case classify.Linear:
		stats.Linear++
		rasterizeLinearElement(r, e, basis, bounds, cellSizeFt, oe.depth, metaIdx, thresholds.TinyMax)
	default:
		stats.Areal++
		fp := footprint.ExtractAreal(e, cap, basis, planLike, tol, rec, viewID)
		stats.ArealByFootprintStrategy[fp.Strategy]++
		cellLoops := footprint.ToCellSpace(fp.Loops, bounds, cellSizeFt)
		footprint.RasterizePolygon(r, cellLoops, oe.depth, e.Source, metaIdx)
	}
}

func rasterizeTinyElement(r *raster.ViewRaster, e host.Element, basis model.ViewBasis, bounds model.Bounds2D, cellSizeFt, depth float64, metaIdx, tinyMaxCells int) {
	uvMin, uvMax := projectedUVBounds(e, basis)
	cc := footprint.ToCellSpace([][]model.UV{{uvMin, uvMax}}, bounds, cellSizeFt)[0]
	footprint.RasterizeTiny(r, cc[0], cc[1], tinyMaxCells, depth, e.Source, metaIdx)
}

// rasterizeLinearElement stamps the LINEAR strategy's band (spec §4.4): the
// OBB major axis as centerline, minor-axis extent as width. A degenerate
// (point-like) projected bbox falls back to a TINY stamp rather than
// dropping the element.
func rasterizeLinearElement(r *raster.ViewRaster, e host.Element, basis model.ViewBasis, bounds model.Bounds2D, cellSizeFt, depth float64, metaIdx, tinyMaxCells int) {
	a, b, widthFt, ok := footprint.LinearBand(e, basis)
	if !ok {
		rasterizeTinyElement(r, e, basis, bounds, cellSizeFt, depth, metaIdx, tinyMaxCells)
		return
	}
	cc := footprint.ToCellSpace([][]model.UV{{a, b}}, bounds, cellSizeFt)[0]
	widthCells := int(math.Round(widthFt / cellSizeFt))
	footprint.RasterizeLinear(r, cc[0], cc[1], widthCells, depth, e.Source, metaIdx)
}

func projectedUVBounds(e host.Element, basis model.ViewBasis) (min, max model.UV) {
	corners := model.BBox8(e.BBoxMin, e.BBoxMax)
	uv := make([]model.UV, len(corners))
	for i, c := range corners {
		uv[i] = basis.ProjectUV(e.WorldTransform.Apply(c))
	}
	b := model.BoundsOf(uv)
	return model.UV{U: b.XMin, V: b.YMin}, model.UV{U: b.XMax, V: b.YMax}
}

func projectedExtentCells(e host.Element, basis model.ViewBasis, cellSizeFt float64) (widthCells, heightCells float64) {
	corners := model.BBox8(e.BBoxMin, e.BBoxMax)
	uv := make([]model.UV, len(corners))
	for i, c := range corners {
		uv[i] = basis.ProjectUV(e.WorldTransform.Apply(c))
	}
	b := model.BoundsOf(uv)
	if cellSizeFt <= 0 {
		cellSizeFt = 1
	}
	return b.Width() / cellSizeFt, b.Height() / cellSizeFt
}

// rasterizeImportedCAD implements spec §4.4's "Imported CAD" strategy:
// bypasses TINY/LINEAR/AREAL classification entirely, rasterizing each
// polyline segment as a depth-tested line that marks model_edge_key only.
func rasterizeImportedCAD(r *raster.ViewRaster, polylines [][]model.Point, e host.Element, basis model.ViewBasis, bounds model.Bounds2D, cellSizeFt, depth float64, metaIdx int) {
	for _, poly := range polylines {
		uv := make([]model.UV, len(poly))
		for i, p := range poly {
			uv[i] = basis.ProjectUV(e.WorldTransform.Apply(p))
		}
		cc := footprint.ToCellSpace([][]model.UV{uv}, bounds, cellSizeFt)[0]
		for i := 0; i+1 < len(cc); i++ {
			footprint.RasterizeImportedCADLine(r, cc[i], cc[i+1], depth, e.Source, metaIdx)
		}
	}
}
