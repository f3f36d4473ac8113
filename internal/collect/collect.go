// Package collect implements the Element Collector (spec §4.2): one
// broad-phase host query per view, policy-filtered, bbox-resolved, with
// linked/imported-CAD expansion and a coarse spatial prefilter built on
// the same rtreego index the raster package uses for tile acceleration.
package collect

import (
	"github.com/dhconnelly/rtreego"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/diag"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/policy"
	"github.com/beetlebugorg/rasteroccl/internal/safehost"
)

// Collected is one element after policy filtering and bbox resolution
// (spec §4.2's output tuple).
type Collected struct {
	Element      host.Element
	BBoxSource   host.BBoxSource
	CategoryName string
}

// Result is the collector's full output for one view.
type Result struct {
	Elements []Collected
	Report   *policy.Report
}

// Collect implements spec §4.2. The coarse spatial filter's padding in feet
// comes from cfg.SpatialFilter.PadFt; cropUV, when non-nil, is the view's
// crop-box UV bounds used to build that filter.
func Collect(v host.View, cap host.Capability, table policy.Table, cfg config.Config, basis model.ViewBasis, cropUV *model.Bounds2D, rec *diag.Recorder) (Result, error) {
	elems, err := safehost.Call(func() ([]host.Element, error) { return cap.QueryVisibleInView(v) }, nil, safehost.Options{
		Recorder: rec, Phase: diag.PhaseCollect, Callsite: "collect.Collect.QueryVisibleInView",
		ViewID: v.ID, Policy: safehost.PolicyRaise, Level: diag.LevelError,
	})
	if err != nil {
		return Result{}, err
	}

	elems = expandLinked(v, cap, elems, rec)

	if cfg.SpatialFilter.Enabled && cropUV != nil {
		elems = spatialPrefilter(elems, basis, *cropUV, cfg.SpatialFilter.PadFt)
	}

	report := policy.NewReport()
	var out []Collected
	for _, e := range elems {
		d := table.ShouldInclude(e, e.Source)
		report.Add(d)
		if !d.Include {
			continue
		}
		resolveBBox(&e)
		out = append(out, Collected{Element: e, BBoxSource: e.BBoxSource, CategoryName: d.CategoryName})
	}

	return Result{Elements: out, Report: report}, nil
}

// resolveBBox implements spec §4.2's "prefer view-dependent bbox, fall
// back to model-space bbox" rule. Elements already carry whichever bbox
// the host capability populated plus a BBoxSource tag; this function only
// normalizes BBoxNone so downstream code can rely on BBoxSource being set.
func resolveBBox(e *host.Element) {
	if e.BBoxSource != host.BBoxView && e.BBoxSource != host.BBoxModel {
		e.BBoxSource = host.BBoxNone
	}
}

// expandLinked implements spec §4.2's "linked/imported expansion": for
// every element carrying a link instance id, pull the linked document's
// elements and compose the link-to-host transform onto each (spec §4.4's
// "these three transforms are composed in that order" — this is the
// instance-transform * link-to-host-transform half of that chain; the
// bbox-local transform is applied by the footprint extractor itself).
func expandLinked(v host.View, cap host.Capability, elems []host.Element, rec *diag.Recorder) []host.Element {
	seenLinks := map[int64]bool{}
	out := make([]host.Element, 0, len(elems))
	for _, e := range elems {
		out = append(out, e)
		if e.Source != host.SourceLink || e.LinkInstID == 0 || seenLinks[e.LinkInstID] {
			continue
		}
		seenLinks[e.LinkInstID] = true

		linked, err := safehost.Call(func() ([]host.Element, error) { return cap.LinkDocumentElements(v, e.LinkInstID) }, nil, safehost.Options{
			Recorder: rec, Phase: diag.PhaseCollect, Callsite: "collect.expandLinked",
			ViewID: v.ID, ElemID: e.LinkInstID, DedupeKey: "link_query_failed",
			Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
		})
		if err != nil {
			continue
		}
		for _, le := range linked {
			le.Source = host.SourceLink
			le.LinkInstID = e.LinkInstID
			out = append(out, le)
		}
	}
	return out
}

// spatialPrefilter implements spec §4.2's coarse spatial filter: elements
// whose projected UV bbox doesn't intersect the padded crop are dropped
// before policy evaluation, using an rtreego index over element bboxes
// (the same library backing internal/raster.TileMap's tile index).
func spatialPrefilter(elems []host.Element, basis model.ViewBasis, cropUV model.Bounds2D, padFt float64) []host.Element {
	padded := cropUV.Expand(padFt)

	tree := rtreego.NewTree(2, 4, 16)
	var unfiltered []host.Element // no usable bbox; always kept (spec §4.2 "none" elements)
	for i, e := range elems {
		uv := projectedBBoxUV(e, basis)
		if !uv.Valid() {
			unfiltered = append(unfiltered, e)
			continue
		}
		s, err := newRect(uv, i)
		if err != nil {
			unfiltered = append(unfiltered, e)
			continue
		}
		tree.Insert(s)
	}

	rect, err := newBoundsRect(padded)
	if err != nil {
		return elems // degenerate crop rect: filtering can't help, keep everything
	}

	hits := tree.SearchIntersect(rect)
	seen := make(map[int]bool, len(hits))
	out := make([]host.Element, 0, len(hits)+len(unfiltered))
	for _, h := range hits {
		r := h.(*elemRect)
		if seen[r.idx] {
			continue
		}
		seen[r.idx] = true
		out = append(out, elems[r.idx])
	}
	out = append(out, unfiltered...)
	return out
}

func projectedBBoxUV(e host.Element, basis model.ViewBasis) model.Bounds2D {
	corners := model.BBox8(e.BBoxMin, e.BBoxMax)
	uv := make([]model.UV, len(corners))
	for i, c := range corners {
		uv[i] = basis.ProjectUV(e.WorldTransform.Apply(c))
	}
	return model.BoundsOf(uv)
}

// elemRect adapts a Bounds2D + element index to rtreego.Spatial.
type elemRect struct {
	idx  int
	rect *rtreego.Rect
}

func (r *elemRect) Bounds() rtreego.Rect { return *r.rect }

func newRect(b model.Bounds2D, idx int) (*elemRect, error) {
	r, err := rtreego.NewRect(rtreego.Point{b.XMin, b.YMin}, []float64{
		maxf(b.Width(), 1e-6), maxf(b.Height(), 1e-6),
	})
	if err != nil {
		return nil, err
	}
	return &elemRect{idx: idx, rect: &r}, nil
}

func newBoundsRect(b model.Bounds2D) (rtreego.Rect, error) {
	return rtreego.NewRect(rtreego.Point{b.XMin, b.YMin}, []float64{
		maxf(b.Width(), 1e-6), maxf(b.Height(), 1e-6),
	})
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
