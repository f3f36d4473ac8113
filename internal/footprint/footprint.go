// Package footprint implements the deterministic strategy ladder that
// extracts a UV footprint for an AREAL element (spec §4.4): planar-face
// selection, geometry-polygon extraction, coarse-triangulation silhouette,
// oriented bounding box via 2D PCA, and axis-aligned bbox as the final
// fallback. It also implements the category-specific sketch shortcut and
// the two-pass rasterization rule shared by every strategy.
package footprint

import (
	"sort"

	"github.com/beetlebugorg/rasteroccl/internal/diag"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/safehost"
)

// Footprint is a UV silhouette: one or more loops, in extraction order.
type Footprint struct {
	Loops    [][]model.UV
	Strategy string
}

// PointCount returns the total number of vertices across every loop.
func (f Footprint) PointCount() int {
	n := 0
	for _, l := range f.Loops {
		n += len(l)
	}
	return n
}

// Valid reports whether f has the minimum 3 points spec §4.4 requires for a
// strategy to "win" the ladder.
func (f Footprint) Valid() bool { return f.PointCount() >= 3 }

// Tolerances parameterizes the ladder (spec §4.4).
type Tolerances struct {
	NormalEps          float64 // plane-group normal tolerance, default 1e-6
	OffsetEps          float64 // plane-group offset tolerance (ft), default 1e-4
	FaceFacingEps      float64 // dot(normal,F) < -eps to count as front-facing
	TopNPlaneGroups    int     // how many plane groups to keep, default 3
	CoarseTessParam    float64 // triangulate() parameter for strategy 3
	MaxVertsPerFaceTess int    // sampling cap for strategy 3
}

// DefaultTolerances returns the values named in spec §4.4.
func DefaultTolerances() Tolerances {
	return Tolerances{
		NormalEps:           1e-6,
		OffsetEps:           1e-4,
		FaceFacingEps:        1e-9,
		TopNPlaneGroups:      3,
		CoarseTessParam:      0.5,
		MaxVertsPerFaceTess:  20,
	}
}

// shortcutCategories are the element categories eligible for the
// plan-view sketch-profile shortcut (spec §4.4 "Category-specific
// shortcut").
var shortcutCategories = map[string]bool{
	"Walls": true, "Floors": true, "Roofs": true, "Ceilings": true,
}

// toUV projects a slice of local-space points through elem's world
// transform and the view basis, in the order spec §4.4 requires: bbox/
// instance transform (collapsed into Element.WorldTransform) then the view
// basis.
func toUV(basis model.ViewBasis, xform model.Transform, pts []model.Point) []model.UV {
	out := make([]model.UV, len(pts))
	for i, p := range pts {
		out[i] = basis.ProjectUV(xform.Apply(p))
	}
	return out
}

// ExtractAreal runs the full strategy ladder for an AREAL element (spec
// §4.4). planLike indicates the view qualifies for the category shortcut.
// It returns the first strategy that yields >= 3 valid UV points.
func ExtractAreal(elem host.Element, cap host.Capability, basis model.ViewBasis, planLike bool, tol Tolerances, rec *diag.Recorder, viewID int64) Footprint {
	if planLike && shortcutCategories[elem.CategoryName] {
		if fp, ok := categoryShortcut(elem, cap, basis, rec, viewID); ok {
			return fp
		}
	}

	if fp, ok := planarFaceStrategy(elem, cap, basis, tol, rec, viewID); ok {
		return fp
	}
	if fp, ok := geometryPolygonStrategy(elem, cap, basis, rec, viewID); ok {
		return fp
	}
	if fp, ok := silhouetteTessStrategy(elem, cap, basis, tol, rec, viewID); ok {
		return fp
	}
	if fp, ok := obbStrategy(elem, basis); ok {
		return fp
	}
	return aabbStrategy(elem, basis)
}

func categoryShortcut(elem host.Element, cap host.Capability, basis model.ViewBasis, rec *diag.Recorder, viewID int64) (Footprint, bool) {
	loops, err := safehost.Call(func() ([][]model.Point, error) { return cap.SketchProfile(elem) }, nil, safehost.Options{
		Recorder: rec, Phase: diag.PhaseFootprint, Callsite: "footprint.categoryShortcut.SketchProfile",
		ViewID: viewID, ElemID: elem.ID, Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
	})
	if err != nil || len(loops) == 0 {
		return Footprint{}, false
	}
	fp := Footprint{Strategy: "category_shortcut"}
	for _, loop := range loops {
		uv := toUV(basis, elem.WorldTransform, loop)
		if len(uv) > 0 {
			fp.Loops = append(fp.Loops, uv)
		}
	}
	if !fp.Valid() {
		return Footprint{}, false
	}
	return fp, true
}

func geometryPolygonStrategy(elem host.Element, cap host.Capability, basis model.ViewBasis, rec *diag.Recorder, viewID int64) (Footprint, bool) {
	pts, err := safehost.Call(func() ([]model.Point, error) { return cap.GeometryPolygon(elem) }, nil, safehost.Options{
		Recorder: rec, Phase: diag.PhaseFootprint, Callsite: "footprint.geometryPolygonStrategy.GeometryPolygon",
		ViewID: viewID, ElemID: elem.ID, Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
	})
	if err != nil || len(pts) < 3 {
		return Footprint{}, false
	}
	uv := toUV(basis, elem.WorldTransform, pts)
	fp := Footprint{Loops: [][]model.UV{uv}, Strategy: "geometry_polygon"}
	if !fp.Valid() {
		return Footprint{}, false
	}
	return fp, true
}

// sortInts sorts xs in ascending order in place.
func sortInts(xs []int) {
	sort.Ints(xs)
}
