package footprint

import (
	"sort"

	"github.com/beetlebugorg/rasteroccl/internal/diag"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/safehost"
)

// silhouetteTessStrategy implements spec §4.4 strategy 3: a coarse
// triangulation of the element's visible solids, projected to UV and
// reduced to its convex hull.
func silhouetteTessStrategy(elem host.Element, cap host.Capability, basis model.ViewBasis, tol Tolerances, rec *diag.Recorder, viewID int64) (Footprint, bool) {
	tris, err := safehost.Call(func() ([][3]model.Point, error) { return cap.Triangulate(elem, tol.CoarseTessParam) }, nil, safehost.Options{
		Recorder: rec, Phase: diag.PhaseFootprint, Callsite: "footprint.silhouetteTessStrategy.Triangulate",
		ViewID: viewID, ElemID: elem.ID, Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
	})
	if err != nil || len(tris) == 0 {
		return Footprint{}, false
	}

	cap2 := tol.MaxVertsPerFaceTess
	if cap2 <= 0 {
		cap2 = len(tris) * 3
	}
	var pts []model.Point
	for _, tri := range tris {
		for _, p := range tri {
			pts = append(pts, p)
			if len(pts) >= cap2 {
				break
			}
		}
		if len(pts) >= cap2 {
			break
		}
	}

	uv := toUV(basis, elem.WorldTransform, pts)
	hull := convexHull(uv)
	fp := Footprint{Loops: [][]model.UV{hull}, Strategy: "silhouette_triangulation"}
	if !fp.Valid() {
		return Footprint{}, false
	}
	return fp, true
}

// convexHull computes the convex hull of pts via Andrew's monotone chain,
// deterministic under lexicographic sort so the winding order never
// depends on input order (spec §7 "input-order independence", IV8).
func convexHull(pts []model.UV) []model.UV {
	uniq := dedupeUV(pts)
	if len(uniq) < 3 {
		return uniq
	}
	sort.Slice(uniq, func(a, b int) bool {
		if uniq[a].U != uniq[b].U {
			return uniq[a].U < uniq[b].U
		}
		return uniq[a].V < uniq[b].V
	})

	cross := func(o, a, b model.UV) float64 {
		return (a.U-o.U)*(b.V-o.V) - (a.V-o.V)*(b.U-o.U)
	}

	n := len(uniq)
	hull := make([]model.UV, 0, 2*n)

	for i := 0; i < n; i++ {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], uniq[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, uniq[i])
	}
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], uniq[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, uniq[i])
	}
	return hull[:len(hull)-1]
}

func dedupeUV(pts []model.UV) []model.UV {
	const eps = 1e-9
	out := make([]model.UV, 0, len(pts))
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if abs(p.U-q.U) < eps && abs(p.V-q.V) < eps {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
