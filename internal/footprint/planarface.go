package footprint

import (
	"math"
	"sort"

	"github.com/beetlebugorg/rasteroccl/internal/diag"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/safehost"
)

// planeKey is a tolerance-quantized, sign-canonicalized plane identity used
// to group coplanar faces (spec §4.4 "plane-group canonicalization").
type planeKey struct {
	nx, ny, nz, d int64
}

// canonicalPlane picks the sign of (n,d) deterministically so that a plane
// and its mirror (-n,-d) collapse to the same key, regardless of which
// winding a particular face happened to use.
func canonicalPlane(n model.Vector, d float64) (model.Vector, float64) {
	flip := n.X < 0 || (n.X == 0 && n.Y < 0) || (n.X == 0 && n.Y == 0 && n.Z < 0)
	if flip {
		return n.Negate(), -d
	}
	return n, d
}

func quantize(v, eps float64) int64 {
	if eps <= 0 {
		eps = 1e-9
	}
	return int64(math.Round(v / eps))
}

func keyFor(n model.Vector, d float64, tol Tolerances) planeKey {
	cn, cd := canonicalPlane(n, d)
	return planeKey{
		nx: quantize(cn.X, tol.NormalEps),
		ny: quantize(cn.Y, tol.NormalEps),
		nz: quantize(cn.Z, tol.NormalEps),
		d:  quantize(cd, tol.OffsetEps),
	}
}

// planeGroup accumulates the front-facing faces sharing one canonical plane.
type planeGroup struct {
	key        planeKey
	normal     model.Vector
	offset     float64
	bestFace   int     // index into the original faces slice
	bestAreaUV float64 // UV shoelace area of bestFace's projected loop
	firstSeen  int     // tie-break: stable insertion order
}

// planarFaceStrategy implements spec §4.4 strategy 1: select faces whose
// normal points toward the viewer, group them by coplanarity, keep the
// largest-area face per group, and output the top-N groups' loops.
func planarFaceStrategy(elem host.Element, cap host.Capability, basis model.ViewBasis, tol Tolerances, rec *diag.Recorder, viewID int64) (Footprint, bool) {
	faces, err := safehost.Call(func() ([]host.PlanarFace, error) { return cap.PlanarFaces(elem) }, nil, safehost.Options{
		Recorder: rec, Phase: diag.PhaseFootprint, Callsite: "footprint.planarFaceStrategy.PlanarFaces",
		ViewID: viewID, ElemID: elem.ID, Policy: safehost.PolicyDefault, Level: diag.LevelWarn,
	})
	if err != nil || len(faces) == 0 {
		return Footprint{}, false
	}

	groups := map[planeKey]*planeGroup{}
	var order []planeKey

	for fi, face := range faces {
		worldNormal := elem.WorldTransform.ApplyVector(face.Normal).Normalized()
		if worldNormal.Dot(basis.Forward) >= -tol.FaceFacingEps {
			continue // not facing the viewer
		}
		if len(face.OuterLoop) < 3 {
			continue
		}

		uv := toUV(basis, elem.WorldTransform, face.OuterLoop)
		area := math.Abs(shoelaceArea(uv))

		k := keyFor(worldNormal, face.Offset, tol)
		g, ok := groups[k]
		if !ok {
			g = &planeGroup{key: k, normal: worldNormal, offset: face.Offset, bestFace: fi, bestAreaUV: area, firstSeen: fi}
			groups[k] = g
			order = append(order, k)
			continue
		}
		if area > g.bestAreaUV {
			g.bestFace = fi
			g.bestAreaUV = area
		}
	}

	if len(order) == 0 {
		return Footprint{}, false
	}

	sort.Slice(order, func(a, b int) bool {
		ga, gb := groups[order[a]], groups[order[b]]
		if ga.bestAreaUV != gb.bestAreaUV {
			return ga.bestAreaUV > gb.bestAreaUV // area DESC
		}
		if ga.offset != gb.offset {
			return ga.offset < gb.offset // offset ASC
		}
		if ga.normal.X != gb.normal.X {
			return ga.normal.X < gb.normal.X
		}
		if ga.normal.Y != gb.normal.Y {
			return ga.normal.Y < gb.normal.Y
		}
		if ga.normal.Z != gb.normal.Z {
			return ga.normal.Z < gb.normal.Z
		}
		return ga.firstSeen < gb.firstSeen // stable fallback
	})

	n := tol.TopNPlaneGroups
	if n <= 0 {
		n = 1
	}
	if n > len(order) {
		n = len(order)
	}

	fp := Footprint{Strategy: "planar_face"}
	for _, k := range order[:n] {
		g := groups[k]
		loop := toUV(basis, elem.WorldTransform, faces[g.bestFace].OuterLoop)
		fp.Loops = append(fp.Loops, loop)
	}
	if !fp.Valid() {
		return Footprint{}, false
	}
	return fp, true
}

// shoelaceArea returns the signed area of a UV polygon.
func shoelaceArea(pts []model.UV) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].U*pts[j].V - pts[j].U*pts[i].V
	}
	return sum / 2
}
