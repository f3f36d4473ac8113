package footprint

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
)

// obbStrategy implements spec §4.4 strategy 4: an oriented bounding box
// fitted to the UV-projected bbox corners via 2D PCA. The principal axis is
// computed in closed form (atan2 of the covariance) and by gonum's
// symmetric eigendecomposition; the two results are not compared. The
// eigendecomposition's angle is used whenever the factorization succeeds,
// and the closed-form angle only when it fails.
func obbStrategy(elem host.Element, basis model.ViewBasis) (Footprint, bool) {
	center, ux, uy, halfA, halfB, ok := OBBAxes(elem, basis)
	if !ok {
		return Footprint{}, false
	}

	mk := func(a, b float64) model.UV {
		return model.UV{
			U: center.U + a*ux.U + b*uy.U,
			V: center.V + a*ux.V + b*uy.V,
		}
	}
	loop := []model.UV{mk(-halfA, -halfB), mk(halfA, -halfB), mk(halfA, halfB), mk(-halfA, halfB)}
	return Footprint{Loops: [][]model.UV{loop}, Strategy: "obb"}, true
}

// OBBAxes fits an oriented bounding box to elem's projected-bbox corners and
// returns its center, unit axis vectors, and half-extents along each axis.
// Shared by obbStrategy (AREAL fallback) and LinearBand (the LINEAR
// strategy's centerline/width).
func OBBAxes(elem host.Element, basis model.ViewBasis) (center, ux, uy model.UV, halfA, halfB float64, ok bool) {
	corners := model.BBox8(elem.BBoxMin, elem.BBoxMax)
	uv := toUV(basis, elem.WorldTransform, corners[:])
	if len(uv) < 3 {
		return model.UV{}, model.UV{}, model.UV{}, 0, 0, false
	}

	cx, cy := 0.0, 0.0
	for _, p := range uv {
		cx += p.U
		cy += p.V
	}
	n := float64(len(uv))
	cx /= n
	cy /= n

	var cxx, cyy, cxy float64
	for _, p := range uv {
		dx, dy := p.U-cx, p.V-cy
		cxx += dx * dx
		cyy += dy * dy
		cxy += dx * dy
	}
	cxx /= n
	cyy /= n
	cxy /= n

	if cxx < 1e-12 && cyy < 1e-12 {
		return model.UV{}, model.UV{}, model.UV{}, 0, 0, false // degenerate point cluster
	}

	theta := closedFormAngle(cxx, cyy, cxy)
	if a, ok := eigenAngle(cxx, cyy, cxy); ok {
		theta = a
	}

	ux = model.UV{U: math.Cos(theta), V: math.Sin(theta)}
	uy = model.UV{U: -math.Sin(theta), V: math.Cos(theta)}

	minA, maxA, minB, maxB := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	for _, p := range uv {
		dx, dy := p.U-cx, p.V-cy
		a := dx*ux.U + dy*ux.V
		b := dx*uy.U + dy*uy.V
		minA, maxA = math.Min(minA, a), math.Max(maxA, a)
		minB, maxB = math.Min(minB, b), math.Max(maxB, b)
	}

	// An axis-aligned box is centrally symmetric about its centroid, and
	// affine projection preserves central symmetry, so minA==-maxA and
	// minB==-maxB already: the point centroid (cx,cy) is the OBB center.
	center = model.UV{U: cx, V: cy}
	halfA, halfB = (maxA-minA)/2, (maxB-minB)/2
	return center, ux, uy, halfA, halfB, true
}

// closedFormAngle is the textbook 2D-PCA principal-axis formula.
func closedFormAngle(cxx, cyy, cxy float64) float64 {
	return 0.5 * math.Atan2(2*cxy, cxx-cyy)
}

// eigenAngle computes the principal-axis angle via gonum's symmetric
// eigendecomposition of the 2x2 covariance matrix, returning ok=false if
// the factorization fails (in which case the caller keeps the closed-form
// angle).
func eigenAngle(cxx, cyy, cxy float64) (float64, bool) {
	sym := mat.NewSymDense(2, []float64{cxx, cxy, cxy, cyy})
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return 0, false
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Pick the eigenvector belonging to the larger eigenvalue as the
	// principal axis.
	col := 0
	if values[1] > values[0] {
		col = 1
	}
	vx, vy := vecs.At(0, col), vecs.At(1, col)
	return math.Atan2(vy, vx), true
}
