// Package model defines the coordinate, basis, and bounds primitives shared
// by every stage of the rasterizer: world-space points and vectors, the
// view-local basis that projects them to UV, and the axis-aligned
// rectangles the rest of the pipeline operates on.
package model

import "math"

// Point is a 3D point in model units (feet).
type Point struct {
	X, Y, Z float64
}

// Vector is a 3D direction or offset in model units.
type Vector struct {
	X, Y, Z float64
}

// Sub returns p-q as a Vector.
func (p Point) Sub(q Point) Vector {
	return Vector{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Add returns p+v as a Point.
func (p Point) Add(v Vector) Point {
	return Point{p.X + v.X, p.Y + v.Y, p.Z + v.Z}
}

// Dot returns the dot product of v and w.
func (v Vector) Dot(w Vector) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Cross returns v x w.
func (v Vector) Cross(w Vector) Vector {
	return Vector{
		X: v.Y*w.Z - v.Z*w.Y,
		Y: v.Z*w.X - v.X*w.Z,
		Z: v.X*w.Y - v.Y*w.X,
	}
}

// Length returns the Euclidean norm of v.
func (v Vector) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Scale returns v scaled by s.
func (v Vector) Scale(s float64) Vector {
	return Vector{v.X * s, v.Y * s, v.Z * s}
}

// Negate returns -v.
func (v Vector) Negate() Vector {
	return Vector{-v.X, -v.Y, -v.Z}
}

// Normalized returns v scaled to unit length. If v is the zero vector it is
// returned unchanged (callers that require a non-degenerate basis vector
// must check for this themselves; see ViewBasis validation).
func (v Vector) Normalized() Vector {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// UV is a 2D point in view-local coordinates (feet).
type UV struct {
	U, V float64
}

// ViewBasis is the orthonormal frame (O,R,U,F) a view projects world points
// through. F points into the screen (away from the viewer) per spec
// invariant; callers that derive F from a host view-direction vector must
// negate it before constructing a ViewBasis (see package viewbasis).
type ViewBasis struct {
	Origin  Point
	Right   Vector
	Up      Vector
	Forward Vector
}

// Project transforms a world point into view-local (u,v,w). w is depth into
// the screen; smaller w is nearer the viewer.
func (b ViewBasis) Project(p Point) (u, v, w float64) {
	d := p.Sub(b.Origin)
	return d.Dot(b.Right), d.Dot(b.Up), d.Dot(b.Forward)
}

// ProjectUV is Project without the depth component.
func (b ViewBasis) ProjectUV(p Point) UV {
	u, v, _ := b.Project(p)
	return UV{u, v}
}

// Bounds2D is an axis-aligned rectangle in view-local UV.
type Bounds2D struct {
	XMin, YMin, XMax, YMax float64
}

// Width returns XMax-XMin.
func (b Bounds2D) Width() float64 { return b.XMax - b.XMin }

// Height returns YMax-YMin.
func (b Bounds2D) Height() float64 { return b.YMax - b.YMin }

// Valid reports whether the bounds are non-degenerate (positive extent).
func (b Bounds2D) Valid() bool {
	return b.XMax > b.XMin && b.YMax > b.YMin
}

// Union returns the smallest Bounds2D containing both b and o.
func (b Bounds2D) Union(o Bounds2D) Bounds2D {
	if !b.Valid() {
		return o
	}
	if !o.Valid() {
		return b
	}
	return Bounds2D{
		XMin: math.Min(b.XMin, o.XMin),
		YMin: math.Min(b.YMin, o.YMin),
		XMax: math.Max(b.XMax, o.XMax),
		YMax: math.Max(b.YMax, o.YMax),
	}
}

// Expand returns b padded outward by margin in every direction.
func (b Bounds2D) Expand(margin float64) Bounds2D {
	return Bounds2D{
		XMin: b.XMin - margin,
		YMin: b.YMin - margin,
		XMax: b.XMax + margin,
		YMax: b.YMax + margin,
	}
}

// Intersects reports whether b and o overlap (touching edges count as
// intersecting).
func (b Bounds2D) Intersects(o Bounds2D) bool {
	return !(o.XMax < b.XMin || o.XMin > b.XMax || o.YMax < b.YMin || o.YMin > b.YMax)
}

// Clamp returns b clamped to lie within o (each edge independently).
func (b Bounds2D) Clamp(o Bounds2D) Bounds2D {
	return Bounds2D{
		XMin: math.Max(b.XMin, o.XMin),
		YMin: math.Max(b.YMin, o.YMin),
		XMax: math.Min(b.XMax, o.XMax),
		YMax: math.Min(b.YMax, o.YMax),
	}
}

// BoundsOf returns the UV bounding box of pts. Returns an invalid
// (zero-value) Bounds2D if pts is empty.
func BoundsOf(pts []UV) Bounds2D {
	if len(pts) == 0 {
		return Bounds2D{}
	}
	b := Bounds2D{XMin: pts[0].U, XMax: pts[0].U, YMin: pts[0].V, YMax: pts[0].V}
	for _, p := range pts[1:] {
		if p.U < b.XMin {
			b.XMin = p.U
		}
		if p.U > b.XMax {
			b.XMax = p.U
		}
		if p.V < b.YMin {
			b.YMin = p.V
		}
		if p.V > b.YMax {
			b.YMax = p.V
		}
	}
	return b
}

// CellRect is an inclusive integer rectangle in grid cells.
type CellRect struct {
	IMin, JMin, IMax, JMax int
}

// Width returns the number of columns the rect spans.
func (r CellRect) Width() int { return r.IMax - r.IMin + 1 }

// Height returns the number of rows the rect spans.
func (r CellRect) Height() int { return r.JMax - r.JMin + 1 }

// Empty reports whether the rect spans no cells.
func (r CellRect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// BBox8 returns the 8 corners of an axis-aligned box spanned by min and max.
func BBox8(min, max Point) [8]Point {
	return [8]Point{
		{min.X, min.Y, min.Z}, {max.X, min.Y, min.Z},
		{min.X, max.Y, min.Z}, {max.X, max.Y, min.Z},
		{min.X, min.Y, max.Z}, {max.X, min.Y, max.Z},
		{min.X, max.Y, max.Z}, {max.X, max.Y, max.Z},
	}
}

// Transform is an affine transform: p' = Origin + M*p (M applied as three
// basis vectors so non-uniform scale/shear from host APIs round-trips).
type Transform struct {
	Origin     Point
	BasisX     Vector
	BasisY     Vector
	BasisZ     Vector
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		BasisX: Vector{X: 1},
		BasisY: Vector{Y: 1},
		BasisZ: Vector{Z: 1},
	}
}

// Apply transforms p by t.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.Origin.X + p.X*t.BasisX.X + p.Y*t.BasisY.X + p.Z*t.BasisZ.X,
		Y: t.Origin.Y + p.X*t.BasisX.Y + p.Y*t.BasisY.Y + p.Z*t.BasisZ.Y,
		Z: t.Origin.Z + p.X*t.BasisX.Z + p.Y*t.BasisY.Z + p.Z*t.BasisZ.Z,
	}
}

// ApplyVector transforms a direction vector by t (ignores Origin).
func (t Transform) ApplyVector(v Vector) Vector {
	return Vector{
		X: v.X*t.BasisX.X + v.Y*t.BasisY.X + v.Z*t.BasisZ.X,
		Y: v.X*t.BasisX.Y + v.Y*t.BasisY.Y + v.Z*t.BasisZ.Y,
		Z: v.X*t.BasisX.Z + v.Y*t.BasisY.Z + v.Z*t.BasisZ.Z,
	}
}

// Compose returns a transform equivalent to applying t first, then outer.
func Compose(outer, t Transform) Transform {
	return Transform{
		Origin: outer.Apply(t.Origin),
		BasisX: outer.ApplyVector(t.BasisX),
		BasisY: outer.ApplyVector(t.BasisY),
		BasisZ: outer.ApplyVector(t.BasisZ),
	}
}
