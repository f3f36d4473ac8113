package footprint

import (
	"math"
	"sort"

	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/raster"
)

// ToCellSpace converts a set of UV loops (world units) into grid-cell units
// relative to bounds, for rasterization. The conversion is a pure affine
// map; no rounding happens here, so the scanline fill below controls
// exactly which integer cells count as "inside".
func ToCellSpace(loops [][]model.UV, bounds model.Bounds2D, cellSize float64) [][]model.UV {
	if cellSize <= 0 {
		cellSize = 1
	}
	out := make([][]model.UV, len(loops))
	for li, loop := range loops {
		conv := make([]model.UV, len(loop))
		for i, p := range loop {
			conv[i] = model.UV{
				U: (p.U - bounds.XMin) / cellSize,
				V: (p.V - bounds.YMin) / cellSize,
			}
		}
		out[li] = conv
	}
	return out
}

// RasterizePolygon implements spec §4.4's two-pass rule: fill the interior
// of loops (cell-space units) first via scanline fill, calling
// try_write_cell for every interior cell at depth, then walk every loop's
// boundary and call SetModelEdge for the cells the boundary passes
// through. Multiple loops are combined under the even-odd fill rule, which
// naturally supports a silhouette with holes.
func RasterizePolygon(r *raster.ViewRaster, loops [][]model.UV, depth float64, source host.SourceType, metaIdx int) {
	if len(loops) == 0 {
		return
	}
	scanlineFill(r, loops, depth, source)
	for _, loop := range loops {
		walkBoundary(r, loop, depth, metaIdx)
	}
}

type edge struct {
	y0, y1 float64 // y0 < y1
	xAtY0  float64
	slope  float64 // dx/dy
}

func buildEdges(loops [][]model.UV) []edge {
	var edges []edge
	for _, loop := range loops {
		n := len(loop)
		if n < 2 {
			continue
		}
		for i := 0; i < n; i++ {
			a, b := loop[i], loop[(i+1)%n]
			if a.V == b.V {
				continue // horizontal edges never contribute a scanline crossing
			}
			y0, y1, x0, x1 := a.V, b.V, a.U, b.U
			if y0 > y1 {
				y0, y1, x0, x1 = y1, y0, x1, x0
			}
			slope := (x1 - x0) / (b.V - a.V)
			if b.V < a.V {
				slope = (x0 - x1) / (a.V - b.V)
			}
			edges = append(edges, edge{y0: y0, y1: y1, xAtY0: x0, slope: slope})
		}
	}
	return edges
}

// scanlineFill rasterizes the interior of loops (even-odd rule) into r at
// the integer row granularity of the grid, row y in [j, j+1) sampled at
// its center j+0.5.
func scanlineFill(r *raster.ViewRaster, loops [][]model.UV, depth float64, source host.SourceType) {
	edges := buildEdges(loops)
	if len(edges) == 0 {
		return
	}

	minJ, maxJ := math.Inf(1), math.Inf(-1)
	for _, loop := range loops {
		for _, p := range loop {
			minJ = math.Min(minJ, p.V)
			maxJ = math.Max(maxJ, p.V)
		}
	}
	j0 := int(math.Floor(minJ))
	j1 := int(math.Ceil(maxJ))

	for j := j0; j <= j1; j++ {
		yc := float64(j) + 0.5
		var xs []float64
		for _, e := range edges {
			if yc < e.y0 || yc >= e.y1 {
				continue
			}
			xs = append(xs, e.xAtY0+(yc-e.y0)*e.slope)
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			// A cell i (center i+0.5) is inside this span iff
			// xs[k] <= i+0.5 < xs[k+1].
			iStart := int(math.Ceil(xs[k] - 0.5))
			iEnd := int(math.Ceil(xs[k+1]-0.5)) - 1
			if iStart > iEnd {
				continue
			}
			// Rectangle early-out (spec §4.3): if every tile this span
			// touches is already fully filled by something nearer than
			// depth, this span can never win a cell and the per-cell
			// depth test can be skipped entirely.
			if r.Tile != nil && r.Tile.CanSkip(iStart, j, iEnd, j, depth) {
				continue
			}
			for i := iStart; i <= iEnd; i++ {
				r.TryWriteCell(i, j, depth, source)
			}
		}
	}
}

// walkBoundary marks every cell the loop's boundary passes through as a
// model edge (spec §4.4 pass 2), using Bresenham's algorithm per segment.
func walkBoundary(r *raster.ViewRaster, loop []model.UV, depth float64, metaIdx int) {
	n := len(loop)
	for i := 0; i < n; i++ {
		a, b := loop[i], loop[(i+1)%n]
		BresenhamLine(a, b, func(ci, cj int) {
			r.SetModelEdge(ci, cj, depth, metaIdx)
		})
	}
}

// BresenhamLine walks the grid cells between two cell-space points,
// invoking visit(i,j) for each. Used for model/annotation edges, the
// LINEAR strategy's line stamping, and DIM/LINES annotation curves.
func BresenhamLine(a, b model.UV, visit func(i, j int)) {
	x0, y0 := int(math.Floor(a.U)), int(math.Floor(a.V))
	x1, y1 := int(math.Floor(b.U)), int(math.Floor(b.V))

	dx := abs(float64(x1 - x0))
	dy := -abs(float64(y1 - y0))
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errv := dx + dy

	x, y := x0, y0
	for {
		visit(x, y)
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * errv
		if e2 >= dy {
			errv += dy
			x += sx
		}
		if e2 <= dx {
			errv += dx
			y += sy
		}
	}
}

// RasterizeLinear implements spec §4.4's LINEAR strategy: the element's
// projected centerline is stamped as a band `widthCells` cells wide,
// depth-tested the same as an AREAL fill. Linear strategies record
// model_proxy_mask/model_proxy_key rather than model_edge_key, so
// downstream metrics can attribute ink vs proxy coverage.
func RasterizeLinear(r *raster.ViewRaster, a, b model.UV, widthCells int, depth float64, source host.SourceType, metaIdx int) {
	if widthCells < 1 {
		widthCells = 1
	}
	half := widthCells / 2
	BresenhamLine(a, b, func(ci, cj int) {
		skip := r.Tile != nil && r.Tile.CanSkip(ci-half, cj-half, ci+half, cj+half, depth)
		if !skip {
			for dj := -half; dj <= half; dj++ {
				for di := -half; di <= half; di++ {
					r.TryWriteCell(ci+di, cj+dj, depth, source)
				}
			}
		}
		r.SetModelProxy(ci, cj, metaIdx)
	})
}

// RasterizeTiny implements spec §4.4's TINY strategy: the element's full
// projected UV AABB is stamped, not just its centroid, since a TINY element
// can span up to tinyMaxCells x tinyMaxCells cells by definition. The span
// is clamped to tinyMaxCells per axis in case rounding inflates it by one
// cell, stamped with the same proxy rule as LINEAR.
func RasterizeTiny(r *raster.ViewRaster, min, max model.UV, tinyMaxCells int, depth float64, source host.SourceType, metaIdx int) {
	iMin, iMax := clampSpan(int(math.Floor(min.U)), int(math.Floor(max.U)), tinyMaxCells)
	jMin, jMax := clampSpan(int(math.Floor(min.V)), int(math.Floor(max.V)), tinyMaxCells)
	skip := r.Tile != nil && r.Tile.CanSkip(iMin, jMin, iMax, jMax, depth)
	for j := jMin; j <= jMax; j++ {
		for i := iMin; i <= iMax; i++ {
			if !skip {
				r.TryWriteCell(i, j, depth, source)
			}
			r.SetModelProxy(i, j, metaIdx)
		}
	}
}

// clampSpan bounds an inclusive [lo,hi] cell range to at most maxCells
// cells, trimming from the high end; a degenerate hi < lo (both corners
// floor to the same cell, or rounding crosses) collapses to a single cell.
func clampSpan(lo, hi, maxCells int) (int, int) {
	if hi < lo {
		hi = lo
	}
	if maxCells < 1 {
		maxCells = 1
	}
	if hi-lo+1 > maxCells {
		hi = lo + maxCells - 1
	}
	return lo, hi
}

// RasterizeImportedCADLine implements spec §4.4's "Imported CAD" strategy:
// each curve segment of an imported-CAD instance is rasterized as a
// Bresenham line that participates in depth testing but marks only
// model_edge_key, never the proxy layers.
func RasterizeImportedCADLine(r *raster.ViewRaster, a, b model.UV, depth float64, source host.SourceType, metaIdx int) {
	BresenhamLine(a, b, func(ci, cj int) {
		r.TryWriteCell(ci, cj, depth, source)
		r.SetModelEdge(ci, cj, depth, metaIdx)
	})
}
