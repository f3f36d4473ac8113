package footprint

import (
	"math"
	"testing"

	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/raster"
)

func TestToCellSpaceTranslatesAndScales(t *testing.T) {
	bounds := model.Bounds2D{XMin: 5, YMin: 5, XMax: 25, YMax: 25}
	loops := [][]model.UV{{{U: 5, V: 5}, {U: 25, V: 25}}}
	out := ToCellSpace(loops, bounds, 2.0)
	if out[0][0] != (model.UV{U: 0, V: 0}) {
		t.Fatalf("origin mapped to %v, want (0,0)", out[0][0])
	}
	if out[0][1] != (model.UV{U: 10, V: 10}) {
		t.Fatalf("far corner mapped to %v, want (10,10)", out[0][1])
	}
}

func TestRasterizePolygonFillsInteriorAndMarksEdges(t *testing.T) {
	r := raster.New(10, 10, 4)
	sq := []model.UV{{U: 2, V: 2}, {U: 7, V: 2}, {U: 7, V: 7}, {U: 2, V: 7}}
	idx := r.MetaIndexFor(1, "Furniture", host.SourceHost, "HOST")

	RasterizePolygon(r, [][]model.UV{sq}, 1.0, host.SourceHost, idx)

	if !r.ModelMask(4, 4) {
		t.Fatalf("interior cell (4,4) should be filled")
	}
	if r.ModelMask(0, 0) {
		t.Fatalf("exterior cell (0,0) must not be filled")
	}
	if r.ModelEdgeKey(2, 2) != idx {
		t.Fatalf("boundary cell should carry the model edge key")
	}
}

func TestRasterizePolygonDepthTestRejectsFartherElement(t *testing.T) {
	r := raster.New(10, 10, 4)
	sq := []model.UV{{U: 2, V: 2}, {U: 7, V: 2}, {U: 7, V: 7}, {U: 2, V: 7}}
	near := r.MetaIndexFor(1, "Furniture", host.SourceHost, "HOST")
	far := r.MetaIndexFor(2, "Furniture", host.SourceHost, "HOST")

	RasterizePolygon(r, [][]model.UV{sq}, 1.0, host.SourceHost, near)
	RasterizePolygon(r, [][]model.UV{sq}, 5.0, host.SourceHost, far)

	if r.WOcc(4, 4) != 1.0 {
		t.Fatalf("w_occ = %v, want 1.0 (nearer element must win)", r.WOcc(4, 4))
	}
}

func TestBresenhamLineCoversEndpoints(t *testing.T) {
	var visited [][2]int
	BresenhamLine(model.UV{U: 0, V: 0}, model.UV{U: 4, V: 4}, func(i, j int) {
		visited = append(visited, [2]int{i, j})
	})
	if visited[0] != [2]int{0, 0} {
		t.Fatalf("first visited cell = %v, want (0,0)", visited[0])
	}
	if visited[len(visited)-1] != [2]int{4, 4} {
		t.Fatalf("last visited cell = %v, want (4,4)", visited[len(visited)-1])
	}
}

func TestRasterizeLinearStampsBand(t *testing.T) {
	r := raster.New(20, 20, 4)
	idx := r.MetaIndexFor(9, "Pipes", host.SourceHost, "HOST")
	RasterizeLinear(r, model.UV{U: 2, V: 10}, model.UV{U: 15, V: 10}, 3, 1.0, host.SourceHost, idx)
	if !r.ModelMask(10, 10) {
		t.Fatalf("centerline cell should be filled")
	}
	if !r.ModelMask(10, 9) && !r.ModelMask(10, 11) {
		t.Fatalf("band width should cover adjacent rows")
	}
	if r.ModelProxyKey(10, 10) != idx {
		t.Fatalf("LINEAR must record model_proxy_key, not model_edge_key")
	}
	if r.ModelEdgeKey(10, 10) != -1 {
		t.Fatalf("LINEAR must not touch model_edge_key")
	}
}

func TestRasterizeTinyStampsSingleCellWhenAABBIsOneCell(t *testing.T) {
	r := raster.New(10, 10, 4)
	idx := r.MetaIndexFor(3, "Furniture", host.SourceHost, "HOST")
	RasterizeTiny(r, model.UV{U: 5.2, V: 5.7}, model.UV{U: 5.4, V: 5.9}, 2, 1.0, host.SourceHost, idx)
	if !r.ModelMask(5, 5) {
		t.Fatalf("expected the AABB's single cell to be filled")
	}
	if r.ModelProxyKey(5, 5) != idx {
		t.Fatalf("TINY must record model_proxy_key")
	}
}

func TestRasterizeTinyStampsFullAABB(t *testing.T) {
	r := raster.New(10, 10, 4)
	idx := r.MetaIndexFor(3, "Furniture", host.SourceHost, "HOST")
	RasterizeTiny(r, model.UV{U: 4, V: 4}, model.UV{U: 5.9, V: 5.9}, 2, 1.0, host.SourceHost, idx)
	for _, c := range [][2]int{{4, 4}, {5, 4}, {4, 5}, {5, 5}} {
		if !r.ModelMask(c[0], c[1]) {
			t.Fatalf("expected cell %v covered by the 2x2 cell AABB to be filled", c)
		}
		if r.ModelProxyKey(c[0], c[1]) != idx {
			t.Fatalf("TINY must record model_proxy_key at %v", c)
		}
	}
}

func TestRasterizeTinyClampsToTinyMaxCells(t *testing.T) {
	r := raster.New(10, 10, 4)
	idx := r.MetaIndexFor(3, "Furniture", host.SourceHost, "HOST")
	// An AABB spanning 4 cells wide must still only stamp tinyMaxCells=2.
	RasterizeTiny(r, model.UV{U: 0, V: 0}, model.UV{U: 3.9, V: 0.9}, 2, 1.0, host.SourceHost, idx)
	if r.ModelMask(2, 0) || r.ModelMask(3, 0) {
		t.Fatalf("expected the span clamped to 2 cells, cells 2 and 3 must stay empty")
	}
	if !r.ModelMask(0, 0) || !r.ModelMask(1, 0) {
		t.Fatalf("expected cells 0 and 1 filled within the clamp")
	}
}

func TestRasterizeImportedCADLineMarksEdgeNotProxy(t *testing.T) {
	r := raster.New(20, 20, 4)
	idx := r.MetaIndexFor(4, "ImportedCAD", host.SourceDWG, "DWG")
	RasterizeImportedCADLine(r, model.UV{U: 0, V: 0}, model.UV{U: 5, V: 5}, 1.0, host.SourceDWG, idx)
	if r.ModelEdgeKey(0, 0) != idx {
		t.Fatalf("imported CAD line must mark model_edge_key")
	}
	if r.ModelProxyKey(0, 0) != -1 {
		t.Fatalf("imported CAD line must never touch the proxy layers")
	}
}

func TestScanlineFillEvenOddHandlesHoles(t *testing.T) {
	r := raster.New(20, 20, 4)
	outer := []model.UV{{U: 2, V: 2}, {U: 16, V: 2}, {U: 16, V: 16}, {U: 2, V: 16}}
	hole := []model.UV{{U: 6, V: 6}, {U: 10, V: 6}, {U: 10, V: 10}, {U: 6, V: 10}}
	idx := r.MetaIndexFor(1, "Floors", host.SourceHost, "HOST")
	RasterizePolygon(r, [][]model.UV{outer, hole}, 1.0, host.SourceHost, idx)

	if !r.ModelMask(3, 3) {
		t.Fatalf("cell between outer boundary and hole should be filled")
	}
	if r.ModelMask(8, 8) {
		t.Fatalf("cell inside the hole must not be filled under even-odd rule")
	}
}

func TestObbAngleMatchesClosedFormOnElongatedCluster(t *testing.T) {
	// A cluster elongated along the diagonal should yield a principal axis
	// near 45 degrees from either the closed-form formula or gonum's
	// eigendecomposition.
	cxx, cyy, cxy := 10.0, 10.0, 8.0
	theta := closedFormAngle(cxx, cyy, cxy)
	want := math.Pi / 4
	if math.Abs(math.Mod(theta-want, math.Pi)) > 0.05 && math.Abs(math.Mod(theta+want, math.Pi)) > 0.05 {
		t.Fatalf("closed-form angle = %v, want near +/-pi/4", theta)
	}
}
