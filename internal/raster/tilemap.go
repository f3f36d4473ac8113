package raster

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

// TileMap partitions a raster's cell grid into TileSize x TileSize tiles and
// tracks, per tile, how many cells are filled and the farthest (worst-case)
// depth among the tile's winning writes (spec §3 "TileMap", §4.3 "Rectangle
// early-out").
//
// Soundness note: the tracked depth only ever grows (it is a running max
// over every winning write ever committed to the tile, even if a later
// write to the same cell wins with a nearer depth and the cell's *current*
// depth is therefore smaller). That makes it a safe over-approximation: the
// early-out test below can only under-trigger relative to the true current
// worst depth, never over-trigger, so it can never change pipeline output
// (IV7) — only, in the worst case, skip the optimization.
//
// Fully-covered tiles are indexed in an R-tree (github.com/dhconnelly/rtreego,
// grounded on the teacher's ChartIndex spatial index) so a candidate
// rectangle's covering tile set is found by a single spatial query instead
// of a linear scan, mirroring pkg/s57/index.go's ChartIndex.Query.
type TileMap struct {
	tileSize       int
	w, h           int
	tilesX, tilesY int
	tiles          []*tile
	rtree          *rtreego.Rtree
}

type tile struct {
	i0, j0     int // origin in cell coordinates
	cellsW     int
	cellsH     int
	area       int
	filled     int
	worstDepth float64 // -Inf until the tile's first winning write
	inTree     bool
}

func (t *tile) Bounds() rtreego.Rect {
	pt := rtreego.Point{float64(t.i0), float64(t.j0)}
	lengths := []float64{float64(t.cellsW), float64(t.cellsH)}
	rect, err := rtreego.NewRect(pt, lengths)
	if err != nil {
		// cellsW/cellsH are always >= 1 by construction; NewRect only
		// fails on non-positive lengths.
		panic("raster: degenerate tile bounds: " + err.Error())
	}
	return rect
}

func (t *tile) full() bool { return t.filled >= t.area }

// NewTileMap builds a TileMap for a w x h cell grid with the given tile
// size. tileSize <= 0 is treated as 1 (every cell its own tile).
func NewTileMap(w, h, tileSize int) *TileMap {
	if tileSize <= 0 {
		tileSize = 1
	}
	tilesX := ceilDiv(w, tileSize)
	tilesY := ceilDiv(h, tileSize)

	tm := &TileMap{
		tileSize: tileSize,
		w:        w,
		h:        h,
		tilesX:   tilesX,
		tilesY:   tilesY,
		tiles:    make([]*tile, tilesX*tilesY),
		rtree:    rtreego.NewTree(2, 4, 16),
	}
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			i0 := tx * tileSize
			j0 := ty * tileSize
			cellsW := minInt(tileSize, w-i0)
			cellsH := minInt(tileSize, h-j0)
			tm.tiles[ty*tilesX+tx] = &tile{
				i0: i0, j0: j0,
				cellsW: cellsW, cellsH: cellsH,
				area:       cellsW * cellsH,
				worstDepth: math.Inf(-1),
			}
		}
	}
	return tm
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (tm *TileMap) tileIndex(i, j int) int {
	tx := i / tm.tileSize
	ty := j / tm.tileSize
	return ty*tm.tilesX + tx
}

// RegisterWrite updates tile bookkeeping after a winning try_write_cell
// write at cell (i,j) with winning depth w. wasEmpty indicates whether the
// cell had no prior occlusion writer (spec §4.3 step 3, "increment tile
// fill count if the cell was previously empty").
func (tm *TileMap) RegisterWrite(i, j int, w float64, wasEmpty bool) {
	t := tm.tiles[tm.tileIndex(i, j)]
	if wasEmpty {
		t.filled++
	}
	if w > t.worstDepth {
		t.worstDepth = w
	}
	if t.full() && !t.inTree {
		tm.rtree.Insert(t)
		t.inTree = true
	}
}

// CanSkip implements the rectangle early-out (spec §4.3): given a candidate
// cell rectangle and the nearest depth the candidate could possibly write
// (wMin, e.g. the element's own depth for a uniform-depth footprint), it
// reports whether every tile the rectangle touches is both fully filled and
// already nearer than wMin — in which case the candidate cannot win any
// cell in the rectangle and the caller may skip rasterizing it entirely.
func (tm *TileMap) CanSkip(iMin, jMin, iMax, jMax int, wMin float64) bool {
	iMin, jMin = maxInt(iMin, 0), maxInt(jMin, 0)
	iMax, jMax = minInt(iMax, tm.w-1), minInt(jMax, tm.h-1)
	if iMin > iMax || jMin > jMax {
		return true // nothing in range; vacuously skippable
	}

	tiMin, tjMin := iMin/tm.tileSize, jMin/tm.tileSize
	tiMax, tjMax := iMax/tm.tileSize, jMax/tm.tileSize
	expected := (tiMax - tiMin + 1) * (tjMax - tjMin + 1)

	pt := rtreego.Point{float64(iMin), float64(jMin)}
	lengths := []float64{float64(iMax - iMin + 1), float64(jMax - jMin + 1)}
	queryRect, err := rtreego.NewRect(pt, lengths)
	if err != nil {
		return false
	}

	matches := tm.rtree.SearchIntersect(queryRect)
	count := 0
	for _, sp := range matches {
		t := sp.(*tile)
		if !t.full() {
			continue
		}
		if t.worstDepth >= wMin {
			return false // this tile is not guaranteed nearer; can't skip
		}
		// Only count tiles that are entirely within the covering range
		// (SearchIntersect can return tiles that merely overlap it).
		if t.i0 >= tiMin*tm.tileSize && t.j0 >= tjMin*tm.tileSize &&
			t.i0+t.cellsW <= (tiMax+1)*tm.tileSize && t.j0+t.cellsH <= (tjMax+1)*tm.tileSize {
			count++
		}
	}
	return count == expected
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
