// Package raster implements the ViewRaster data structure (spec §3) and the
// single depth-tested write routine, try_write_cell (spec §4.3), that every
// rasterization path in the pipeline must go through.
package raster

import (
	"fmt"
	"math"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/host"
)

// Source identifies which occlusion layer a winning write belongs to.
type Source = host.SourceType

// ElementMeta is one entry in ViewRaster.ElementMeta (spec §3).
type ElementMeta struct {
	ElemID      int64
	Category    string
	Source      host.SourceType
	SourceLabel string
}

// AnnoMeta is one entry in ViewRaster.AnnoMeta (spec §3).
type AnnoMeta struct {
	ElementID int64
	Type      host.AnnotationType
	CatID     int
	BBoxMin   [2]float64
	BBoxMax   [2]float64
}

// DepthTestStats tracks the try_write_cell counters named in spec §4.3.
type DepthTestStats struct {
	Attempted int64
	Wins      int64
	Rejects   int64
}

// ViewRaster is the fixed-size, per-view set of layered arrays described in
// spec §3. Construct with New; all writes to w_occ/occ_*/model_mask must go
// through TryWriteCell (spec §4.3's invariant).
type ViewRaster struct {
	W, H int

	wOcc           []float64
	occHost        []bool
	occLink        []bool
	occDWG         []bool
	modelMask      []bool
	modelEdgeKey   []int
	modelProxyKey  []int
	modelProxyMask []bool
	annoKey        []int
	annoOverModel  []bool

	Tile *TileMap

	ElementMeta []ElementMeta
	AnnoMeta    []AnnoMeta

	DepthTest DepthTestStats

	// elemMetaIndex maps a host element id to its append-only index in
	// ElementMeta (spec §3 "Element lifecycle").
	elemMetaIndex map[int64]int
}

// New allocates a ViewRaster of w x h cells with the given tile size.
func New(w, h, tileSize int) *ViewRaster {
	n := w * h
	r := &ViewRaster{
		W: w, H: h,
		wOcc:           make([]float64, n),
		occHost:        make([]bool, n),
		occLink:        make([]bool, n),
		occDWG:         make([]bool, n),
		modelMask:      make([]bool, n),
		modelEdgeKey:   make([]int, n),
		modelProxyKey:  make([]int, n),
		modelProxyMask: make([]bool, n),
		annoKey:        make([]int, n),
		annoOverModel:  make([]bool, n),
		Tile:           NewTileMap(w, h, tileSize),
		elemMetaIndex:  make(map[int64]int),
	}
	for i := range r.wOcc {
		r.wOcc[i] = math.Inf(1)
	}
	for i := range r.modelEdgeKey {
		r.modelEdgeKey[i] = -1
		r.modelProxyKey[i] = -1
		r.annoKey[i] = -1
	}
	return r
}

// Index returns the row-major index for cell (i,j).
func (r *ViewRaster) Index(i, j int) int { return j*r.W + i }

// InBounds reports whether (i,j) lies within the grid.
func (r *ViewRaster) InBounds(i, j int) bool {
	return i >= 0 && i < r.W && j >= 0 && j < r.H
}

// WOcc returns the nearest depth written by any occluding source at (i,j),
// or +Inf if the cell has never been occluded.
func (r *ViewRaster) WOcc(i, j int) float64 { return r.wOcc[r.Index(i, j)] }

// OccSource reports which source layer (if any) won occlusion at (i,j).
// ok is false if no occlusion has been written.
func (r *ViewRaster) OccSource(i, j int) (src host.SourceType, ok bool) {
	idx := r.Index(i, j)
	switch {
	case r.occHost[idx]:
		return host.SourceHost, true
	case r.occLink[idx]:
		return host.SourceLink, true
	case r.occDWG[idx]:
		return host.SourceDWG, true
	default:
		return 0, false
	}
}

// ModelMask reports the union of occ_host/occ_link/occ_dwg at (i,j).
func (r *ViewRaster) ModelMask(i, j int) bool { return r.modelMask[r.Index(i, j)] }

// ModelEdgeKey returns the element-meta index of the ink edge at (i,j), or
// -1 if unset.
func (r *ViewRaster) ModelEdgeKey(i, j int) int { return r.modelEdgeKey[r.Index(i, j)] }

// ModelProxyKey returns the element-meta index of the proxy edge at (i,j),
// or -1 if unset.
func (r *ViewRaster) ModelProxyKey(i, j int) int { return r.modelProxyKey[r.Index(i, j)] }

// ModelProxyMask reports the minimal proxy-presence flag at (i,j).
func (r *ViewRaster) ModelProxyMask(i, j int) bool { return r.modelProxyMask[r.Index(i, j)] }

// AnnoKey returns the annotation-meta index at (i,j), or -1 if unset.
func (r *ViewRaster) AnnoKey(i, j int) int { return r.annoKey[r.Index(i, j)] }

// AnnoOverModel returns the derived overlap flag at (i,j) (set by
// FinalizeOverlap).
func (r *ViewRaster) AnnoOverModel(i, j int) bool { return r.annoOverModel[r.Index(i, j)] }

// MetaIndexFor returns the append-only ElementMeta index for elemID,
// creating one (with the given category/source/label) on first use (spec
// §3 "Element lifecycle").
func (r *ViewRaster) MetaIndexFor(elemID int64, category string, source host.SourceType, sourceLabel string) int {
	if idx, ok := r.elemMetaIndex[elemID]; ok {
		return idx
	}
	idx := len(r.ElementMeta)
	r.ElementMeta = append(r.ElementMeta, ElementMeta{
		ElemID: elemID, Category: category, Source: source, SourceLabel: sourceLabel,
	})
	r.elemMetaIndex[elemID] = idx
	return idx
}

// AddAnnoMeta appends an AnnoMeta record and returns its index (append-only,
// spec §3).
func (r *ViewRaster) AddAnnoMeta(m AnnoMeta) int {
	idx := len(r.AnnoMeta)
	r.AnnoMeta = append(r.AnnoMeta, m)
	return idx
}

// TryWriteCell is the single routine allowed to write w_occ/occ_*/
// model_mask (spec §4.3). It performs the depth test, updates exactly one
// occ_<source> layer on a win, maintains the TileMap, and always updates
// the depth-test counters.
//
// It returns true if this call won the depth test at (i,j).
func (r *ViewRaster) TryWriteCell(i, j int, depth float64, source host.SourceType) bool {
	if !r.InBounds(i, j) {
		return false
	}
	r.DepthTest.Attempted++

	idx := r.Index(i, j)
	if !(depth < r.wOcc[idx]) {
		r.DepthTest.Rejects++
		return false
	}

	wasEmpty := math.IsInf(r.wOcc[idx], 1)
	r.wOcc[idx] = depth
	r.modelMask[idx] = true
	r.occHost[idx] = false
	r.occLink[idx] = false
	r.occDWG[idx] = false
	switch source {
	case host.SourceHost:
		r.occHost[idx] = true
	case host.SourceLink:
		r.occLink[idx] = true
	case host.SourceDWG:
		r.occDWG[idx] = true
	}
	r.DepthTest.Wins++
	r.Tile.RegisterWrite(i, j, depth, wasEmpty)
	return true
}

// SetModelEdge marks (i,j) as a model ink edge for elemMetaIdx, but only if
// the cell's current occlusion depth is at least elemDepth (spec §4.4:
// "edges hidden behind nearer geometry never appear").
func (r *ViewRaster) SetModelEdge(i, j int, elemDepth float64, elemMetaIdx int) {
	if !r.InBounds(i, j) {
		return
	}
	idx := r.Index(i, j)
	if r.wOcc[idx] >= elemDepth {
		r.modelEdgeKey[idx] = elemMetaIdx
	}
}

// SetModelProxy marks (i,j) as proxy coverage for elemMetaIdx.
func (r *ViewRaster) SetModelProxy(i, j int, elemMetaIdx int) {
	if !r.InBounds(i, j) {
		return
	}
	idx := r.Index(i, j)
	r.modelProxyMask[idx] = true
	r.modelProxyKey[idx] = elemMetaIdx
}

// SetAnno marks (i,j) as annotation ink for annoMetaIdx. Per spec §4.6 /
// IV3 this never touches w_occ or occ_*.
func (r *ViewRaster) SetAnno(i, j int, annoMetaIdx int) {
	if !r.InBounds(i, j) {
		return
	}
	r.annoKey[r.Index(i, j)] = annoMetaIdx
}

// PresenceMode selects which layer(s) count as "model present" for overlap
// derivation (spec §4.6, §4.8, config.ModelPresenceMode).
type PresenceMode int

const (
	PresenceInk PresenceMode = iota
	PresenceEdge
	PresenceProxy
	PresenceOcc
	PresenceAny
)

// PresenceModeFromConfig maps the YAML-facing config.ModelPresenceMode
// string enum onto the internal PresenceMode used by ViewRaster.
func PresenceModeFromConfig(m config.ModelPresenceMode) PresenceMode {
	switch m {
	case config.PresenceInk:
		return PresenceInk
	case config.PresenceEdge:
		return PresenceEdge
	case config.PresenceProxy:
		return PresenceProxy
	case config.PresenceOcc:
		return PresenceOcc
	default:
		return PresenceAny
	}
}

// ModelPresent reports whether (i,j) counts as "model present" under mode.
func (r *ViewRaster) ModelPresent(i, j int, mode PresenceMode) bool {
	idx := r.Index(i, j)
	switch mode {
	case PresenceInk:
		return r.modelEdgeKey[idx] != -1 || r.modelProxyMask[idx] || r.modelProxyKey[idx] != -1
	case PresenceEdge:
		return r.modelEdgeKey[idx] != -1
	case PresenceProxy:
		return r.modelProxyMask[idx] || r.modelProxyKey[idx] != -1
	case PresenceOcc:
		return r.modelMask[idx]
	case PresenceAny:
		return r.modelMask[idx] || r.modelEdgeKey[idx] != -1 || r.modelProxyMask[idx] || r.modelProxyKey[idx] != -1
	default:
		return r.modelMask[idx]
	}
}

// FinalizeOverlap derives anno_over_model for every cell (spec §4.6): a
// single pure pass run after the full annotation pass.
func (r *ViewRaster) FinalizeOverlap(mode PresenceMode) {
	for j := 0; j < r.H; j++ {
		for i := 0; i < r.W; i++ {
			idx := r.Index(i, j)
			r.annoOverModel[idx] = r.annoKey[idx] != -1 && r.ModelPresent(i, j, mode)
		}
	}
}

// InvariantError reports a fatal invariant violation (spec §7.5): these are
// never silently renormalized.
type InvariantError struct {
	Invariant string
	ViewID    int64
	Index     int
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("raster: invariant %s violated (view %d, cell %d): %s",
		e.Invariant, e.ViewID, e.Index, e.Detail)
}

// CheckInvariants validates IV1, IV2, and IV3-adjacent structural
// invariants (spec §8). IV3 itself (annotation writes never touch
// occlusion) is checked by the annotation pass via buffer diffing, not
// here, since this function only sees the final state.
func (r *ViewRaster) CheckInvariants(viewID int64) error {
	for idx := 0; idx < r.W*r.H; idx++ {
		occCount := 0
		if r.occHost[idx] {
			occCount++
		}
		if r.occLink[idx] {
			occCount++
		}
		if r.occDWG[idx] {
			occCount++
		}
		if occCount > 1 {
			return &InvariantError{Invariant: "IV2", ViewID: viewID, Index: idx,
				Detail: "more than one occ_* layer set for the same cell"}
		}
		if occCount == 1 {
			if math.IsInf(r.wOcc[idx], 1) {
				return &InvariantError{Invariant: "IV1", ViewID: viewID, Index: idx,
					Detail: "occ_* set but w_occ is +Inf"}
			}
			if !r.modelMask[idx] {
				return &InvariantError{Invariant: "IV1", ViewID: viewID, Index: idx,
					Detail: "occ_* set but model_mask is false"}
			}
		}
	}
	return nil
}
