// Package annotate implements the Annotation Pass (spec §4.6): whitelist
// category collection is the host adapter's job (QueryAnnotationsInView
// already returns the view-specific union); this package classifies each
// annotation, stamps it into anno_key by its per-type rule, drops
// absurdly-sized bboxes, and finalizes anno_over_model.
package annotate

import (
	"math"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/footprint"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
	"github.com/beetlebugorg/rasteroccl/internal/raster"
)

// Stats tallies the annotation pass's outcome for diagnostics.
type Stats struct {
	Collected int
	Dropped   int // absurd bbox
	ByType    map[host.AnnotationType]int
}

// Run implements spec §4.6 end to end: classify, stamp, drop absurd bboxes,
// then finalize anno_over_model using cfg's configured presence mode.
func Run(annos []host.Annotation, bounds model.Bounds2D, cellSizeFt float64, cfg config.Config, r *raster.ViewRaster) Stats {
	stats := Stats{ByType: map[host.AnnotationType]int{}}

	for _, a := range annos {
		cls := classify(a)
		bmin := toCellUV(a.BBoxMin, bounds, cellSizeFt)
		bmax := toCellUV(a.BBoxMax, bounds, cellSizeFt)

		if absurdBBox(bmin, bmax, r, cfg.Annotation.AbsurdBBoxFactor) {
			stats.Dropped++
			continue
		}

		metaIdx := r.AddAnnoMeta(raster.AnnoMeta{
			ElementID: a.ElementID, Type: cls, CatID: a.CategoryID,
			BBoxMin: [2]float64{a.BBoxMin.U, a.BBoxMin.V},
			BBoxMax: [2]float64{a.BBoxMax.U, a.BBoxMax.V},
		})
		stamp(r, cls, a, bmin, bmax, bounds, cellSizeFt, cfg.Annotation, metaIdx)

		stats.Collected++
		stats.ByType[cls]++
	}

	r.FinalizeOverlap(raster.PresenceModeFromConfig(cfg.Overlap.ModelPresenceMode))
	return stats
}

// classify implements spec §4.6's classification rule: filled-region status
// wins outright, then a material/user keynote resolves to TAG/TEXT, else
// the host's own built-in-category type passes through unchanged.
func classify(a host.Annotation) host.AnnotationType {
	if a.IsFilledRegion {
		return host.AnnoRegion
	}
	if a.Type == host.AnnoKeynote {
		if a.IsKeynoteMaterial {
			return host.AnnoTag
		}
		return host.AnnoText
	}
	return a.Type
}

// stamp dispatches to the per-type rule from spec §4.6. TAG's outline rule
// also covers the material-keynote case (classify already folded it into
// TAG); TEXT's fill rule likewise covers user-typed keynotes.
func stamp(r *raster.ViewRaster, cls host.AnnotationType, a host.Annotation, bmin, bmax model.UV, bounds model.Bounds2D, cellSizeFt float64, cfg config.AnnotationConfig, metaIdx int) {
	switch cls {
	case host.AnnoTag:
		outlineAABB(r, bmin, bmax, metaIdx)
	case host.AnnoDim:
		if p0, p1, ok := curveCellSpace(a, bounds, cellSizeFt); ok {
			curveLine(r, p0, p1, metaIdx)
		} else {
			outlineAABB(r, bmin, bmax, metaIdx)
		}
	case host.AnnoLines:
		if p0, p1, ok := curveCellSpace(a, bounds, cellSizeFt); ok {
			if cfg.LinesBandWidthCells > 1 {
				band(r, p0, p1, cfg.LinesBandWidthCells, metaIdx)
			} else {
				curveLine(r, p0, p1, metaIdx)
			}
		} else {
			outlineAABB(r, bmin, bmax, metaIdx)
		}
	default: // TEXT, DETAIL, REGION, OTHER
		fillAABB(r, bmin, bmax, metaIdx)
	}
}

func curveCellSpace(a host.Annotation, bounds model.Bounds2D, cellSizeFt float64) (p0, p1 model.UV, ok bool) {
	if a.Curve == nil {
		return model.UV{}, model.UV{}, false
	}
	return toCellUV(a.Curve[0], bounds, cellSizeFt), toCellUV(a.Curve[1], bounds, cellSizeFt), true
}

func toCellUV(p model.UV, bounds model.Bounds2D, cellSizeFt float64) model.UV {
	if cellSizeFt <= 0 {
		cellSizeFt = 1
	}
	return model.UV{U: (p.U - bounds.XMin) / cellSizeFt, V: (p.V - bounds.YMin) / cellSizeFt}
}

// absurdBBox implements spec §4.6's drop rule: more than factor times the
// raster's extent in either dimension.
func absurdBBox(bmin, bmax model.UV, r *raster.ViewRaster, factor float64) bool {
	if factor <= 0 {
		factor = 2
	}
	w := math.Abs(bmax.U - bmin.U)
	h := math.Abs(bmax.V - bmin.V)
	return w > factor*float64(r.W) || h > factor*float64(r.H)
}

func cellRect(bmin, bmax model.UV) (i0, j0, i1, j1 int) {
	i0 = int(math.Floor(math.Min(bmin.U, bmax.U)))
	i1 = int(math.Floor(math.Max(bmin.U, bmax.U)))
	j0 = int(math.Floor(math.Min(bmin.V, bmax.V)))
	j1 = int(math.Floor(math.Max(bmin.V, bmax.V)))
	return
}

func fillAABB(r *raster.ViewRaster, bmin, bmax model.UV, metaIdx int) {
	i0, j0, i1, j1 := cellRect(bmin, bmax)
	for j := j0; j <= j1; j++ {
		for i := i0; i <= i1; i++ {
			r.SetAnno(i, j, metaIdx)
		}
	}
}

func outlineAABB(r *raster.ViewRaster, bmin, bmax model.UV, metaIdx int) {
	i0, j0, i1, j1 := cellRect(bmin, bmax)
	corners := []model.UV{
		{U: float64(i0), V: float64(j0)}, {U: float64(i1), V: float64(j0)},
		{U: float64(i1), V: float64(j1)}, {U: float64(i0), V: float64(j1)},
	}
	for k := 0; k < 4; k++ {
		a, b := corners[k], corners[(k+1)%4]
		footprint.BresenhamLine(a, b, func(i, j int) { r.SetAnno(i, j, metaIdx) })
	}
}

func curveLine(r *raster.ViewRaster, a, b model.UV, metaIdx int) {
	footprint.BresenhamLine(a, b, func(i, j int) { r.SetAnno(i, j, metaIdx) })
}

func band(r *raster.ViewRaster, a, b model.UV, widthCells int, metaIdx int) {
	half := widthCells / 2
	footprint.BresenhamLine(a, b, func(ci, cj int) {
		for dj := -half; dj <= half; dj++ {
			for di := -half; di <= half; di++ {
				r.SetAnno(ci+di, cj+dj, metaIdx)
			}
		}
	})
}
