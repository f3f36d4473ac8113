package footprint

import (
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
)

// aabbStrategy implements spec §4.4's final fallback: the axis-aligned UV
// bounding box of the element's 8 projected bbox corners. This strategy
// always succeeds (a degenerate bbox still yields 4 coincident-ish
// corners), so it is never skipped the way every earlier strategy can be.
func aabbStrategy(elem host.Element, basis model.ViewBasis) Footprint {
	corners := model.BBox8(elem.BBoxMin, elem.BBoxMax)
	uv := toUV(basis, elem.WorldTransform, corners[:])
	b := model.BoundsOf(uv)
	loop := []model.UV{
		{U: b.XMin, V: b.YMin},
		{U: b.XMax, V: b.YMin},
		{U: b.XMax, V: b.YMax},
		{U: b.XMin, V: b.YMax},
	}
	return Footprint{Loops: [][]model.UV{loop}, Strategy: "aabb"}
}
