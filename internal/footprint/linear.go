package footprint

import (
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
)

// LinearBand computes the LINEAR strategy's centerline and width (spec
// §4.4): the major axis of the OBB fitted to elem's projected bbox, with
// width taken from the minor axis extent. ok is false when the projected
// bbox is degenerate (point-like), in which case the caller should fall
// back to a TINY stamp.
func LinearBand(elem host.Element, basis model.ViewBasis) (a, b model.UV, widthFt float64, ok bool) {
	center, ux, _, halfA, halfB, ok := OBBAxes(elem, basis)
	if !ok {
		return model.UV{}, model.UV{}, 0, false
	}
	a = model.UV{U: center.U - halfA*ux.U, V: center.V - halfA*ux.V}
	b = model.UV{U: center.U + halfA*ux.U, V: center.V + halfA*ux.V}
	return a, b, 2 * halfB, true
}
