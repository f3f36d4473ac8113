// Package viewbasis implements the View Basis & Bounds Resolver (spec
// §4.1): mode gating, basis construction, bounds resolution from either a
// crop box or an extents scan, annotation-driven bounds expansion, and the
// adaptive resolution/cap policy that never shrinks bounds to fit a grid
// cap.
package viewbasis

import (
	"math"

	"github.com/beetlebugorg/rasteroccl/config"
	"github.com/beetlebugorg/rasteroccl/internal/diag"
	"github.com/beetlebugorg/rasteroccl/internal/host"
	"github.com/beetlebugorg/rasteroccl/internal/model"
)

// Mode is the view's processing mode (spec §4.1 step 1).
type Mode int

const (
	ModelAndAnnotation Mode = iota
	AnnotationOnly
	Rejected
)

func (m Mode) String() string {
	switch m {
	case ModelAndAnnotation:
		return "MODEL_AND_ANNOTATION"
	case AnnotationOnly:
		return "ANNOTATION_ONLY"
	default:
		return "REJECTED"
	}
}

// GateMode implements spec §4.1 step 1. Mode is read from view_type and
// is_template only — never inferred from geometry presence.
func GateMode(v host.View) Mode {
	if v.IsTemplate {
		return Rejected
	}
	switch v.Kind {
	case host.ViewKindFloorPlan, host.ViewKindCeilingPlan, host.ViewKindSection,
		host.ViewKindElevation, host.ViewKindThreeD:
		return ModelAndAnnotation
	case host.ViewKindDrafting, host.ViewKindLegend:
		return AnnotationOnly
	default:
		return Rejected
	}
}

// Result is the full output of Resolve (spec §4.1).
type Result struct {
	Basis               model.ViewBasis
	Bounds              model.Bounds2D
	ModelBoundsUV       model.Bounds2D // unbuffered, crop-derived; zero value if bounds came from extents
	W, H                int
	CellSizeFtEffective float64
	Reason              string // "crop" | "extents" | "fallback"
	Confidence          string // "high" | "med" | "low"
	Capped              bool
	CapBefore, CapAfter [2]int // [W,H] before/after the adaptive cap
}

const inchesPerFoot = 12.0

// Resolve implements spec §4.1 steps 2-5 for a view already gated into
// ModelAndAnnotation or AnnotationOnly. extentsScan and annoExtents are
// supplied by the caller (internal/runner builds both from its candidate
// element and annotation query) since this package has no host dependency
// of its own beyond the View/CropBox value types.
func Resolve(v host.View, cfg config.Config, extentsScan func() ([]model.Bounds2D, bool), annoExtents []model.UV, rec *diag.Recorder) Result {
	basis := buildBasis(v, rec)

	var bounds, modelBoundsUV model.Bounds2D
	var reason, confidence string

	if v.CropBox.Active {
		bounds, modelBoundsUV = cropBoxBounds(v, basis, cfg)
		reason, confidence = "crop", "high"
	} else {
		bounds, reason, confidence = extentsBounds(basis, extentsScan)
	}

	bounds = expandForAnnotations(bounds, modelBoundsUV, v, annoExtents, cfg)

	w, h, cellFt, capped, capBefore, capAfter := resolveGrid(bounds, cfg)

	return Result{
		Basis:               basis,
		Bounds:              bounds,
		ModelBoundsUV:       modelBoundsUV,
		W:                   w,
		H:                   h,
		CellSizeFtEffective: cellFt,
		Reason:              reason,
		Confidence:          confidence,
		Capped:              capped,
		CapBefore:           capBefore,
		CapAfter:            capAfter,
	}
}

// buildBasis implements spec §4.1 step 2: negate view_direction to get F,
// and for plan-like views substitute the cut-plane elevation for origin.z
// when available.
//
// For ceiling-plan views, F is additionally flipped (SPEC_FULL.md §C.2,
// resolving spec §9's RCP depth-sign Open Question): this changes only
// which direction counts as "nearer" for this view's try_write_cell depth
// test, not the comparator itself, so IV8 (input-order independence) is
// untouched.
func buildBasis(v host.View, rec *diag.Recorder) model.ViewBasis {
	f := v.ViewDirection.Negate()
	if v.Kind == host.ViewKindCeilingPlan {
		f = f.Negate()
	}
	origin := v.Origin

	if math.Abs(f.Z) > 0.9 {
		if v.CutPlaneElevation != nil {
			origin.Z = *v.CutPlaneElevation
		} else if rec != nil {
			rec.Record(diag.Event{
				Phase: diag.PhaseBasis, Callsite: "viewbasis.buildBasis", Level: diag.LevelWarn,
				ViewID: v.ID, ExcType: "MissingCutPlane",
				ExcMsg:    "plan-like view has no cut-plane elevation; keeping view origin.z",
				DedupeKey: "missing_cut_plane",
			})
		}
	}

	return model.ViewBasis{Origin: origin, Right: v.Right, Up: v.Up, Forward: f}
}

// cropBoxBounds implements spec §4.1 step 3's crop-box branch: the 8
// crop-box corners (through the crop box's own local transform, if any)
// projected to UV, AABB'd, and buffered. The unbuffered AABB is also
// returned as model_bounds_uv.
func cropBoxBounds(v host.View, basis model.ViewBasis, cfg config.Config) (buffered, unbuffered model.Bounds2D) {
	corners := model.BBox8(v.CropBox.Min, v.CropBox.Max)
	uv := make([]model.UV, len(corners))
	for i, c := range corners {
		p := c
		if v.CropBox.Transform != (model.Transform{}) {
			p = v.CropBox.Transform.Apply(c)
		}
		uv[i] = basis.ProjectUV(p)
	}
	unbuffered = model.BoundsOf(uv)
	bufferFt := cfg.Grid.BoundsBufferIn / inchesPerFoot
	buffered = unbuffered.Expand(bufferFt)
	return buffered, unbuffered
}

// extentsBounds implements spec §4.1 step 3's extents-scan branch.
// extentsScan returns per-element UV bbox bounds plus whether a budget
// fired during collection (downgrading confidence to "low").
func extentsBounds(basis model.ViewBasis, extentsScan func() ([]model.Bounds2D, bool)) (model.Bounds2D, string, string) {
	if extentsScan == nil {
		return fallbackBounds(), "fallback", "low"
	}
	boxes, budgetFired := extentsScan()
	var union model.Bounds2D
	for _, b := range boxes {
		union = union.Union(b)
	}
	if !union.Valid() {
		return fallbackBounds(), "fallback", "low"
	}
	confidence := "med"
	if budgetFired {
		confidence = "low"
	}
	return union, "extents", confidence
}

// fallbackBounds is the 200ft x 200ft square spec §4.1 step 3 names.
func fallbackBounds() model.Bounds2D {
	return model.Bounds2D{XMin: -100, YMin: -100, XMax: 100, YMax: 100}
}

// expandForAnnotations implements spec §4.1 step 4: union extent-driver
// annotation bboxes with base bounds, clamp to a printed-inch cap envelope
// (and, if the view has an active annotation crop, additionally to a
// margin around model_bounds_uv), then pad by anno_crop_margin_in.
func expandForAnnotations(base, modelBoundsUV model.Bounds2D, v host.View, annoExtents []model.UV, cfg config.Config) model.Bounds2D {
	if len(annoExtents) == 0 {
		return base
	}
	union := base.Union(model.BoundsOf(annoExtents))

	capFt := cfg.Annotation.ExpandCapIn / inchesPerFoot
	envelope := base.Expand(capFt)
	union = union.Clamp(envelope)

	if v.AnnotationCropActive && modelBoundsUV.Valid() {
		marginFt := cfg.Annotation.CropMarginIn / inchesPerFoot
		union = union.Clamp(modelBoundsUV.Expand(marginFt))
	}

	marginFt := cfg.Annotation.CropMarginIn / inchesPerFoot
	return union.Expand(marginFt)
}

// resolveGrid implements spec §4.1 step 5: the adaptive resolution/cap
// policy. Bounds never shrink; only the effective cell size grows when the
// requested resolution would exceed the sheet's max W/H.
func resolveGrid(bounds model.Bounds2D, cfg config.Config) (w, h int, cellFt float64, capped bool, before, after [2]int) {
	cellFt = cfg.Grid.CellSizePaperIn / inchesPerFoot
	maxW := int(math.Floor(cfg.Grid.MaxSheetWidthIn / cfg.Grid.CellSizePaperIn))
	maxH := int(math.Floor(cfg.Grid.MaxSheetHeightIn / cfg.Grid.CellSizePaperIn))

	width, height := bounds.Width(), bounds.Height()
	wReq := int(math.Ceil(width / cellFt))
	hReq := int(math.Ceil(height / cellFt))
	before = [2]int{wReq, hReq}

	if wReq <= maxW && hReq <= maxH {
		return wReq, hReq, cellFt, false, before, before
	}

	adaptiveCell := math.Max(width/float64(maxW), height/float64(maxH))
	adaptiveCell = math.Max(adaptiveCell, cellFt)

	w = int(math.Ceil(width / adaptiveCell))
	h = int(math.Ceil(height / adaptiveCell))
	after = [2]int{w, h}
	return w, h, adaptiveCell, true, before, after
}
