// Package host declares the capability surface the rasterizer core consumes
// from the CAD host application (spec §6). These are interfaces only: the
// core never imports a concrete CAD SDK. A test double implementing these
// interfaces is sufficient to exercise the entire pipeline without a host
// application present (SPEC_FULL.md §A.5), mirroring the way the teacher's
// Parser interface (pkg/s57/parser.go) decouples chart loading from any one
// file-access implementation.
package host

import "github.com/beetlebugorg/rasteroccl/internal/model"

// SourceType names which document an element came from.
type SourceType int

const (
	SourceHost SourceType = iota
	SourceLink
	SourceDWG
)

func (s SourceType) String() string {
	switch s {
	case SourceHost:
		return "HOST"
	case SourceLink:
		return "LINK"
	case SourceDWG:
		return "DWG"
	default:
		return "UNKNOWN"
	}
}

// ViewKind classifies a view's intended rendering mode (spec §4.1 step 1).
type ViewKind int

const (
	ViewKindUnknown ViewKind = iota
	ViewKindFloorPlan
	ViewKindCeilingPlan
	ViewKindSection
	ViewKindElevation
	ViewKindThreeD
	ViewKindDrafting
	ViewKindLegend
	ViewKindDetail
)

// CropBox is an oriented box clipping a view, with its own local-to-world
// transform applied before projection.
type CropBox struct {
	Min, Max  model.Point
	Transform model.Transform
	Active    bool
}

// View is the scalar + vector metadata the host exposes for one view (spec
// §6 table row 1-4).
type View struct {
	ID            int64
	Name          string
	Kind          ViewKind
	IsTemplate    bool
	Scale         float64
	Discipline    string
	Phase         string
	DetailLevel   string
	TemplateID    int64

	Origin        model.Point
	Right         model.Vector
	Up            model.Vector
	ViewDirection model.Vector

	CropBox               CropBox
	AnnotationCropActive  bool
	CutPlaneElevation     *float64 // nil if unavailable
}

// BBoxSource records where an element's bbox was sourced from.
type BBoxSource int

const (
	BBoxNone BBoxSource = iota
	BBoxView
	BBoxModel
)

// PlanarFace is one planar face of a solid, already in the element's local
// space (the collector/extractor applies the element's transforms).
type PlanarFace struct {
	Normal     model.Vector
	Offset     float64 // d in the plane equation normal.p = d
	OuterLoop  []model.Point
}

// Element is a single CAD element as seen by the collector (spec §6,
// "element.id, element.category_{id,name}, element.view_specific,
// element.bbox(view|null)").
type Element struct {
	ID              int64
	CategoryID      int
	CategoryName    string
	ViewSpecific    bool

	BBoxMin, BBoxMax model.Point
	BBoxSource       BBoxSource

	WorldTransform model.Transform

	Source       SourceType
	SourceID     int64 // link instance id when Source==SourceLink
	LinkInstID   int64

	// IsFilledRegion / IsKeynoteMaterial / IsKeynoteUser are annotation
	// sub-classification hints (spec §4.6).
	IsFilledRegion    bool
	IsKeynoteMaterial bool
	IsKeynoteUser     bool
}

// Capability is the full set of host calls the core may make (spec §6).
// Every method that can fail against a real host returns an error so
// callers route it through internal/safehost.
type Capability interface {
	// QueryVisibleInView returns every element visible in view, subject to
	// no policy filtering (the collector applies policy itself).
	QueryVisibleInView(view View) ([]Element, error)

	// PlanarFaces returns the element's planar faces in local space, for
	// the planar-face footprint strategy.
	PlanarFaces(elem Element) ([]PlanarFace, error)

	// Triangulate returns a coarse triangulation of elem's visible solids
	// at the given parameter (spec §4.4 strategy 3); points are in local
	// space.
	Triangulate(elem Element, param float64) ([][3]model.Point, error)

	// GeometryPolygon returns elem's visible-solid vertices, in extraction
	// order (not hull), in local space (spec §4.4 strategy 2).
	GeometryPolygon(elem Element) ([]model.Point, error)

	// SketchProfile returns the element's boundary curve loops for the
	// Walls/Floors/Roofs/Ceilings plan-view shortcut (spec §4.4).
	SketchProfile(elem Element) ([][]model.Point, error)

	// ImportedPolylines returns the open polylines an imported-CAD
	// instance contributes (spec §4.4 "Imported CAD strategy").
	ImportedPolylines(elem Element) ([][]model.Point, error)

	// LinkDocumentElements returns elements from a linked document,
	// already carrying the link-to-host transform in WorldTransform.
	LinkDocumentElements(view View, linkInstID int64) ([]Element, error)
}

// AnnotationType is the whitelist taxonomy from spec §4.6.
type AnnotationType int

const (
	AnnoText AnnotationType = iota
	AnnoTag
	AnnoDim
	AnnoRegion
	AnnoLines
	AnnoDetail
	AnnoOther
	AnnoKeynote
)

func (a AnnotationType) String() string {
	switch a {
	case AnnoText:
		return "TEXT"
	case AnnoTag:
		return "TAG"
	case AnnoDim:
		return "DIM"
	case AnnoRegion:
		return "REGION"
	case AnnoLines:
		return "LINES"
	case AnnoDetail:
		return "DETAIL"
	case AnnoKeynote:
		return "KEYNOTE"
	default:
		return "OTHER"
	}
}

// Annotation is a single 2D annotation element, already projected to view
// UV by the host (spec §4.6).
type Annotation struct {
	ElementID  int64
	Type       AnnotationType
	CategoryID int
	BBoxMin, BBoxMax model.UV
	// Curve is the two endpoints of a dimension/detail-line curve, if any.
	Curve *[2]model.UV

	// IsFilledRegion / IsKeynoteMaterial / IsKeynoteUser drive the
	// classification sub-rule (spec §4.6): a filled-region element always
	// classifies as REGION regardless of Type; an element with
	// Type==AnnoKeynote resolves to TAG when it's a material keynote, TEXT
	// when it's user-typed.
	IsFilledRegion    bool
	IsKeynoteMaterial bool
	IsKeynoteUser     bool
}

// AnnotationCapability is the 2D annotation collection surface.
type AnnotationCapability interface {
	// QueryAnnotationsInView returns view-specific whitelist-category
	// annotations for view (spec §4.6 "one view-scoped query per whitelist
	// category" is an implementation detail internal to the host
	// adapter; the interface itself returns the union, already
	// view-specific-filtered).
	QueryAnnotationsInView(view View) ([]Annotation, error)
}
